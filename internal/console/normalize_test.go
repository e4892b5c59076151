// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console_test

import (
	"testing"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/stretchr/testify/assert"
)

func TestLastRelevantLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "empty",
		},
		{
			name:     "single line",
			input:    "login: ",
			expected: "login: ",
		},
		{
			name:     "trailing blank lines",
			input:    "first\r\nlogin: \r\n  \r\n\n",
			expected: "login: ",
		},
		{
			name:     "kernel message after prompt",
			input:    "guest login: \r\n[    1.234000] something\r\n",
			expected: "guest login: ",
		},
		{
			name: "multiple kernel messages",
			input: "Password: \n[    1.234] a\n[   22.000001] b\n" +
				"[12345.678901] c\n",
			expected: "Password: ",
		},
		{
			name:     "bracket that is no kernel message",
			input:    "login: \n[root@guest ~]# ",
			expected: "[root@guest ~]# ",
		},
		{
			name:     "bracketed number without decimal point",
			input:    "login: \n[ 12x34] choose entry: ",
			expected: "[ 12x34] choose entry: ",
		},
		{
			name:     "carriage return only",
			input:    "first\rsecond",
			expected: "second",
		},
		{
			name:     "only kernel messages",
			input:    "[    0.000000] Linux version 6.1\n",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, console.LastRelevantLine(tt.input))
		})
	}
}

func TestRaw(t *testing.T) {
	assert.Equal(t, "a\r\nb", console.Raw("a\r\nb"))
}
