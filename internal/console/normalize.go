// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"regexp"
	"strings"
)

var (
	kernelMessageRE = regexp.MustCompile(`^\[\s*\d+\.\d+\] `)
	lineBreakRE     = regexp.MustCompile(`\r\n|\r|\n`)
)

// NormalizeFunc transforms the text read so far into the view patterns are
// matched against.
type NormalizeFunc func(text string) string

var (
	_ NormalizeFunc = LastRelevantLine
	_ NormalizeFunc = Raw
)

// Raw is a [NormalizeFunc] that returns the text unchanged.
func Raw(text string) string {
	return text
}

// LastRelevantLine is a [NormalizeFunc] that returns the last line that is
// neither blank nor a kernel log message.
//
// Kernel messages are printed on the console at any time and may end up
// right after a prompt. Skipping them keeps the prompt the last line.
func LastRelevantLine(text string) string {
	lines := lineBreakRE.Split(text, -1)

	for idx := len(lines) - 1; idx >= 0; idx-- {
		line := lines[idx]
		if strings.TrimSpace(line) == "" || kernelMessageRE.MatchString(line) {
			continue
		}

		return line
	}

	return ""
}
