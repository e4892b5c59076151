// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"testing"

	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/stretchr/testify/assert"
)

func TestArgumentErrorIs(t *testing.T) {
	//nolint:testifylint
	assert.ErrorIs(t, error(&qemu.ArgumentError{}), &qemu.ArgumentError{})
	assert.NotErrorIs(t, assert.AnError, &qemu.ArgumentError{})
}

func TestConsoleError(t *testing.T) {
	err := error(&qemu.ConsoleError{Name: "vm", Err: qemu.ErrNotRunning})

	assert.ErrorIs(t, err, &qemu.ConsoleError{})
	assert.ErrorIs(t, err, qemu.ErrNotRunning)
	assert.NotErrorIs(t, assert.AnError, &qemu.ConsoleError{})
	assert.EqualError(t, err, "console vm: machine not running")
}

func TestMigrationError(t *testing.T) {
	err := error(&qemu.MigrationError{
		Source: "vm",
		Err:    qemu.ErrMigrationFailed,
		Status: "Migration status: failed",
	})

	assert.ErrorIs(t, err, &qemu.MigrationError{})
	assert.ErrorIs(t, err, qemu.ErrMigrationFailed)
	assert.NotErrorIs(t, err, qemu.ErrMigrationTimeout)
	assert.NotErrorIs(t, assert.AnError, &qemu.MigrationError{})
	assert.EqualError(t, err,
		"migrate vm: migration failed (status: Migration status: failed)")
}
