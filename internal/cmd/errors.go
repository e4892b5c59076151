// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFilePath is returned if a file path is empty.
	ErrEmptyFilePath = errors.New("file path must not be empty")

	// ErrNotRegularFile is returned if a file path is not a regular file.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrInvalidArgument is returned for QEMU arguments not in the form
	// "-name [value]".
	ErrInvalidArgument = errors.New("invalid qemu argument")

	// ErrInvalidConsoleClient is returned for unknown console clients.
	ErrInvalidConsoleClient = errors.New("invalid console client")

	// ErrOutputMismatch is returned if a command's output changed by a
	// migration.
	ErrOutputMismatch = errors.New("command output changed")
)

// ConfigError wraps errors that occur while reading the config file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Is(other error) bool {
	_, ok := other.(*ConfigError)
	return ok
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
