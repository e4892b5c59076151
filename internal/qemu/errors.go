// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import "errors"

var (
	// ErrTransportTypeInvalid is returned if a transport type is invalid.
	ErrTransportTypeInvalid = errors.New("unknown transport type")

	// ErrArgumentCollision is returned if two [Argument]s are considered equal.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrCredentialsMissing is returned if a console is requested for a
	// [Machine] without username or password.
	ErrCredentialsMissing = errors.New("username or password not set")

	// ErrNotRunning is returned if an operation requires a running [Machine].
	ErrNotRunning = errors.New("machine not running")

	// ErrAlreadyRunning is returned if a running [Machine] is launched again.
	ErrAlreadyRunning = errors.New("machine already running")

	// ErrNoConsoleAddress is returned if neither the caller nor the
	// [Launcher] provides a console address.
	ErrNoConsoleAddress = errors.New("no console address")

	// ErrMigrationFailed is returned if the source reports the migration
	// as failed.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationTimeout is returned if the migration did not complete in
	// time.
	ErrMigrationTimeout = errors.New("migration timed out")

	// ErrNoFreePort is returned if a [PortAllocator] has no free port left.
	ErrNoFreePort = errors.New("no free port")

	// ErrProcessExited is returned if the QEMU process exited before its
	// monitor could be connected.
	ErrProcessExited = errors.New("qemu process exited")
)

// ArgumentError indicates an issue with an input argument.
type ArgumentError struct {
	msg string
}

// Error implements the [error] interface.
func (e *ArgumentError) Error() string {
	return "argument error: " + e.msg
}

// Is implements the [errors.Is] interface.
func (e *ArgumentError) Is(other error) bool {
	_, ok := other.(*ArgumentError)
	return ok
}

// ConsoleError is returned if a console can not be opened for a [Machine].
type ConsoleError struct {
	Name string
	Err  error
}

// Error implements the [error] interface.
func (e *ConsoleError) Error() string {
	return "console " + e.Name + ": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (e *ConsoleError) Is(other error) bool {
	_, ok := other.(*ConsoleError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ConsoleError) Unwrap() error {
	return e.Err
}

// MigrationError wraps any error occurred during [Machine.Migrate].
type MigrationError struct {
	// Source is the name of the migrated [Machine].
	Source string

	Err error

	// Status is the last migration status reported by the source, if any.
	Status string
}

// Error implements the [error] interface.
func (e *MigrationError) Error() string {
	msg := "migrate " + e.Source + ": " + e.Err.Error()
	if e.Status != "" {
		msg += " (status: " + e.Status + ")"
	}

	return msg
}

// Is implements the [errors.Is] interface.
func (e *MigrationError) Is(other error) bool {
	_, ok := other.(*MigrationError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *MigrationError) Unwrap() error {
	return e.Err
}
