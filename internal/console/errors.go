// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned if a console address can not be parsed.
	ErrInvalidAddress = errors.New("invalid console address")

	// ErrSessionClosed is returned if a closed [Session] is used.
	ErrSessionClosed = errors.New("session closed")

	// ErrTimeout is returned if no pattern matched in time.
	ErrTimeout = errors.New("timed out waiting for output")

	// ErrProcessTerminated is returned if the remote side of the console
	// went away.
	ErrProcessTerminated = errors.New("process terminated")

	// ErrLoginTimeout is returned if the login dialogue did not make any
	// progress, even after the guest has been nudged once.
	ErrLoginTimeout = errors.New("login timed out")

	// ErrAuthenticationFailure is returned if the guest asked for
	// credentials again after they have been sent.
	ErrAuthenticationFailure = errors.New("authentication failed")

	// ErrLoginFailed is returned for any other login error.
	ErrLoginFailed = errors.New("login failed")
)

var (
	// ErrPasswordPromptTwice is returned if a password prompt shows up after
	// the password has already been sent.
	ErrPasswordPromptTwice = fmt.Errorf(
		"%w: got password prompt twice", ErrAuthenticationFailure)

	// ErrUsernamePromptTwice is returned if a username prompt shows up after
	// the username has already been sent.
	ErrUsernamePromptTwice = fmt.Errorf(
		"%w: got username prompt twice", ErrAuthenticationFailure)

	// ErrUsernameAfterPassword is returned if a username prompt shows up after
	// the password has been sent.
	ErrUsernameAfterPassword = fmt.Errorf(
		"%w: got username prompt after password prompt",
		ErrAuthenticationFailure)

	// ErrConnectionClosed is returned if the client reported a closed
	// connection.
	ErrConnectionClosed = fmt.Errorf(
		"%w: client said 'connection closed'", ErrLoginFailed)

	// ErrConnectionRefused is returned if the client reported a refused
	// connection.
	ErrConnectionRefused = fmt.Errorf(
		"%w: client said 'connection refused'", ErrLoginFailed)

	// ErrConnectionTimedOut is returned if the client reported a connection
	// timeout.
	ErrConnectionTimedOut = fmt.Errorf(
		"%w: client said 'connection timed out'", ErrLoginFailed)
)

// ExpectError is returned by [Session.Expect] if no pattern matched.
//
// It carries the raw output read until the failure.
type ExpectError struct {
	Err    error
	Output string
	// Status is the error the transport read failed with, if any.
	Status error
}

// Error implements the [error] interface.
func (e *ExpectError) Error() string {
	if e.Status != nil {
		return fmt.Sprintf("expect: %v: %v", e.Err, e.Status)
	}

	return "expect: " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*ExpectError) Is(other error) bool {
	_, ok := other.(*ExpectError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ExpectError) Unwrap() error {
	return e.Err
}

// LoginError is returned by [Login].
//
// Err is one of the login sentinel errors. Output is everything read from the
// console during the login, including the text that caused the error.
type LoginError struct {
	Err    error
	Output string
	Status error
}

// Error implements the [error] interface.
func (e *LoginError) Error() string {
	if e.Status != nil {
		return fmt.Sprintf("login: %v: %v", e.Err, e.Status)
	}

	return "login: " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*LoginError) Is(other error) bool {
	_, ok := other.(*LoginError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *LoginError) Unwrap() error {
	return e.Err
}
