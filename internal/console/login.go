// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultShellPrompt matches common root and user shell prompts.
	DefaultShellPrompt = `[\#\$] `

	// DefaultLoginTimeout is the time each step of the login may take.
	DefaultLoginTimeout = 60 * time.Second

	// DefaultRetryDelay is the time to wait before the guest is nudged after
	// the first timeout.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultPleaseWaitTimeout is the minimum step timeout once the guest
	// asked to wait.
	DefaultPleaseWaitTimeout = 30 * time.Second
)

// LoginConfig defines the credentials and timing of a [Login].
type LoginConfig struct {
	Username string
	Password string

	// Prompt is the pattern of the shell prompt that indicates a successful
	// login. [DefaultShellPrompt] is used if empty.
	Prompt string

	// Timeout is the maximum time each step of the login may take, e.g.
	// waiting for the password prompt. [DefaultLoginTimeout] if not set.
	Timeout time.Duration

	// PollInterval is passed to [Session.Expect]. [DefaultPollInterval] if
	// not set.
	PollInterval time.Duration

	// RetryDelay is waited before the guest is nudged with an empty line
	// after a step timed out. [DefaultRetryDelay] if not set.
	RetryDelay time.Duration

	// PleaseWaitTimeout is the minimum step timeout after the guest asked to
	// wait. It replaces a shorter Timeout, it does not add to it.
	// [DefaultPleaseWaitTimeout] if not set.
	PleaseWaitTimeout time.Duration
}

func (c *LoginConfig) setDefaults() {
	if c.Prompt == "" {
		c.Prompt = DefaultShellPrompt
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultLoginTimeout
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	if c.PleaseWaitTimeout <= 0 {
		c.PleaseWaitTimeout = DefaultPleaseWaitTimeout
	}
}

// login is the state of a single [Login] run.
type login struct {
	LoginConfig

	session *Session
	prompts []Prompt

	output       string
	passwordSent bool
	usernameSent bool
	lastChance   bool
	done         bool
}

// Login runs the login dialogue on the given [Session].
//
// It answers confirmation, username and password prompts until the shell
// prompt shows up and returns all output read. The session should be freshly
// opened, but may be attached at any time during boot as Login starts with
// sending an empty line to make the guest print its prompt again.
//
// On failure, a [LoginError] is returned. A step timing out is tolerated once:
// the guest is nudged with an empty line, as kernel messages might have
// garbled the prompt. The second timeout is fatal.
func Login(session *Session, cfg LoginConfig) (string, error) {
	cfg.setDefaults()

	shellPrompt, err := NewPattern(cfg.Prompt)
	if err != nil {
		return "", fmt.Errorf("shell prompt: %w", err)
	}

	l := &login{
		LoginConfig: cfg,
		session:     session,
		prompts:     LoginPrompts(shellPrompt),
	}

	return l.run()
}

func (l *login) run() (string, error) {
	err := l.send("")
	if err != nil {
		return "", err
	}

	patterns := promptPatterns(l.prompts)

	for !l.done {
		match, err := l.session.Expect(
			patterns,
			LastRelevantLine,
			l.Timeout,
			l.PollInterval,
		)
		if err != nil {
			err = l.handleExpectError(err)
			if err != nil {
				return l.output, err
			}

			continue
		}

		l.output += match.Text

		err = l.handle(l.prompts[match.Index].Kind)
		if err != nil {
			return l.output, err
		}
	}

	return l.output, nil
}

func (l *login) handle(kind PromptKind) error {
	slog.Debug("Got login prompt", slog.String("kind", kind.String()))

	switch kind {
	case PromptConfirm:
		return l.send("yes")
	case PromptPassword:
		if l.passwordSent {
			return l.fail(ErrPasswordPromptTwice, "", nil)
		}

		l.passwordSent = true

		return l.send(l.Password)
	case PromptUsername:
		switch {
		case l.usernameSent:
			return l.fail(ErrUsernamePromptTwice, "", nil)
		case l.passwordSent:
			return l.fail(ErrUsernameAfterPassword, "", nil)
		}

		l.usernameSent = true

		return l.send(l.Username)
	case PromptConnectionClosed:
		return l.fail(ErrConnectionClosed, "", nil)
	case PromptConnectionRefused:
		return l.fail(ErrConnectionRefused, "", nil)
	case PromptConnectionTimedOut:
		return l.fail(ErrConnectionTimedOut, "", nil)
	case PromptPleaseWait:
		l.Timeout = max(l.Timeout, l.PleaseWaitTimeout)
	case PromptWarning:
	case PromptShell:
		slog.Debug("Got shell prompt, logged in")

		l.done = true
	case PromptRawConsole:
		// Make the console print its login prompt.
		return l.send("")
	}

	return nil
}

func (l *login) handleExpectError(err error) error {
	var expectErr *ExpectError
	if !errors.As(err, &expectErr) {
		return l.fail(fmt.Errorf("%w: %w", ErrLoginFailed, err), "", nil)
	}

	switch {
	case errors.Is(expectErr, ErrProcessTerminated):
		return l.fail(ErrProcessTerminated, expectErr.Output, expectErr.Status)
	case errors.Is(expectErr, ErrTimeout) && !l.lastChance:
		slog.Debug("Login step timed out, nudging console",
			slog.Duration("timeout", l.Timeout))

		// Kernel messages might have garbled the prompt. An empty line
		// makes the guest print it again.
		l.output += expectErr.Output
		l.lastChance = true

		time.Sleep(l.RetryDelay)

		return l.send("")
	case errors.Is(expectErr, ErrTimeout):
		return l.fail(ErrLoginTimeout, expectErr.Output, nil)
	default:
		return l.fail(
			fmt.Errorf("%w: %w", ErrLoginFailed, err),
			expectErr.Output,
			nil,
		)
	}
}

func (l *login) send(line string) error {
	err := l.session.SendLine(line)
	if err != nil {
		return l.fail(fmt.Errorf("%w: %w", ErrLoginFailed, err), "", nil)
	}

	return nil
}

// fail returns a [LoginError] with the output read so far plus the given
// additional output.
func (l *login) fail(err error, output string, status error) error {
	l.output += output

	return &LoginError{
		Err:    err,
		Output: l.output,
		Status: status,
	}
}
