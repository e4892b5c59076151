// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	readBufferSize  = 4096
	chunkBufferSize = 64

	// DefaultPollInterval is the time the output must be quiet before it is
	// matched against patterns.
	DefaultPollInterval = 500 * time.Millisecond
)

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithLog mirrors all console output into the given writer. Carriage returns
// are removed and output is written line by line.
func WithLog(w io.Writer) SessionOption {
	return func(s *Session) {
		s.log = newLineWriter(w)
	}
}

// Session is a live duplex text channel to a console.
//
// A session exclusively owns its transport. It must be used by a single
// caller only. Output is read continuously in the background and handed to
// [Session.Expect] calls.
type Session struct {
	transport io.ReadWriteCloser
	chunks    chan []byte
	done      chan struct{}
	log       *lineWriter

	// readErr is set by the reader before chunks is closed.
	readErr error

	// buf holds the output read since the current [Session.Expect] call
	// started. It is consumed when the call returns.
	buf    strings.Builder
	closed bool
}

// NewSession creates a new [Session] on the given transport and starts
// reading from it.
//
// The caller must call [Session.Close] once done, which also closes the
// transport.
func NewSession(transport io.ReadWriteCloser, opts ...SessionOption) *Session {
	s := &Session{
		transport: transport,
		chunks:    make(chan []byte, chunkBufferSize),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()

	return s
}

func (s *Session) readLoop() {
	defer close(s.chunks)

	for {
		buf := make([]byte, readBufferSize)

		n, err := s.transport.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-s.done:
				return
			}
		}

		if err != nil {
			s.readErr = err
			return
		}
	}
}

// Close closes the session and its transport. Closing a closed session is a
// no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	close(s.done)

	err := s.transport.Close()

	if s.log != nil {
		_ = s.log.Flush()
	}

	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	return nil
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s.closed
}

// Send writes the given text as is.
func (s *Session) Send(text string) error {
	if s.closed {
		return ErrSessionClosed
	}

	_, err := io.WriteString(s.transport, text)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	return nil
}

// SendLine writes the given line followed by a line feed.
func (s *Session) SendLine(line string) error {
	return s.Send(line + "\n")
}

// Match is the result of a successful [Session.Expect] call.
type Match struct {
	// Index of the first pattern that matched.
	Index int
	// Pattern that matched.
	Pattern *Pattern
	// Text is the raw output read since the call started, including the
	// matched part.
	Text string
}

// Expect reads output until one of the patterns matches or timeout elapses.
//
// Output is collected until the console has been quiet for pollInterval.
// Then all output read since the call started is passed through normalize,
// and the patterns are tested against the result in order. The first one that
// matches wins. If normalize is nil, [Raw] is used.
//
// If no pattern matched in time, an [ExpectError] wrapping [ErrTimeout] is
// returned. If the transport fails, for example because the remote side went
// away, an [ExpectError] wrapping [ErrProcessTerminated] is returned right
// away. Both carry the raw output.
func (s *Session) Expect(
	patterns []*Pattern,
	normalize NormalizeFunc,
	timeout time.Duration,
	pollInterval time.Duration,
) (Match, error) {
	if s.closed {
		return Match{}, ErrSessionClosed
	}

	if normalize == nil {
		normalize = Raw
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	quiet := time.NewTimer(pollInterval)
	quiet.Stop()

	defer quiet.Stop()

	var (
		quietC     <-chan time.Time
		terminated bool
		timedOut   bool
	)

	for {
		select {
		case chunk, ok := <-s.chunks:
			if ok {
				s.append(chunk)
				quiet.Reset(pollInterval)
				quietC = quiet.C

				continue
			}

			terminated = true
		case <-quietC:
			quietC = nil
		case <-deadline.C:
			timedOut = true
		}

		idx, err := s.match(patterns, normalize)
		if err != nil {
			return Match{}, err
		}

		switch {
		case idx >= 0:
			return Match{
				Index:   idx,
				Pattern: patterns[idx],
				Text:    s.consume(),
			}, nil
		case terminated:
			return Match{}, &ExpectError{
				Err:    ErrProcessTerminated,
				Output: s.consume(),
				Status: s.readErr,
			}
		case timedOut:
			return Match{}, &ExpectError{
				Err:    ErrTimeout,
				Output: s.consume(),
			}
		}
	}
}

// ReadUpToPrompt reads until the last relevant line of the output matches
// the given prompt pattern and returns the output including the prompt.
func (s *Session) ReadUpToPrompt(
	prompt *Pattern,
	timeout time.Duration,
) (string, error) {
	match, err := s.Expect(
		[]*Pattern{prompt},
		LastRelevantLine,
		timeout,
		DefaultPollInterval,
	)
	if err != nil {
		return "", err
	}

	return match.Text, nil
}

// Cmd sends the given command line and waits for the prompt to reappear.
//
// It returns the command output without the echoed command and the trailing
// prompt line.
func (s *Session) Cmd(
	command string,
	prompt *Pattern,
	timeout time.Duration,
) (string, error) {
	err := s.SendLine(command)
	if err != nil {
		return "", err
	}

	output, err := s.ReadUpToPrompt(prompt, timeout)
	if err != nil {
		return "", fmt.Errorf("command %q: %w", command, err)
	}

	return trimCommandOutput(output, command), nil
}

func (s *Session) append(chunk []byte) {
	s.buf.Write(chunk)

	if s.log != nil {
		_, _ = s.log.Write(chunk)
	}
}

func (s *Session) match(
	patterns []*Pattern,
	normalize NormalizeFunc,
) (int, error) {
	if s.buf.Len() == 0 {
		return -1, nil
	}

	return matchFirst(patterns, normalize(s.buf.String()))
}

func (s *Session) consume() string {
	text := s.buf.String()
	s.buf.Reset()

	return text
}

// trimCommandOutput removes the echoed command from the start and the prompt
// line from the end of the output.
func trimCommandOutput(output, command string) string {
	lines := lineBreakRE.Split(output, -1)

	if len(lines) > 0 && strings.Contains(lines[0], command) {
		lines = lines[1:]
	}

	for idx := len(lines) - 1; idx >= 0; idx-- {
		if strings.TrimSpace(lines[idx]) != "" {
			lines = lines[:idx]
			break
		}
	}

	return strings.Join(lines, "\n")
}
