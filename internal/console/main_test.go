// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console_test

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Started once by regexp2 for match timeouts, runs forever.
		goleak.IgnoreAnyFunction("github.com/dlclark/regexp2.runClock"),
	)
}

const waitTimeout = 5 * time.Second

// fakeGuest is the remote end of a console [console.Session].
type fakeGuest struct {
	conn  net.Conn
	lines chan string
}

func newFakeGuest(t *testing.T, opts ...console.SessionOption) (
	*console.Session,
	*fakeGuest,
) {
	t.Helper()

	client, server := net.Pipe()

	guest := &fakeGuest{
		conn:  server,
		lines: make(chan string, 64),
	}

	go func() {
		defer close(guest.lines)

		scanner := bufio.NewScanner(server)
		for scanner.Scan() {
			guest.lines <- scanner.Text()
		}
	}()

	session := console.NewSession(client, opts...)

	t.Cleanup(func() {
		_ = session.Close()
		_ = server.Close()

		for range guest.lines { //nolint:revive
		}
	})

	return session, guest
}

func (g *fakeGuest) print(t *testing.T, text string) {
	t.Helper()

	_, err := g.conn.Write([]byte(text))
	require.NoError(t, err)
}

func (g *fakeGuest) expectLine(t *testing.T, expected string) {
	t.Helper()

	select {
	case line, ok := <-g.lines:
		require.True(t, ok, "connection closed while waiting for %q", expected)
		require.Equal(t, expected, strings.TrimRight(line, "\r"))
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for line", expected)
	}
}

func (g *fakeGuest) close(t *testing.T) {
	t.Helper()

	require.NoError(t, g.conn.Close())
}

type result struct {
	output string
	err    error
}

func runLogin(session *console.Session, cfg console.LoginConfig) chan result {
	done := make(chan result, 1)

	go func() {
		output, err := console.Login(session, cfg)
		done <- result{output, err}
	}()

	return done
}

func waitResult(t *testing.T, done chan result) result {
	t.Helper()

	select {
	case res := <-done:
		return res
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for result")
		return result{}
	}
}
