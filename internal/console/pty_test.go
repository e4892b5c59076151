// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console_test

import (
	"context"
	"os/exec"
	"testing"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catCommand runs "cat" in place of the console client. It echoes all lines
// like a console in raw mode would.
func catCommand(t *testing.T, addrs *[]console.Address) func(
	context.Context,
	console.Address,
) (*exec.Cmd, error) {
	t.Helper()

	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}

	return func(ctx context.Context, addr console.Address) (*exec.Cmd, error) {
		*addrs = append(*addrs, addr)
		return exec.CommandContext(ctx, path), nil
	}
}

func TestPTYDialer_Dial(t *testing.T) {
	var addrs []console.Address

	dialer := &console.PTYDialer{Command: catCommand(t, &addrs)}
	addr := console.UnixAddress("/run/vm/console.sock")

	session, err := console.Open(t.Context(), dialer, addr)
	require.NoError(t, err)

	require.NoError(t, session.SendLine("guest login: "))

	match, err := session.Expect(
		[]*console.Pattern{console.MustPattern(`login:`)},
		nil,
		testTimeout,
		testPoll,
	)
	require.NoError(t, err)
	assert.Contains(t, match.Text, "guest login: ")
	assert.Equal(t, []console.Address{addr}, addrs)

	require.NoError(t, session.Close())
}

func TestPTYDialer_DialCanceled(t *testing.T) {
	var addrs []console.Address

	dialer := &console.PTYDialer{Command: catCommand(t, &addrs)}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := dialer.Dial(ctx, console.UnixAddress("/run/vm/console.sock"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPTYDialer_UnsupportedNetwork(t *testing.T) {
	dialer := &console.PTYDialer{}

	_, err := dialer.Dial(t.Context(), console.Address{Network: "udp", Addr: "x"})
	require.ErrorIs(t, err, console.ErrUnsupportedNetwork)
}
