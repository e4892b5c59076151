// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// ErrUnsupportedNetwork is returned if an [Address] network can not be
// handled.
var ErrUnsupportedNetwork = errors.New("unsupported network")

// PTYDialer connects to consoles by running a client command, "nc" by
// default, in a pseudo terminal.
//
// The console sees a real terminal this way, which some guests need for
// proper line handling. Client messages like "Connection refused" are part of
// the console output and handled by [Login].
type PTYDialer struct {
	// Command returns the client command for the given address. If not set,
	// [NetcatCommand] is used.
	Command func(ctx context.Context, addr Address) (*exec.Cmd, error)
}

var _ Dialer = (*PTYDialer)(nil)

// NetcatCommand returns a "nc" command that connects to the given address.
func NetcatCommand(ctx context.Context, addr Address) (*exec.Cmd, error) {
	switch addr.Network {
	case "unix":
		return exec.CommandContext(ctx, "nc", "-U", addr.Addr), nil
	case "tcp":
		host, port, err := net.SplitHostPort(addr.Addr)
		if err != nil {
			return nil, fmt.Errorf("split address: %w", err)
		}

		return exec.CommandContext(ctx, "nc", host, port), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, addr.Network)
	}
}

// Dial implements [Dialer].
//
// The context only bounds the start of the client. The client keeps running
// until the returned transport is closed.
func (d *PTYDialer) Dial(
	ctx context.Context,
	addr Address,
) (io.ReadWriteCloser, error) {
	command := d.Command
	if command == nil {
		command = NetcatCommand
	}

	// The client must outlive the dial context.
	cmd, err := command(context.WithoutCancel(ctx), addr)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial console %s: %w", addr, err)
	}

	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start console client: %w", err)
	}

	slog.Debug("Started console client",
		slog.String("command", cmd.String()),
		slog.Int("pid", cmd.Process.Pid))

	return &ptyTransport{tty: tty, cmd: cmd}, nil
}

// ptyTransport is the pseudo terminal of a running client command.
//
// Once the client exits, reads fail and the [Session] reports the process as
// terminated.
type ptyTransport struct {
	tty *os.File
	cmd *exec.Cmd
}

func (t *ptyTransport) Read(p []byte) (int, error) {
	return t.tty.Read(p) //nolint:wrapcheck
}

func (t *ptyTransport) Write(p []byte) (int, error) {
	return t.tty.Write(p) //nolint:wrapcheck
}

// Close closes the terminal and stops the client.
func (t *ptyTransport) Close() error {
	err := t.tty.Close()

	_ = t.cmd.Process.Kill()
	_ = t.cmd.Wait()

	if err != nil {
		return fmt.Errorf("close pty: %w", err)
	}

	return nil
}
