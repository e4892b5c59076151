// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"context"
	"fmt"
	"io"
	"net"
)

// Dialer opens the transport to a console.
type Dialer interface {
	Dial(ctx context.Context, addr Address) (io.ReadWriteCloser, error)
}

// NetDialer connects to consoles directly with [net.Dialer].
type NetDialer struct {
	net.Dialer
}

var _ Dialer = (*NetDialer)(nil)

// Dial implements [Dialer].
func (d *NetDialer) Dial(
	ctx context.Context,
	addr Address,
) (io.ReadWriteCloser, error) {
	conn, err := d.DialContext(ctx, addr.Network, addr.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial console %s: %w", addr, err)
	}

	return conn, nil
}

// Open dials the console at the given address and returns a new [Session]
// for it.
func Open(
	ctx context.Context,
	dialer Dialer,
	addr Address,
	opts ...SessionOption,
) (*Session, error) {
	if dialer == nil {
		dialer = &NetDialer{}
	}

	transport, err := dialer.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	return NewSession(transport, opts...), nil
}
