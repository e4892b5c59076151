// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address is the address a console is reachable at.
//
// It is either a unix socket path or a TCP host and port.
type Address struct {
	Network string
	Addr    string
}

// UnixAddress returns the [Address] of a unix socket console.
func UnixAddress(path string) Address {
	return Address{Network: "unix", Addr: path}
}

// TCPAddress returns the [Address] of a TCP console.
func TCPAddress(host string, port int) Address {
	return Address{
		Network: "tcp",
		Addr:    net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Addr == ""
}

// String implements [fmt.Stringer].
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}

	return a.Network + ":" + a.Addr
}

// ParseAddress parses an address in the format returned by
// [Address.String], like "unix:/run/console.sock" or "tcp:localhost:4444".
func ParseAddress(s string) (Address, error) {
	network, addr, found := strings.Cut(s, ":")
	if !found || addr == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	switch network {
	case "unix":
		return UnixAddress(addr), nil
	case "tcp":
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}

		return Address{Network: network, Addr: addr}, nil
	default:
		return Address{}, fmt.Errorf("%w: unknown network %q",
			ErrInvalidAddress, network)
	}
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}
