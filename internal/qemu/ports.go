// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
)

// Default port range used by [NewPortAllocator].
const (
	DefaultPortRangeStart = 5000
	DefaultPortRangeEnd   = 5999
)

// PortAllocator hands out TCP ports that are neither used by another
// [Machine] sharing the allocator nor bound by any other process at
// allocation time.
//
// The zero value is not usable, use [NewPortAllocator].
type PortAllocator struct {
	// Start and End define the inclusive port range.
	Start int
	End   int

	// IsFree checks if the port can be bound on the host.
	IsFree func(port int) bool

	mu   sync.Mutex
	used map[int]struct{}
	next int
}

// NewPortAllocator returns a new [PortAllocator] for the given inclusive
// range that checks the host for bound ports.
func NewPortAllocator(start, end int) *PortAllocator {
	return &PortAllocator{
		Start:  start,
		End:    end,
		IsFree: portIsFree,
	}
}

// Allocate returns a free port and marks it as used until it is released
// with [PortAllocator.Release].
func (a *PortAllocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.used == nil {
		a.used = make(map[int]struct{})
	}

	if a.next < a.Start || a.next > a.End {
		a.next = a.Start
	}

	// Search round robin, so recently released ports are not handed out
	// right away again.
	for range a.End - a.Start + 1 {
		port := a.next

		a.next++
		if a.next > a.End {
			a.next = a.Start
		}

		if _, used := a.used[port]; used {
			continue
		}

		if a.IsFree != nil && !a.IsFree(port) {
			continue
		}

		a.used[port] = struct{}{}

		slog.Debug("Allocated port", slog.Int("port", port))

		return port, nil
	}

	return 0, fmt.Errorf("%w in range %d-%d", ErrNoFreePort, a.Start, a.End)
}

// Release marks the given ports as free again.
func (a *PortAllocator) Release(ports ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, port := range ports {
		delete(a.used, port)
	}
}

func portIsFree(port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return false
	}

	_ = listener.Close()

	return true
}
