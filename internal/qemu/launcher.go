// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"

	"github.com/aibor/virtconsole/internal/console"
)

// LaunchSpec is everything a [Launcher] needs to start a QEMU process.
type LaunchSpec struct {
	// Name of the machine, used for logging and temporary file names.
	Name string

	// Binary is the qemu-system binary to run.
	Binary string

	// Args are the machine's arguments. Console and monitor arguments are
	// added by the [Launcher].
	Args []Argument

	// TransportType of the console device.
	TransportType TransportType
}

// Launcher starts QEMU processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Instance, error)
}

// Instance is a started QEMU process with a connected QMP monitor.
type Instance interface {
	// Request sends a QMP command and returns the response.
	Request(ctx context.Context, method string, args map[string]any) (Response, error)

	// ConsoleAddress returns the address of the instance's console, if the
	// [Launcher] attached one.
	ConsoleAddress() console.Address

	// Running reports whether the process is still alive.
	Running() bool

	// Shutdown stops the process and releases its resources.
	Shutdown(ctx context.Context) error
}
