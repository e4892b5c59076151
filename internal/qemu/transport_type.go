// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"slices"
	"strings"
)

const (
	// TransportTypeISA is ISA legacy transport. The console is attached as
	// serial port. It should work for amd64 in any case.
	TransportTypeISA TransportType = "isa"
	// TransportTypePCI is VirtIO PCI transport. Requires a guest kernel built
	// with CONFIG_VIRTIO_PCI.
	TransportTypePCI TransportType = "pci"
	// TransportTypeMMIO is Virtio MMIO transport. Requires a guest kernel
	// built with CONFIG_VIRTIO_MMIO.
	TransportTypeMMIO TransportType = "mmio"
)

// consoleID is the QEMU chardev ID of the console.
const consoleID = "console"

// TransportType represents QEMU IO transport types.
type TransportType string

func (t TransportType) isKnown() bool {
	knownTransportTypes := []TransportType{
		TransportTypeISA,
		TransportTypePCI,
		TransportTypeMMIO,
	}

	return slices.Contains(knownTransportTypes, t)
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *TransportType) UnmarshalText(text []byte) error {
	tt := TransportType(text)

	if !tt.isKnown() {
		return ErrTransportTypeInvalid
	}

	*t = tt

	return nil
}

// ConsoleDeviceName returns the name of the guest's console device, as
// passed to the kernel with "console=".
func (t TransportType) ConsoleDeviceName() string {
	if t == TransportTypeISA {
		return "ttyS0"
	}

	return "hvc0"
}

// consoleArguments returns the arguments for a console attached to a unix
// socket QEMU listens on.
func consoleArguments(transportType TransportType, socketPath string) []Argument {
	chardev := RepeatableArg("chardev", strings.Join([]string{
		"socket",
		"id=" + consoleID,
		"path=" + socketPath,
		"server=on",
		"wait=off",
	}, ","))

	switch transportType {
	case TransportTypeISA:
		return []Argument{
			chardev,
			RepeatableArg("serial", "chardev:"+consoleID),
		}
	case TransportTypePCI:
		return []Argument{
			chardev,
			RepeatableArg("device", "virtio-serial-pci,max_ports=8"),
			RepeatableArg("device", "virtconsole,chardev="+consoleID),
		}
	case TransportTypeMMIO:
		return []Argument{
			chardev,
			RepeatableArg("device", "virtio-serial-device,max_ports=8"),
			RepeatableArg("device", "virtconsole,chardev="+consoleID),
		}
	default: // Ignore invalid transport types.
		return nil
	}
}
