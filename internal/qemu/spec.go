// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"strconv"
	"strings"

	"github.com/aibor/virtconsole/internal/sys"
)

const (
	machineTypeMicroVM = "microvm"
	machineTypePC      = "pc"
	machineTypeQ35     = "q35"
	machineTypeVirt    = "virt"
	machineTypePSeries = "pseries"
	machineTypeS390    = "s390-ccw-virtio"
)

// Spec defines the hardware of a [Machine].
type Spec struct {
	// QEMU machine type to use. Depends on the QEMU binary used.
	Machine string

	// CPU type to use. Depends on machine type and QEMU binary used.
	CPU string

	// Number of CPUs for the guest.
	SMP uint64

	// Memory for the machine in MB.
	Memory uint64

	// Disable KVM support.
	NoKVM bool

	// Transport type for the console. TransportTypeISA should always work on
	// amd64. ARM type virt does not support ISA type at all.
	TransportType TransportType

	// Optional kernel for direct kernel boot. Disk images attached with
	// [Machine.AddImage] are booted by the firmware otherwise.
	Kernel string

	// Optional initramfs for direct kernel boot. Requires Kernel.
	Initrd string

	// Optional kernel command line for direct kernel boot. Requires Kernel.
	KernelCmdline string

	// ExtraArgs are extra arguments that are passed to the QEMU command.
	// They must not interfere with the essential arguments set by the
	// machine itself or an error will be returned on [Machine.Launch].
	ExtraArgs []Argument
}

// AddDefaultsFor adds architecture specific default values to the given spec if
// the fields are not set yet.
func (s *Spec) AddDefaultsFor(arch sys.Arch) error {
	var (
		machine       string
		transportType TransportType
	)

	switch arch {
	case sys.AMD64:
		machine = machineTypeQ35
		transportType = TransportTypePCI
	case sys.ARM64, sys.RISCV64:
		machine = machineTypeVirt
		transportType = TransportTypeMMIO
	case sys.PPC64LE:
		machine = machineTypePSeries
		transportType = TransportTypePCI
	case sys.S390X:
		machine = machineTypeS390
		transportType = TransportTypePCI
	default:
		return sys.ErrArchNotSupported
	}

	if s.Machine == "" {
		s.Machine = machine
	}

	if s.TransportType == "" {
		s.TransportType = transportType
	}

	if !s.NoKVM {
		s.NoKVM = !arch.KVMAvailable()
	}

	return nil
}

// Validate checks for known incompatibilities.
func (s *Spec) Validate() error {
	if !s.TransportType.isKnown() {
		return &ArgumentError{
			"unknown transport type: " + string(s.TransportType),
		}
	}

	if s.Kernel == "" && (s.Initrd != "" || s.KernelCmdline != "") {
		return &ArgumentError{"initrd and kernel cmdline require a kernel"}
	}

	switch s.Machine {
	case machineTypeMicroVM:
		if s.TransportType == TransportTypePCI {
			return &ArgumentError{"microvm does not support pci transport"}
		}
	case machineTypeVirt:
		if s.TransportType == TransportTypeISA {
			return &ArgumentError{"virt requires virtio-mmio or pci"}
		}
	case machineTypeQ35, machineTypePC:
		if s.TransportType == TransportTypeMMIO {
			return &ArgumentError{
				s.Machine + " does not work with virtio-mmio",
			}
		}
	}

	return nil
}

// arguments compiles the hardware argument list for the QEMU command.
func (s *Spec) arguments() []Argument {
	var args []Argument

	if s.Machine != "" {
		args = append(args, UniqueArg("machine", s.Machine))
	}

	if s.CPU != "" {
		args = append(args, UniqueArg("cpu", s.CPU))
	}

	if s.SMP != 0 {
		args = append(args, UniqueArg("smp", strconv.FormatUint(s.SMP, 10)))
	}

	if s.Memory != 0 {
		args = append(args, UniqueArg("m", strconv.FormatUint(s.Memory, 10)))
	}

	if !s.NoKVM {
		args = append(args, UniqueArg("enable-kvm"))
	}

	if s.Kernel != "" {
		args = append(args, UniqueArg("kernel", s.Kernel))

		if s.Initrd != "" {
			args = append(args, UniqueArg("initrd", s.Initrd))
		}

		args = append(args, UniqueArg("append", s.kernelCmdline()))
	}

	args = append(args,
		// Disable video output.
		UniqueArg("display", "none"),
		// Disable all default devices.
		UniqueArg("nodefaults"),
		// Do not load any user config files.
		UniqueArg("no-user-config"),
	)

	return append(args, s.ExtraArgs...)
}

// kernelCmdline returns the kernel command line with the console device of
// the transport type prepended, unless the command line sets one itself.
func (s *Spec) kernelCmdline() string {
	if strings.Contains(s.KernelCmdline, "console=") {
		return s.KernelCmdline
	}

	cmdline := "console=" + s.TransportType.ConsoleDeviceName()
	if s.KernelCmdline != "" {
		cmdline += " " + s.KernelCmdline
	}

	return cmdline
}
