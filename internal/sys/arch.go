// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sys provides information about the host system and the
// architectures QEMU guests can be run with.
package sys

import (
	"errors"
	"os"
	"runtime"
)

// Arch is a guest architecture in GOARCH notation.
type Arch string

// Supported guest architectures.
const (
	AMD64   Arch = "amd64"
	ARM64   Arch = "arm64"
	RISCV64 Arch = "riscv64"
	PPC64LE Arch = "ppc64le"
	S390X   Arch = "s390x"
)

// Native is the architecture of the host. Using the same architecture for the
// guest allows using KVM, if available. Use [Arch.KVMAvailable] to check.
const Native Arch = Arch(runtime.GOARCH)

// ErrArchNotSupported is returned for unknown architectures.
var ErrArchNotSupported = errors.New("architecture not supported")

// qemuArchs maps to the architecture names used by QEMU, which match the
// kernel's machine names.
var qemuArchs = map[Arch]string{
	AMD64:   "x86_64",
	ARM64:   "aarch64",
	RISCV64: "riscv64",
	PPC64LE: "ppc64",
	S390X:   "s390x",
}

func (a Arch) String() string {
	return string(a)
}

// IsNative reports whether the architecture is the one of the host.
func (a Arch) IsNative() bool {
	return Native == a
}

// QEMUArch returns the QEMU name of the architecture.
func (a Arch) QEMUArch() (string, error) {
	name, exists := qemuArchs[a]
	if !exists {
		return "", ErrArchNotSupported
	}

	return name, nil
}

// QEMUBinary returns the name of the qemu-system binary for the
// architecture.
func (a Arch) QEMUBinary() (string, error) {
	name, err := a.QEMUArch()
	if err != nil {
		return "", err
	}

	return "qemu-system-" + name, nil
}

// KVMAvailable checks if KVM support is available for the given architecture.
func (a Arch) KVMAvailable() bool {
	if !a.IsNative() {
		return false
	}

	f, err := os.OpenFile("/dev/kvm", os.O_WRONLY, 0)
	if err != nil {
		return false
	}

	_ = f.Close()

	return true
}

// Set sets the architecture from the given string. Besides GOARCH names, the
// kernel machine names, like "x86_64", are accepted.
func (a *Arch) Set(s string) error {
	if _, exists := qemuArchs[Arch(s)]; exists {
		*a = Arch(s)
		return nil
	}

	for arch, name := range qemuArchs {
		if name == s {
			*a = arch
			return nil
		}
	}

	return ErrArchNotSupported
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (a *Arch) UnmarshalText(text []byte) error {
	return a.Set(string(text))
}
