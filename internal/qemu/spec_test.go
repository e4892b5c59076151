// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"testing"

	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/aibor/virtconsole/internal/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec_AddDefaultsFor(t *testing.T) {
	tests := []struct {
		arch          sys.Arch
		machine       string
		transportType qemu.TransportType
	}{
		{sys.AMD64, "q35", qemu.TransportTypePCI},
		{sys.ARM64, "virt", qemu.TransportTypeMMIO},
		{sys.RISCV64, "virt", qemu.TransportTypeMMIO},
		{sys.PPC64LE, "pseries", qemu.TransportTypePCI},
	}

	for _, tt := range tests {
		t.Run(tt.arch.String(), func(t *testing.T) {
			var spec qemu.Spec

			require.NoError(t, spec.AddDefaultsFor(tt.arch))

			assert.Equal(t, tt.machine, spec.Machine)
			assert.Equal(t, tt.transportType, spec.TransportType)

			if !tt.arch.IsNative() {
				assert.True(t, spec.NoKVM, "no KVM for foreign arch")
			}
		})
	}

	t.Run("keeps set values", func(t *testing.T) {
		spec := qemu.Spec{
			Machine:       "microvm",
			TransportType: qemu.TransportTypeISA,
			NoKVM:         true,
		}

		require.NoError(t, spec.AddDefaultsFor(sys.AMD64))

		assert.Equal(t, "microvm", spec.Machine)
		assert.Equal(t, qemu.TransportTypeISA, spec.TransportType)
		assert.True(t, spec.NoKVM)
	})

	t.Run("unknown arch", func(t *testing.T) {
		var spec qemu.Spec

		err := spec.AddDefaultsFor(sys.Arch("mips"))
		require.ErrorIs(t, err, sys.ErrArchNotSupported)
	})
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name  string
		spec  qemu.Spec
		valid bool
	}{
		{
			name: "q35 pci",
			spec: qemu.Spec{
				Machine:       "q35",
				TransportType: qemu.TransportTypePCI,
			},
			valid: true,
		},
		{
			name: "q35 mmio",
			spec: qemu.Spec{
				Machine:       "q35",
				TransportType: qemu.TransportTypeMMIO,
			},
		},
		{
			name: "virt isa",
			spec: qemu.Spec{
				Machine:       "virt",
				TransportType: qemu.TransportTypeISA,
			},
		},
		{
			name: "microvm pci",
			spec: qemu.Spec{
				Machine:       "microvm",
				TransportType: qemu.TransportTypePCI,
			},
		},
		{
			name: "unknown transport",
			spec: qemu.Spec{
				Machine:       "q35",
				TransportType: qemu.TransportType("ccw"),
			},
		},
		{
			name: "initrd without kernel",
			spec: qemu.Spec{
				Machine:       "q35",
				TransportType: qemu.TransportTypePCI,
				Initrd:        "initrd.img",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, &qemu.ArgumentError{})
			}
		})
	}
}
