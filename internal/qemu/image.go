// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aibor/virtconsole/internal/cloudinit"
)

// ImageOptions define how a disk image is attached by [Machine.AddImage].
type ImageOptions struct {
	// Credentials of the image's default user. They replace the machine's
	// credentials, if set.
	Username string
	Password string

	// CloudInit attaches a cloud-init seed image that sets the password of
	// the default user.
	CloudInit bool

	// Snapshot writes changes to a temporary file instead of the image.
	Snapshot bool

	// Extra are additional comma separated drive options, like "if=virtio".
	Extra string
}

// AddImage attaches the disk image at path as drive.
//
// Adding an image that is already attached is a no-op. The error is only
// logged, so test setups adding their images repeatedly keep working.
func (m *Machine) AddImage(ctx context.Context, path string, opts ImageOptions) error {
	fileOption := "file=" + path

	for _, arg := range m.args {
		if arg.name == "drive" && arg.HasOption(fileOption) {
			slog.Error("Image already attached",
				slog.String("name", m.name),
				slog.String("path", path),
			)

			return nil
		}
	}

	value := fileOption
	if opts.Extra != "" {
		value += "," + opts.Extra
	}

	if opts.Snapshot {
		value += ",snapshot=on"
	}

	m.args = append(m.args, RepeatableArg("drive", value))

	if opts.Username != "" {
		m.Username = opts.Username
	}

	if opts.Password != "" {
		m.Password = opts.Password
	}

	if !opts.CloudInit {
		return nil
	}

	isoPath, err := m.seeder.BuildSeed(ctx, cloudinit.Seed{
		InstanceID: m.name,
		Hostname:   m.name,
		Username:   m.Username,
		Password:   m.Password,
	})
	if err != nil {
		return fmt.Errorf("cloud-init seed for %s: %w", path, err)
	}

	slog.Debug("Cloud-init seed built",
		slog.String("name", m.name),
		slog.String("path", isoPath),
	)

	m.args = append(m.args, UniqueArg("cdrom", isoPath))
	m.seeds = append(m.seeds, filepath.Dir(isoPath))

	return nil
}
