// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cloudinit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultGenISOImageBinary is the tool used for building seed images.
const DefaultGenISOImageBinary = "genisoimage"

// volumeID is the label cloud-init's NoCloud data source looks for.
const volumeID = "cidata"

// ErrToolNotFound is returned if the ISO image tool is not installed.
var ErrToolNotFound = errors.New("iso image tool not found")

// GenISOImage builds seed images with genisoimage.
type GenISOImage struct {
	// Binary is the genisoimage binary. [DefaultGenISOImageBinary] if empty.
	Binary string

	// Dir is the parent directory for the seed directories. [os.TempDir] is
	// used if empty.
	Dir string
}

// BuildSeed writes the seed files into a new temporary directory and builds
// an ISO image of them in there. It returns the path of the image. The
// directory is left for the caller to remove once the image is not used
// anymore.
func (g *GenISOImage) BuildSeed(ctx context.Context, seed Seed) (string, error) {
	binary := g.Binary
	if binary == "" {
		binary = DefaultGenISOImageBinary
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolNotFound, err)
	}

	dir, err := os.MkdirTemp(g.Dir, "cloudinit-")
	if err != nil {
		return "", fmt.Errorf("create seed dir: %w", err)
	}

	files, err := writeSeedFiles(dir, seed)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	isoPath := filepath.Join(dir, "cdrom.iso")

	args := []string{
		"-output", isoPath,
		"-volid", volumeID,
		"-joliet",
		"-rock",
	}
	args = append(args, files...)

	cmd := exec.CommandContext(ctx, path, args...)

	slog.Debug("Build cloud-init seed", slog.String("command", cmd.String()))

	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("%s: %w: %s", binary, err, out)
	}

	return isoPath, nil
}

func writeSeedFiles(dir string, seed Seed) ([]string, error) {
	metaData, err := seed.MetaData()
	if err != nil {
		return nil, err
	}

	userData, err := seed.UserData()
	if err != nil {
		return nil, err
	}

	files := []struct {
		name string
		data []byte
	}{
		{"meta-data", metaData},
		{"user-data", userData},
	}

	paths := make([]string, 0, len(files))

	for _, file := range files {
		path := filepath.Join(dir, file.name)
		if err := os.WriteFile(path, file.data, 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", file.name, err)
		}

		paths = append(paths, path)
	}

	return paths, nil
}
