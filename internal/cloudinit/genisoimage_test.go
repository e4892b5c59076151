// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cloudinit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/virtconsole/internal/cloudinit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes a shell script that records its arguments and creates the
// file given with -output.
func fakeTool(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "genisoimage")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o700))

	return path
}

func TestGenISOImage_BuildSeed(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	t.Run("success", func(t *testing.T) {
		builder := &cloudinit.GenISOImage{
			Binary: fakeTool(t, `echo "$@" > "$2.args"; touch "$2"`),
			Dir:    t.TempDir(),
		}

		isoPath, err := builder.BuildSeed(t.Context(), testSeed)
		require.NoError(t, err)

		assert.Equal(t, "cdrom.iso", filepath.Base(isoPath))
		assert.FileExists(t, isoPath)

		dir := filepath.Dir(isoPath)
		assert.FileExists(t, filepath.Join(dir, "meta-data"))
		assert.FileExists(t, filepath.Join(dir, "user-data"))

		args, err := os.ReadFile(isoPath + ".args")
		require.NoError(t, err)
		assert.Contains(t, string(args), "-volid cidata -joliet -rock")
	})

	t.Run("tool fails", func(t *testing.T) {
		parent := t.TempDir()
		builder := &cloudinit.GenISOImage{
			Binary: fakeTool(t, `echo broken image; exit 3`),
			Dir:    parent,
		}

		_, err := builder.BuildSeed(t.Context(), testSeed)
		require.ErrorContains(t, err, "broken image")

		entries, err := os.ReadDir(parent)
		require.NoError(t, err)
		assert.Empty(t, entries, "seed dir should be removed")
	})

	t.Run("tool missing", func(t *testing.T) {
		builder := &cloudinit.GenISOImage{
			Binary: filepath.Join(t.TempDir(), "missing"),
		}

		_, err := builder.BuildSeed(t.Context(), testSeed)
		require.ErrorIs(t, err, cloudinit.ErrToolNotFound)
	})
}
