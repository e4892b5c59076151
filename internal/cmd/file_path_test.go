// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/virtconsole/internal/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteFilePath(t *testing.T) {
	_, err := cmd.AbsoluteFilePath("")
	require.ErrorIs(t, err, cmd.ErrEmptyFilePath)

	path, err := cmd.AbsoluteFilePath("/images/disk.img")
	require.NoError(t, err)
	assert.Equal(t, "/images/disk.img", path)

	wd, err := os.Getwd()
	require.NoError(t, err)

	path, err = cmd.AbsoluteFilePath("disk.img")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "disk.img"), path)
}

func TestValidateFilePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "disk.img")

	require.NoError(t, os.WriteFile(file, nil, 0o600))

	require.NoError(t, cmd.ValidateFilePath(file))
	require.ErrorIs(t, cmd.ValidateFilePath(dir), cmd.ErrNotRegularFile)
	require.ErrorIs(t, cmd.ValidateFilePath(filepath.Join(dir, "missing")),
		os.ErrNotExist)
}
