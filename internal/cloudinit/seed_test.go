// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cloudinit_test

import (
	"strings"
	"testing"

	"github.com/aibor/virtconsole/internal/cloudinit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testSeed = cloudinit.Seed{
	InstanceID: "qemu-1234abcd",
	Hostname:   "qemu-1234abcd",
	Username:   "avocado",
	Password:   "s3cr3t",
}

func TestSeed_MetaData(t *testing.T) {
	data, err := testSeed.MetaData()
	require.NoError(t, err)

	var actual map[string]string

	require.NoError(t, yaml.Unmarshal(data, &actual))

	assert.Equal(t, map[string]string{
		"instance-id":    "qemu-1234abcd",
		"local-hostname": "qemu-1234abcd",
	}, actual)
}

func TestSeed_UserData(t *testing.T) {
	data, err := testSeed.UserData()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(string(data), "#cloud-config\n"),
		"user-data must start with cloud-config header")

	var actual struct {
		Password  string `yaml:"password"`
		SSHPwauth bool   `yaml:"ssh_pwauth"`
		Chpasswd  struct {
			Expire *bool `yaml:"expire"`
		} `yaml:"chpasswd"`
		SystemInfo struct {
			DefaultUser struct {
				Name string `yaml:"name"`
			} `yaml:"default_user"`
		} `yaml:"system_info"`
	}

	require.NoError(t, yaml.Unmarshal(data, &actual))

	assert.Equal(t, "s3cr3t", actual.Password)
	assert.True(t, actual.SSHPwauth)
	require.NotNil(t, actual.Chpasswd.Expire, "expire must be set explicitly")
	assert.False(t, *actual.Chpasswd.Expire)
	assert.Equal(t, "avocado", actual.SystemInfo.DefaultUser.Name)
}
