// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cloudinit builds NoCloud seed images that let cloud-init set up
// the default user of a guest image.
package cloudinit

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const userDataHeader = "#cloud-config\n"

// Seed is the data cloud-init is seeded with.
type Seed struct {
	InstanceID string
	Hostname   string
	Username   string
	Password   string
}

type metaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

type userData struct {
	Password   string     `yaml:"password"`
	SSHPwauth  bool       `yaml:"ssh_pwauth"`
	Chpasswd   chpasswd   `yaml:"chpasswd"`
	SystemInfo systemInfo `yaml:"system_info"`
}

type chpasswd struct {
	Expire bool `yaml:"expire"`
}

type systemInfo struct {
	DefaultUser defaultUser `yaml:"default_user"`
}

type defaultUser struct {
	Name string `yaml:"name"`
}

// MetaData renders the "meta-data" file.
func (s Seed) MetaData() ([]byte, error) {
	data, err := yaml.Marshal(metaData{
		InstanceID:    s.InstanceID,
		LocalHostname: s.Hostname,
	})
	if err != nil {
		return nil, fmt.Errorf("render meta-data: %w", err)
	}

	return data, nil
}

// UserData renders the "user-data" file. The password of the default user is
// set and does not expire, so it can be used for console logins right away.
func (s Seed) UserData() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(userDataHeader)

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	err := encoder.Encode(userData{
		Password:   s.Password,
		SSHPwauth:  true,
		Chpasswd:   chpasswd{Expire: false},
		SystemInfo: systemInfo{DefaultUser: defaultUser{Name: s.Username}},
	})
	if err != nil {
		return nil, fmt.Errorf("render user-data: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("render user-data: %w", err)
	}

	return buf.Bytes(), nil
}
