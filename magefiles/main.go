// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

const pkg = "github.com/aibor/virtconsole/cmd/virtconsole"

var env map[string]string

func init() {
	env = make(map[string]string)

	gobin, exists := os.LookupEnv("GOBIN")
	if !exists {
		gobin = "./gobin"
	}

	if gobin != "" {
		p, err := filepath.Abs(gobin)
		if err == nil {
			gobin = p
		}
	}

	env["GOBIN"] = gobin
}

// Install virtconsole to gobin directory, if any source changed.
func Install() error {
	path := filepath.Join(env["GOBIN"], "virtconsole")

	changed, err := target.Dir(path, "cmd", "internal")
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	return sh.RunWith(env, "go", "install", pkg)
}

// Test runs the unit tests with race detector and coverage.
func Test(verbose bool) error {
	args := []string{
		"test",
		"-race",
		"-timeout", "2m",
		"-cover",
		"-coverprofile", "/tmp/cover.out",
	}

	if verbose {
		args = append(args, "-v")
	}

	args = append(args, "./...")

	return sh.RunWithV(env, "go", args...)
}

// Login installs virtconsole and logs into the machine defined by the given
// config file.
func Login(config string) error {
	mg.Deps(Install)

	return sh.RunWithV(env, filepath.Join(env["GOBIN"], "virtconsole"),
		"login", "--config", config)
}

// Remove volatile files.
func Clean() error {
	return sh.Rm(env["GOBIN"])
}
