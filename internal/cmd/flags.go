// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"time"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/spf13/pflag"
)

// flags are the command line flags. Flags set explicitly override the
// values of the config file.
type flags struct {
	configPath string
	debug      bool

	arch          string
	binary        string
	username      string
	password      string
	prompt        string
	console       string
	consoleClient string
	consoleLog    string
	noKVM         bool
	images        []string
	cloudInit     bool
	commands      []string

	migrationTimeout      time.Duration
	migrationPollInterval time.Duration
	migrationCount        int
	migrationConsole      string
	verify                bool
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "",
		"machine config file (default \""+DefaultConfigFile+"\", if present)")
	fs.BoolVar(&f.debug, "debug", false,
		"enable debug output")
	fs.StringVar(&f.arch, "arch", "",
		"guest architecture (default host architecture)")
	fs.StringVar(&f.binary, "qemu-bin", "",
		"QEMU binary to use (default derived from arch)")
	fs.StringVarP(&f.username, "username", "u", "",
		"username for the console login")
	fs.StringVarP(&f.password, "password", "p", "",
		"password for the console login")
	fs.StringVar(&f.prompt, "prompt", "",
		"shell prompt pattern (default "+console.DefaultShellPrompt+")")
	fs.StringVar(&f.console, "console", "",
		"console address, like tcp:localhost:4444 (default attached by QEMU)")
	fs.StringVar(&f.consoleClient, "console-client", "",
		"console client: "+ConsoleClientSocket+" or "+ConsoleClientNetcat+
			" (default "+ConsoleClientSocket+")")
	fs.StringVar(&f.consoleLog, "console-log", "",
		"write console output to file")
	fs.BoolVar(&f.noKVM, "nokvm", false,
		"disable hardware support")
	fs.StringArrayVarP(&f.images, "image", "i", nil,
		"disk image to attach, can be repeated")
	fs.BoolVar(&f.cloudInit, "cloudinit", false,
		"seed images given by flag with cloud-init credentials")
	fs.StringArrayVarP(&f.commands, "command", "x", nil,
		"command to run after login, can be repeated")
}

func (f *flags) registerMigration(fs *pflag.FlagSet) {
	fs.DurationVar(&f.migrationTimeout, "timeout", 0,
		"maximum time a migration may take (default 20s)")
	fs.DurationVar(&f.migrationPollInterval, "poll-interval", 0,
		"migration status poll interval (default 1s)")
	fs.IntVarP(&f.migrationCount, "count", "n", 0,
		"number of consecutive migrations (default 1)")
	fs.StringVar(&f.migrationConsole, "destination-console", "",
		"console address of the destination (default attached by QEMU)")
	fs.BoolVar(&f.verify, "verify", false,
		"fail if command outputs change by a migration")
}

// apply overrides config values with all flags set explicitly.
func (f *flags) apply(fs *pflag.FlagSet, cfg *Config) error {
	if fs.Changed("arch") {
		if err := cfg.Arch.Set(f.arch); err != nil {
			return fmt.Errorf("arch %q: %w", f.arch, err)
		}
	}

	if fs.Changed("console") {
		addr, err := console.ParseAddress(f.console)
		if err != nil {
			return err
		}

		cfg.Console = &addr
	}

	if fs.Changed("destination-console") {
		addr, err := console.ParseAddress(f.migrationConsole)
		if err != nil {
			return err
		}

		cfg.Migration.Console = &addr
	}

	setIfChanged(fs, "qemu-bin", &cfg.Binary, f.binary)
	setIfChanged(fs, "username", &cfg.Username, f.username)
	setIfChanged(fs, "password", &cfg.Password, f.password)
	setIfChanged(fs, "prompt", &cfg.Prompt, f.prompt)
	setIfChanged(fs, "console-client", &cfg.ConsoleClient, f.consoleClient)
	setIfChanged(fs, "console-log", &cfg.ConsoleLog, f.consoleLog)
	setIfChanged(fs, "nokvm", &cfg.Hardware.NoKVM, f.noKVM)
	setIfChanged(fs, "command", &cfg.Commands, f.commands)
	setIfChanged(fs, "timeout", &cfg.Migration.Timeout, f.migrationTimeout)
	setIfChanged(fs, "poll-interval", &cfg.Migration.PollInterval, f.migrationPollInterval)
	setIfChanged(fs, "count", &cfg.Migration.Count, f.migrationCount)
	setIfChanged(fs, "verify", &cfg.Migration.Verify, f.verify)

	for _, path := range f.images {
		cfg.Images = append(cfg.Images, ImageConfig{
			Path:      path,
			CloudInit: f.cloudInit,
		})
	}

	return nil
}

func setIfChanged[T any](fs *pflag.FlagSet, name string, dst *T, value T) {
	if fs.Changed(name) {
		*dst = value
	}
}
