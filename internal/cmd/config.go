// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aibor/virtconsole/internal/console"
	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/aibor/virtconsole/internal/sys"
)

// DefaultConfigFile is read if present and no config file is given.
const DefaultConfigFile = "virtconsole.toml"

// Console clients.
const (
	ConsoleClientSocket = "socket"
	ConsoleClientNetcat = "nc"
)

// DefaultCommandTimeout is the time a command may take to return to the
// prompt.
const DefaultCommandTimeout = 30 * time.Second

// Config is the machine and session definition read from a TOML file.
//
// Environment variables in the file are expanded with [os.ExpandEnv].
type Config struct {
	Arch              sys.Arch `toml:"arch"`
	Binary            string   `toml:"binary"`
	DestinationBinary string   `toml:"destination_binary"`

	Username string `toml:"username"`
	Password string `toml:"password"`
	Prompt   string `toml:"prompt"`

	// Console overrides the console address, like "tcp:localhost:4444".
	Console *console.Address `toml:"console"`

	// ConsoleClient selects how the console is connected: "socket" (default)
	// connects directly, "nc" runs netcat in a pseudo terminal.
	ConsoleClient string `toml:"console_client"`

	LoginTimeout   time.Duration `toml:"login_timeout"`
	CommandTimeout time.Duration `toml:"command_timeout"`

	// Commands are run after each login.
	Commands []string `toml:"commands"`

	// ConsoleLog is the file all console output is written to.
	ConsoleLog string `toml:"console_log"`

	Hardware  HardwareConfig  `toml:"hardware"`
	Images    []ImageConfig   `toml:"image"`
	Migration MigrationConfig `toml:"migration"`
}

// HardwareConfig defines the QEMU machine.
type HardwareConfig struct {
	Machine       string             `toml:"machine"`
	CPU           string             `toml:"cpu"`
	SMP           uint64             `toml:"smp"`
	Memory        uint64             `toml:"memory"`
	NoKVM         bool               `toml:"nokvm"`
	TransportType qemu.TransportType `toml:"transport"`
	Kernel        string             `toml:"kernel"`
	Initrd        string             `toml:"initrd"`
	KernelCmdline string             `toml:"append"`

	// Args are additional QEMU arguments, each like "-device virtio-rng".
	Args []string `toml:"args"`
}

// ImageConfig defines a disk image.
type ImageConfig struct {
	Path       string `toml:"path"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	CloudInit  bool   `toml:"cloudinit"`
	Persistent bool   `toml:"persistent"`
	Extra      string `toml:"extra"`
}

// MigrationConfig defines the migrations run by the migrate command.
type MigrationConfig struct {
	Timeout      time.Duration `toml:"timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
	Count        int           `toml:"count"`

	// Console overrides the console address of the destinations.
	Console *console.Address `toml:"console"`

	// Verify compares the command outputs before and after each migration.
	Verify bool `toml:"verify"`
}

// LoadConfig reads the config file at path from fsys.
//
// If optional is set, a missing file results in an empty config.
func LoadConfig(fsys fs.FS, path string, optional bool) (*Config, error) {
	cfg := &Config{}

	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, &ConfigError{Path: path, Err: err}
	}

	meta, err := toml.Decode(os.ExpandEnv(string(data)), cfg)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return nil, &ConfigError{
			Path: path,
			Err:  fmt.Errorf("unknown keys: %s", strings.Join(keys, ", ")),
		}
	}

	return cfg, nil
}

// machineConfig returns the [qemu.MachineConfig] for the config.
func (c *Config) machineConfig() (qemu.MachineConfig, error) {
	args, err := parseArguments(c.Hardware.Args)
	if err != nil {
		return qemu.MachineConfig{}, err
	}

	dialer, err := c.consoleDialer()
	if err != nil {
		return qemu.MachineConfig{}, err
	}

	return qemu.MachineConfig{
		Arch:              c.Arch,
		Binary:            c.Binary,
		DestinationBinary: c.DestinationBinary,
		Username:          c.Username,
		Password:          c.Password,
		Spec: qemu.Spec{
			Machine:       c.Hardware.Machine,
			CPU:           c.Hardware.CPU,
			SMP:           c.Hardware.SMP,
			Memory:        c.Hardware.Memory,
			NoKVM:         c.Hardware.NoKVM,
			TransportType: c.Hardware.TransportType,
			Kernel:        c.Hardware.Kernel,
			Initrd:        c.Hardware.Initrd,
			KernelCmdline: c.Hardware.KernelCmdline,
			ExtraArgs:     args,
		},
		Dialer: dialer,
		Login: console.LoginConfig{
			Timeout: c.LoginTimeout,
		},
	}, nil
}

// consoleDialer returns the [console.Dialer] for the configured console
// client.
func (c *Config) consoleDialer() (console.Dialer, error) {
	switch c.ConsoleClient {
	case "", ConsoleClientSocket:
		return &console.NetDialer{}, nil
	case ConsoleClientNetcat:
		return &console.PTYDialer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidConsoleClient, c.ConsoleClient)
	}
}

func (c *Config) commandTimeout() time.Duration {
	if c.CommandTimeout > 0 {
		return c.CommandTimeout
	}

	return DefaultCommandTimeout
}

func (c *Config) migrateOptions() qemu.MigrateOptions {
	return qemu.MigrateOptions{
		ConsoleAddress: c.Migration.Console,
		Timeout:        c.Migration.Timeout,
		PollInterval:   c.Migration.PollInterval,
	}
}

func (c *Config) imageOptions(image ImageConfig) qemu.ImageOptions {
	return qemu.ImageOptions{
		Username:  image.Username,
		Password:  image.Password,
		CloudInit: image.CloudInit,
		Snapshot:  !image.Persistent,
		Extra:     image.Extra,
	}
}

// parseArguments parses QEMU arguments in the form "-name [value]". All of
// them are repeatable, as QEMU decides about their validity.
func parseArguments(args []string) ([]qemu.Argument, error) {
	parsed := make([]qemu.Argument, 0, len(args))

	for _, arg := range args {
		name, value, _ := strings.Cut(strings.TrimSpace(arg), " ")

		name, found := strings.CutPrefix(name, "-")
		if !found || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, arg)
		}

		var values []string
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}

		parsed = append(parsed, qemu.RepeatableArg(name, values...))
	}

	return parsed, nil
}
