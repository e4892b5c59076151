// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/aibor/virtconsole/internal/cloudinit"
	"github.com/aibor/virtconsole/internal/console"
	"github.com/aibor/virtconsole/internal/sys"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const machineNamePrefix = "qemu-"

// SeedBuilder builds cloud-init seed images.
//
// Each image must be placed in a directory of its own. The machine removes
// that directory on [Machine.Shutdown].
type SeedBuilder interface {
	BuildSeed(ctx context.Context, seed cloudinit.Seed) (string, error)
}

// MachineConfig defines a [Machine].
type MachineConfig struct {
	// Name of the machine. A random name is generated if empty.
	Name string

	// Arch is the guest architecture. [sys.Native] if empty.
	Arch sys.Arch

	// Binary is the qemu-system binary. Derived from Arch if empty.
	Binary string

	// DestinationBinary is the binary used for migration destinations.
	// Binary is used if empty.
	DestinationBinary string

	// Credentials used for console logins.
	Username string
	Password string

	// Spec is the hardware definition.
	Spec Spec

	// Ports allocates migration ports. Machines that might run concurrently
	// should share an allocator. A private one is created if nil.
	Ports *PortAllocator

	// Launcher starts the QEMU process. [ExecLauncher] if nil.
	Launcher Launcher

	// Dialer connects to the console. [console.NetDialer] if nil.
	Dialer console.Dialer

	// Seeder builds cloud-init seed images. [cloudinit.GenISOImage] if nil.
	Seeder SeedBuilder

	// Login timing. Credentials and prompt are set per [Machine.Console]
	// call.
	Login console.LoginConfig

	// ConsoleLog receives all console output, if set.
	ConsoleLog io.Writer
}

// Machine is a QEMU virtual machine under control of this process.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	Username string
	Password string

	name      string
	arch      sys.Arch
	binary    string
	dstBinary string
	spec      Spec
	args      []Argument

	ports     *PortAllocator
	allocated []int

	launcher   Launcher
	dialer     console.Dialer
	seeder     SeedBuilder
	login      console.LoginConfig
	consoleLog io.Writer

	// Directories of seed images built for this machine.
	seeds []string

	instance    Instance
	consoleAddr console.Address
}

// NewMachine creates a new [Machine] from the given config. Unset fields are
// set to defaults.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.Arch == "" {
		cfg.Arch = sys.Native
	}

	if cfg.Name == "" {
		cfg.Name = machineNamePrefix + uuid.NewString()[:8]
	}

	if cfg.Binary == "" {
		binary, err := cfg.Arch.QEMUBinary()
		if err != nil {
			return nil, fmt.Errorf("binary for %s: %w", cfg.Arch, err)
		}

		cfg.Binary = binary
	}

	if cfg.DestinationBinary == "" {
		cfg.DestinationBinary = cfg.Binary
	}

	if err := cfg.Spec.AddDefaultsFor(cfg.Arch); err != nil {
		return nil, fmt.Errorf("defaults for %s: %w", cfg.Arch, err)
	}

	if err := cfg.Spec.Validate(); err != nil {
		return nil, err
	}

	if cfg.Ports == nil {
		cfg.Ports = NewPortAllocator(DefaultPortRangeStart, DefaultPortRangeEnd)
	}

	if cfg.Launcher == nil {
		cfg.Launcher = &ExecLauncher{}
	}

	if cfg.Dialer == nil {
		cfg.Dialer = &console.NetDialer{}
	}

	if cfg.Seeder == nil {
		cfg.Seeder = &cloudinit.GenISOImage{}
	}

	return &Machine{
		Username:   cfg.Username,
		Password:   cfg.Password,
		name:       cfg.Name,
		arch:       cfg.Arch,
		binary:     cfg.Binary,
		dstBinary:  cfg.DestinationBinary,
		spec:       cfg.Spec,
		ports:      cfg.Ports,
		launcher:   cfg.Launcher,
		dialer:     cfg.Dialer,
		seeder:     cfg.Seeder,
		login:      cfg.Login,
		consoleLog: cfg.ConsoleLog,
	}, nil
}

// Name returns the name of the machine.
func (m *Machine) Name() string {
	return m.name
}

// Arch returns the guest architecture of the machine.
func (m *Machine) Arch() sys.Arch {
	return m.arch
}

// Binary returns the qemu-system binary of the machine.
func (m *Machine) Binary() string {
	return m.binary
}

// Args returns a copy of the machine's arguments added with
// [Machine.AddArgs] and [Machine.AddImage].
func (m *Machine) Args() []Argument {
	return slices.Clone(m.args)
}

// AddArgs adds arguments to the machine. They are used on the next launch.
func (m *Machine) AddArgs(args ...Argument) {
	m.args = append(m.args, args...)
}

// Ports returns the ports allocated for the machine.
func (m *Machine) Ports() []int {
	return slices.Clone(m.allocated)
}

// Running reports whether the machine's process is alive.
func (m *Machine) Running() bool {
	return m.instance != nil && m.instance.Running()
}

// ConsoleAddress returns the address of the machine's console. It is zero
// until the machine is launched.
func (m *Machine) ConsoleAddress() console.Address {
	return m.consoleAddr
}

func (m *Machine) arguments() []Argument {
	return slices.Concat(m.spec.arguments(), m.args)
}

// Launch starts the machine.
//
// The console is expected at the given address. If nil, the address
// provided by the [Launcher] is used. It is an error if there is none.
func (m *Machine) Launch(ctx context.Context, consoleAddr *console.Address) error {
	if m.Running() {
		return fmt.Errorf("launch %s: %w", m.name, ErrAlreadyRunning)
	}

	instance, err := m.launcher.Launch(ctx, LaunchSpec{
		Name:          m.name,
		Binary:        m.binary,
		Args:          m.arguments(),
		TransportType: m.spec.TransportType,
	})
	if err != nil {
		return fmt.Errorf("launch %s: %w", m.name, err)
	}

	m.instance = instance

	m.consoleAddr = instance.ConsoleAddress()
	if consoleAddr != nil {
		m.consoleAddr = *consoleAddr
	}

	if m.consoleAddr.IsZero() {
		return &ConsoleError{Name: m.name, Err: ErrNoConsoleAddress}
	}

	slog.Info("Machine launched",
		slog.String("name", m.name),
		slog.String("console", m.consoleAddr.String()),
	)

	return nil
}

// Console opens a console session and logs in with the machine's
// credentials. It returns the session once the shell prompt showed up.
//
// The console at the given address is used, or the one the machine was
// launched with if nil. An empty prompt uses [console.DefaultShellPrompt].
func (m *Machine) Console(
	ctx context.Context,
	addr *console.Address,
	prompt string,
) (*console.Session, error) {
	if m.Username == "" || m.Password == "" {
		return nil, &ConsoleError{Name: m.name, Err: ErrCredentialsMissing}
	}

	if !m.Running() {
		return nil, &ConsoleError{Name: m.name, Err: ErrNotRunning}
	}

	target := m.consoleAddr
	if addr != nil {
		target = *addr
	}

	if target.IsZero() {
		return nil, &ConsoleError{Name: m.name, Err: ErrNoConsoleAddress}
	}

	var opts []console.SessionOption
	if m.consoleLog != nil {
		opts = append(opts, console.WithLog(m.consoleLog))
	}

	session, err := console.Open(ctx, m.dialer, target, opts...)
	if err != nil {
		return nil, &ConsoleError{Name: m.name, Err: err}
	}

	slog.Info("Console: Waiting for login prompt",
		slog.String("name", m.name),
		slog.String("console", target.String()),
	)

	cfg := m.login
	cfg.Username = m.Username
	cfg.Password = m.Password
	cfg.Prompt = prompt

	if _, err := console.Login(session, cfg); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("console %s: %w", m.name, err)
	}

	slog.Info("Console: Ready", slog.String("name", m.name))

	return session, nil
}

// Request sends a QMP command to the machine.
func (m *Machine) Request(
	ctx context.Context,
	method string,
	args map[string]any,
) (Response, error) {
	if m.instance == nil {
		return nil, fmt.Errorf("%s: %w", m.name, ErrNotRunning)
	}

	return m.instance.Request(ctx, method, args)
}

// HumanMonitorCommand runs a human monitor (HMP) command line, like
// "info status", and returns its output.
func (m *Machine) HumanMonitorCommand(ctx context.Context, line string) (string, error) {
	response, err := m.Request(ctx, "human-monitor-command", map[string]any{
		"command-line": line,
	})
	if err != nil {
		return "", err
	}

	return response.Return(), nil
}

// DeviceParentBus returns the bus the device with the given ID is plugged
// into.
func (m *Machine) DeviceParentBus(ctx context.Context, id string) (string, error) {
	response, err := m.Request(ctx, "qom-get", map[string]any{
		"path":     "/machine/peripheral/" + id,
		"property": "parent_bus",
	})
	if err != nil {
		return "", err
	}

	return response.Return(), nil
}

// Shutdown stops the machine, releases its ports and removes its seed
// images. Stopping is a no-op for machines not launched.
func (m *Machine) Shutdown(ctx context.Context) error {
	defer func() {
		m.ports.Release(m.allocated...)
		m.allocated = nil

		m.removeSeeds()
	}()

	if m.instance == nil {
		return nil
	}

	if err := m.instance.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", m.name, err)
	}

	slog.Info("Machine stopped", slog.String("name", m.name))

	return nil
}

func (m *Machine) removeSeeds() {
	for _, dir := range m.seeds {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove seed directory",
				slog.String("name", m.name),
				slog.String("path", dir),
				slog.Any("error", err),
			)
		}
	}

	m.seeds = nil
}

// ShutdownAll shuts down all given machines concurrently. Nil machines are
// ignored.
func ShutdownAll(ctx context.Context, machines ...*Machine) error {
	var (
		group errgroup.Group
		errs  = make([]error, len(machines))
	)

	for idx, machine := range machines {
		if machine == nil {
			continue
		}

		group.Go(func() error {
			errs[idx] = machine.Shutdown(ctx)
			return nil
		})
	}

	_ = group.Wait()

	return errors.Join(errs...)
}

// migrationDestination returns a new, not launched machine with the same
// configuration that waits for an incoming migration on the given port. The
// port is owned by the new machine and released on its shutdown.
func (m *Machine) migrationDestination(port int) *Machine {
	args := withoutArgs(m.args, "incoming")
	args = append(args, UniqueArg("incoming", migrationEndpoint(port)))

	return &Machine{
		Username:   m.Username,
		Password:   m.Password,
		name:       machineNamePrefix + uuid.NewString()[:8],
		arch:       m.arch,
		binary:     m.dstBinary,
		dstBinary:  m.dstBinary,
		spec:       m.spec,
		args:       args,
		ports:      m.ports,
		allocated:  []int{port},
		launcher:   m.launcher,
		dialer:     m.dialer,
		seeder:     m.seeder,
		login:      m.login,
		consoleLog: m.consoleLog,
	}
}
