// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/aibor/virtconsole/internal/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogin = console.LoginConfig{
	Timeout:      2 * time.Second,
	PollInterval: 20 * time.Millisecond,
	RetryDelay:   10 * time.Millisecond,
}

func newTestMachine(
	t *testing.T,
	launcher qemu.Launcher,
	modify ...func(*qemu.MachineConfig),
) *qemu.Machine {
	t.Helper()

	cfg := qemu.MachineConfig{
		Arch:     sys.AMD64,
		Username: "root",
		Password: "secret",
		Spec:     qemu.Spec{NoKVM: true},
		Ports:    &qemu.PortAllocator{Start: 7000, End: 7010, IsFree: allFree},
		Launcher: launcher,
		Login:    testLogin,
	}

	for _, fn := range modify {
		fn(&cfg)
	}

	machine, err := qemu.NewMachine(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = machine.Shutdown(t.Context()) })

	return machine
}

// fakeGuestConsole serves a console on a unix socket that answers received
// lines with the given replies.
func fakeGuestConsole(t *testing.T, replies map[string]string) console.Address {
	t.Helper()

	path := filepath.Join(t.TempDir(), "console.sock")

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if reply, exists := replies[scanner.Text()]; exists {
				_, _ = conn.Write([]byte(reply))
			}
		}
	}()

	return console.UnixAddress(path)
}

func TestNewMachine(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		machine, err := qemu.NewMachine(qemu.MachineConfig{
			Arch: sys.ARM64,
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(machine.Name(), "qemu-"), machine.Name())
		assert.Len(t, machine.Name(), len("qemu-")+8)
		assert.Equal(t, sys.ARM64, machine.Arch())
		assert.Equal(t, "qemu-system-aarch64", machine.Binary())
		assert.False(t, machine.Running())
		assert.Empty(t, machine.Args())
	})

	t.Run("unique names", func(t *testing.T) {
		a, err := qemu.NewMachine(qemu.MachineConfig{Arch: sys.AMD64})
		require.NoError(t, err)

		b, err := qemu.NewMachine(qemu.MachineConfig{Arch: sys.AMD64})
		require.NoError(t, err)

		assert.NotEqual(t, a.Name(), b.Name())
	})

	t.Run("unknown arch", func(t *testing.T) {
		_, err := qemu.NewMachine(qemu.MachineConfig{Arch: sys.Arch("mips")})
		require.ErrorIs(t, err, sys.ErrArchNotSupported)
	})

	t.Run("invalid spec", func(t *testing.T) {
		_, err := qemu.NewMachine(qemu.MachineConfig{
			Arch: sys.AMD64,
			Spec: qemu.Spec{TransportType: qemu.TransportTypeMMIO},
		})
		require.ErrorIs(t, err, &qemu.ArgumentError{})
	})
}

func TestMachine_Launch(t *testing.T) {
	t.Run("launcher console", func(t *testing.T) {
		launcher := &qemu.FakeLauncher{
			ConsoleAddress: console.UnixAddress("/run/vm/console.sock"),
		}
		machine := newTestMachine(t, launcher, func(cfg *qemu.MachineConfig) {
			cfg.Name = "vm"
			cfg.Binary = "/usr/bin/qemu-kvm"
		})
		machine.AddArgs(qemu.RepeatableArg("device", "nec-usb-xhci,id=xhci1"))

		require.NoError(t, machine.Launch(t.Context(), nil))

		assert.True(t, machine.Running())
		assert.Equal(t, launcher.ConsoleAddress, machine.ConsoleAddress())

		instances := launcher.Instances()
		require.Len(t, instances, 1)

		spec := instances[0].Spec
		assert.Equal(t, "vm", spec.Name)
		assert.Equal(t, "/usr/bin/qemu-kvm", spec.Binary)
		assert.Equal(t, qemu.TransportTypePCI, spec.TransportType)
		assert.Contains(t, spec.Args, qemu.UniqueArg("machine", "q35"))
		assert.Contains(t, spec.Args,
			qemu.RepeatableArg("device", "nec-usb-xhci,id=xhci1"))
	})

	t.Run("explicit console", func(t *testing.T) {
		launcher := &qemu.FakeLauncher{
			ConsoleAddress: console.UnixAddress("/run/vm/console.sock"),
		}
		machine := newTestMachine(t, launcher)
		addr := console.TCPAddress("127.0.0.1", 4444)

		require.NoError(t, machine.Launch(t.Context(), &addr))

		assert.Equal(t, addr, machine.ConsoleAddress())
	})

	t.Run("no console", func(t *testing.T) {
		machine := newTestMachine(t, &qemu.FakeLauncher{})

		err := machine.Launch(t.Context(), nil)
		require.ErrorIs(t, err, &qemu.ConsoleError{})
		require.ErrorIs(t, err, qemu.ErrNoConsoleAddress)
	})

	t.Run("launcher fails", func(t *testing.T) {
		machine := newTestMachine(t, &qemu.FakeLauncher{Err: assert.AnError})

		err := machine.Launch(t.Context(), nil)
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, machine.Running())
	})

	t.Run("already running", func(t *testing.T) {
		launcher := &qemu.FakeLauncher{
			ConsoleAddress: console.UnixAddress("/run/vm/console.sock"),
		}
		machine := newTestMachine(t, launcher)

		require.NoError(t, machine.Launch(t.Context(), nil))

		err := machine.Launch(t.Context(), nil)
		require.ErrorIs(t, err, qemu.ErrAlreadyRunning)
		assert.Len(t, launcher.Instances(), 1)
	})
}

func TestMachine_Console(t *testing.T) {
	t.Run("preconditions", func(t *testing.T) {
		tests := []struct {
			name        string
			username    string
			password    string
			launch      bool
			addr        *console.Address
			expectedErr error
		}{
			{
				name:        "no username",
				password:    "secret",
				launch:      true,
				expectedErr: qemu.ErrCredentialsMissing,
			},
			{
				name:        "no password",
				username:    "root",
				launch:      true,
				expectedErr: qemu.ErrCredentialsMissing,
			},
			{
				name:        "not running",
				username:    "root",
				password:    "secret",
				expectedErr: qemu.ErrNotRunning,
			},
			{
				name:        "empty address",
				username:    "root",
				password:    "secret",
				launch:      true,
				addr:        &console.Address{},
				expectedErr: qemu.ErrNoConsoleAddress,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				launcher := &qemu.FakeLauncher{
					ConsoleAddress: console.UnixAddress("/nonexistent/console.sock"),
				}
				machine := newTestMachine(t, launcher)
				machine.Username = tt.username
				machine.Password = tt.password

				if tt.launch {
					require.NoError(t, machine.Launch(t.Context(), nil))
				}

				_, err := machine.Console(t.Context(), tt.addr, "")
				require.ErrorIs(t, err, &qemu.ConsoleError{})
				require.ErrorIs(t, err, tt.expectedErr)
			})
		}
	})

	t.Run("dial fails", func(t *testing.T) {
		launcher := &qemu.FakeLauncher{
			ConsoleAddress: console.UnixAddress(
				filepath.Join(t.TempDir(), "missing.sock")),
		}
		machine := newTestMachine(t, launcher)

		require.NoError(t, machine.Launch(t.Context(), nil))

		_, err := machine.Console(t.Context(), nil, "")
		require.ErrorIs(t, err, &qemu.ConsoleError{})
	})

	t.Run("login", func(t *testing.T) {
		addr := fakeGuestConsole(t, map[string]string{
			"":       "\r\nvm login: ",
			"root":   "Password: ",
			"secret": "\r\nLast login: Mon Jan 1 on ttyS0\r\n[root@vm ~]# ",
		})
		machine := newTestMachine(t, &qemu.FakeLauncher{ConsoleAddress: addr})

		require.NoError(t, machine.Launch(t.Context(), nil))

		session, err := machine.Console(t.Context(), nil, "")
		require.NoError(t, err)

		t.Cleanup(func() { _ = session.Close() })

		assert.False(t, session.Closed())
	})

	t.Run("authentication failure", func(t *testing.T) {
		addr := fakeGuestConsole(t, map[string]string{
			"":       "\r\nPassword: ",
			"secret": "\r\nLogin incorrect\r\nPassword: ",
		})
		machine := newTestMachine(t, &qemu.FakeLauncher{ConsoleAddress: addr})

		require.NoError(t, machine.Launch(t.Context(), nil))

		_, err := machine.Console(t.Context(), nil, "")
		require.ErrorIs(t, err, console.ErrPasswordPromptTwice)
		require.ErrorIs(t, err, console.ErrAuthenticationFailure)

		var loginErr *console.LoginError

		require.ErrorAs(t, err, &loginErr)
		assert.Contains(t, loginErr.Output, "Login incorrect")
	})
}

func TestMachine_Request(t *testing.T) {
	launcher := &qemu.FakeLauncher{
		ConsoleAddress: console.UnixAddress("/run/vm/console.sock"),
		Handler: func(
			_ qemu.LaunchSpec,
			method string,
			args map[string]any,
		) (qemu.Response, error) {
			switch method {
			case "human-monitor-command":
				return qemu.Response{"return": "VM status: running\r\n"}, nil
			case "qom-get":
				return qemu.Response{"return": "/machine/peripheral/xhci1/usb-bus.0"}, nil
			default:
				return nil, assert.AnError
			}
		},
	}
	machine := newTestMachine(t, launcher)

	_, err := machine.Request(t.Context(), "query-status", nil)
	require.ErrorIs(t, err, qemu.ErrNotRunning)

	require.NoError(t, machine.Launch(t.Context(), nil))

	_, err = machine.Request(t.Context(), "query-status", nil)
	require.ErrorIs(t, err, assert.AnError)

	status, err := machine.HumanMonitorCommand(t.Context(), "info status")
	require.NoError(t, err)
	assert.Equal(t, "VM status: running\r\n", status)

	bus, err := machine.DeviceParentBus(t.Context(), "usbdev1")
	require.NoError(t, err)
	assert.Equal(t, "/machine/peripheral/xhci1/usb-bus.0", bus)

	requests := launcher.Instances()[0].Requests()
	require.Len(t, requests, 3, "requests before launch never reach QEMU")
	assert.Equal(t, qemu.FakeRequest{Method: "query-status"}, requests[0])
	assert.Equal(t, qemu.FakeRequest{
		Method: "human-monitor-command",
		Args:   map[string]any{"command-line": "info status"},
	}, requests[1])
	assert.Equal(t, qemu.FakeRequest{
		Method: "qom-get",
		Args: map[string]any{
			"path":     "/machine/peripheral/usbdev1",
			"property": "parent_bus",
		},
	}, requests[2])
}

func TestShutdownAll(t *testing.T) {
	launcher := &qemu.FakeLauncher{
		ConsoleAddress: console.UnixAddress("/run/vm/console.sock"),
	}
	first := newTestMachine(t, launcher)
	second := newTestMachine(t, launcher)
	notLaunched := newTestMachine(t, launcher)

	require.NoError(t, first.Launch(t.Context(), nil))
	require.NoError(t, second.Launch(t.Context(), nil))

	require.NoError(t, qemu.ShutdownAll(t.Context(), first, nil, second, notLaunched))

	assert.False(t, first.Running())
	assert.False(t, second.Running())

	for _, instance := range launcher.Instances() {
		assert.False(t, instance.Running())
	}
}
