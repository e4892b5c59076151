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
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/aibor/virtconsole/internal/console"
	"golang.org/x/sys/unix"
)

const (
	// DefaultMonitorTimeout is the time QEMU has to create its QMP socket.
	DefaultMonitorTimeout = 10 * time.Second

	shutdownGracePeriod = 10 * time.Second
)

// ExecLauncher starts QEMU as child process.
//
// The console is attached to a unix socket and the QMP monitor to another
// one, both in a temporary directory that is removed on shutdown.
type ExecLauncher struct {
	// Dir is the parent directory for the temporary socket directory.
	// [os.TempDir] is used if empty.
	Dir string

	// Stdout and Stderr of the QEMU process. Discarded if nil.
	Stdout io.Writer
	Stderr io.Writer

	// MonitorTimeout is the maximum time to wait for the QMP socket.
	// [DefaultMonitorTimeout] if not set.
	MonitorTimeout time.Duration
}

var _ Launcher = (*ExecLauncher)(nil)

// Launch implements [Launcher].
func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Instance, error) {
	dir, err := os.MkdirTemp(l.Dir, spec.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	consolePath := filepath.Join(dir, "console.sock")
	monitorPath := filepath.Join(dir, "qmp.sock")

	args := slices.Concat(
		spec.Args,
		consoleArguments(spec.TransportType, consolePath),
		[]Argument{UniqueArg("qmp", "unix:"+monitorPath+",server=on,wait=off")},
	)

	argStrings, err := BuildArgumentStrings(args)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	// The process must outlive the context of the caller's current
	// operation, so it is stopped by Shutdown only.
	cmd := exec.Command(spec.Binary, argStrings...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.SysProcAttr = sysProcAttr()

	slog.Debug("QEMU command", slog.String("command", cmd.String()))

	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("start %s: %w", spec.Binary, err)
	}

	instance := &execInstance{
		name:        spec.Name,
		cmd:         cmd,
		dir:         dir,
		consoleAddr: console.UnixAddress(consolePath),
		exited:      make(chan struct{}),
	}

	go instance.wait()

	timeout := l.MonitorTimeout
	if timeout <= 0 {
		timeout = DefaultMonitorTimeout
	}

	instance.monitor, err = connectMonitor(ctx, monitorPath, instance.exited, timeout)
	if err != nil {
		_ = instance.kill()
		_ = os.RemoveAll(dir)

		return nil, err
	}

	return instance, nil
}

type execInstance struct {
	name        string
	cmd         *exec.Cmd
	dir         string
	consoleAddr console.Address
	monitor     *monitor

	exited  chan struct{}
	waitErr error

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ Instance = (*execInstance)(nil)

func (i *execInstance) wait() {
	i.waitErr = i.cmd.Wait()
	slog.Debug("QEMU process exited",
		slog.String("name", i.name),
		slog.Any("status", i.waitErr),
	)
	close(i.exited)
}

// Request implements [Instance].
func (i *execInstance) Request(
	ctx context.Context,
	method string,
	args map[string]any,
) (Response, error) {
	if !i.Running() {
		return nil, ErrNotRunning
	}

	return i.monitor.request(ctx, method, args)
}

// ConsoleAddress implements [Instance].
func (i *execInstance) ConsoleAddress() console.Address {
	return i.consoleAddr
}

// Running implements [Instance].
func (i *execInstance) Running() bool {
	select {
	case <-i.exited:
		return false
	default:
		return true
	}
}

// Shutdown implements [Instance].
//
// QEMU is asked to quit via QMP first. If that fails, it is terminated. If it
// does not exit in time, it is killed.
func (i *execInstance) Shutdown(ctx context.Context) error {
	i.shutdownOnce.Do(func() {
		i.shutdownErr = i.shutdown(ctx)
	})

	return i.shutdownErr
}

func (i *execInstance) shutdown(ctx context.Context) error {
	if i.Running() {
		if _, err := i.monitor.request(ctx, "quit", nil); err != nil {
			slog.Debug("QMP quit failed, sending SIGTERM",
				slog.String("name", i.name),
				slog.Any("error", err),
			)

			_ = i.cmd.Process.Signal(unix.SIGTERM)
		}
	}

	timer := time.NewTimer(shutdownGracePeriod)
	defer timer.Stop()

	var err error

	select {
	case <-i.exited:
	case <-timer.C:
		err = i.kill()
	case <-ctx.Done():
		err = errors.Join(ctx.Err(), i.kill())
	}

	return errors.Join(err, i.monitor.close(), os.RemoveAll(i.dir))
}

func (i *execInstance) kill() error {
	err := i.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		err = nil
	}

	<-i.exited

	return err
}
