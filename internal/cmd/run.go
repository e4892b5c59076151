// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/spf13/cobra"
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// environment holds everything the commands interact with outside of their
// arguments.
type environment struct {
	io IO

	// fsys is the root file system config files are read from.
	fsys fs.FS

	// launcher starts machines. An [qemu.ExecLauncher] is used if nil.
	launcher qemu.Launcher

	// ports is shared by all machines of a command run.
	ports *qemu.PortAllocator
}

func newEnvironment(cfg IO) *environment {
	return &environment{
		io:    cfg,
		fsys:  os.DirFS("/"),
		ports: qemu.NewPortAllocator(qemu.DefaultPortRangeStart, qemu.DefaultPortRangeEnd),
	}
}

func newRootCommand(env *environment) *cobra.Command {
	flags := &flags{}

	root := &cobra.Command{
		Use:   "virtconsole",
		Short: "Log into QEMU guest consoles and live migrate guests",
		Long: "virtconsole starts QEMU machines, logs into their consoles, runs " +
			"commands and verifies they survive live migrations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version(),
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(env.io.Stderr, flags.debug)
		},
	}

	root.SetIn(env.io.Stdin)
	root.SetOut(env.io.Stdout)
	root.SetErr(env.io.Stderr)

	flags.register(root.PersistentFlags())

	root.AddCommand(
		newLoginCommand(env, flags),
		newMigrateCommand(env, flags),
	)

	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(env *environment, cmd *cobra.Command, flags *flags) (*Config, error) {
	path, optional := flags.configPath, false
	if path == "" {
		path, optional = DefaultConfigFile, true
	}

	abs, err := AbsoluteFilePath(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg, err := LoadConfig(env.fsys, strings.TrimPrefix(abs, "/"), optional)
	if err != nil {
		return nil, err
	}

	if err := flags.apply(cmd.Flags(), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newMachine creates a machine as defined by the config with all images
// attached.
func newMachine(
	ctx context.Context,
	env *environment,
	cfg *Config,
	consoleLog io.Writer,
) (*qemu.Machine, error) {
	machineCfg, err := cfg.machineConfig()
	if err != nil {
		return nil, err
	}

	machineCfg.Ports = env.ports
	machineCfg.ConsoleLog = consoleLog

	machineCfg.Launcher = env.launcher
	if machineCfg.Launcher == nil {
		machineCfg.Launcher = &qemu.ExecLauncher{Stderr: env.io.Stderr}
	}

	machine, err := qemu.NewMachine(machineCfg)
	if err != nil {
		return nil, fmt.Errorf("new machine: %w", err)
	}

	for _, image := range cfg.Images {
		path, err := AbsoluteFilePath(image.Path)
		if err != nil {
			return nil, fmt.Errorf("image: %w", err)
		}

		if err := ValidateFilePath(path); err != nil {
			return nil, fmt.Errorf("image: %w", err)
		}

		if err := machine.AddImage(ctx, path, cfg.imageOptions(image)); err != nil {
			return nil, err
		}
	}

	return machine, nil
}

// openConsoleLog opens the console log file, if configured.
func openConsoleLog(cfg *Config) (io.Writer, func(), error) {
	if cfg.ConsoleLog == "" {
		return nil, func() {}, nil
	}

	file, err := os.Create(cfg.ConsoleLog)
	if err != nil {
		return nil, nil, fmt.Errorf("console log: %w", err)
	}

	closeFn := func() {
		if err := file.Close(); err != nil {
			slog.Error("Failed to close console log",
				slog.String("path", cfg.ConsoleLog),
				slog.Any("error", err),
			)
		}
	}

	return file, closeFn, nil
}

// session logs into the machine's console, runs the configured commands and
// closes the console again. It returns the output of the commands.
func session(
	ctx context.Context,
	machine *qemu.Machine,
	cfg *Config,
	out io.Writer,
) ([]string, error) {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = console.DefaultShellPrompt
	}

	promptPattern, err := console.NewPattern(prompt)
	if err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}

	conn, err := machine.Console(ctx, nil, prompt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	outputs := make([]string, 0, len(cfg.Commands))

	for _, command := range cfg.Commands {
		output, err := conn.Cmd(command, promptPattern, cfg.commandTimeout())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", machine.Name(), err)
		}

		fmt.Fprintf(out, "[%s] $ %s\n%s\n", machine.Name(), command, output)

		outputs = append(outputs, output)
	}

	return outputs, nil
}

func handleRunError(err error) int {
	var loginErr *console.LoginError
	if errors.As(err, &loginErr) {
		slog.Debug("Console output until failure",
			slog.String("output", loginErr.Output))
	}

	if errors.Is(err, qemu.ErrMigrationTimeout) {
		slog.Warn("Guest might need a longer migration timeout")
	}

	slog.Error(err.Error())

	return -1
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	return run(ctx, args, newEnvironment(cfg))
}

func run(ctx context.Context, args []string, env *environment) int {
	setupLogging(env.io.Stderr, false)

	root := newRootCommand(env)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		return handleRunError(err)
	}

	return 0
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	return buildInfo.Main.Version
}
