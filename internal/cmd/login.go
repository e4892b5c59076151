// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"log/slog"

	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/spf13/cobra"
)

func newLoginCommand(env *environment, flags *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Start a machine, log into its console and run commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(env, cmd, flags)
			if err != nil {
				return err
			}

			return runLogin(cmd.Context(), env, cfg)
		},
	}
}

func runLogin(ctx context.Context, env *environment, cfg *Config) error {
	consoleLog, closeLog, err := openConsoleLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	machine, err := newMachine(ctx, env, cfg, consoleLog)
	if err != nil {
		return err
	}

	err = machine.Launch(ctx, cfg.Console)
	defer shutdown(ctx, machine)

	if err != nil {
		return err
	}

	_, err = session(ctx, machine, cfg, env.io.Stdout)

	return err
}

// shutdown stops the machines even if ctx is canceled already.
func shutdown(ctx context.Context, machines ...*qemu.Machine) {
	err := qemu.ShutdownAll(context.WithoutCancel(ctx), machines...)
	if err != nil {
		slog.Error("Failed to shut down", slog.Any("error", err))
	}
}
