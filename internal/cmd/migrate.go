// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aibor/virtconsole/internal/qemu"
	"github.com/spf13/cobra"
)

func newMigrateCommand(env *environment, flags *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Start a machine and live migrate it",
		Long: "Start a machine, log into its console and run the commands. Then " +
			"live migrate it to a new machine, log in there and run the " +
			"commands again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(env, cmd, flags)
			if err != nil {
				return err
			}

			return runMigrate(cmd.Context(), env, cfg)
		},
	}

	flags.registerMigration(cmd.Flags())

	return cmd
}

func runMigrate(ctx context.Context, env *environment, cfg *Config) error {
	consoleLog, closeLog, err := openConsoleLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	source, err := newMachine(ctx, env, cfg, consoleLog)
	if err != nil {
		return err
	}

	machines := []*qemu.Machine{source}
	defer func() { shutdown(ctx, machines...) }()

	if err := source.Launch(ctx, cfg.Console); err != nil {
		return err
	}

	before, err := session(ctx, source, cfg, env.io.Stdout)
	if err != nil {
		return err
	}

	current := source

	for iteration := range max(cfg.Migration.Count, 1) {
		destination, err := current.Migrate(ctx, cfg.migrateOptions())
		if destination != nil {
			machines = append(machines, destination)
		}

		if err != nil {
			return err
		}

		// The source is paused after the migration.
		if err := current.Shutdown(ctx); err != nil {
			return err
		}

		current = destination

		after, err := session(ctx, current, cfg, env.io.Stdout)
		if err != nil {
			return err
		}

		if cfg.Migration.Verify {
			if err := compareOutputs(cfg.Commands, before, after); err != nil {
				return fmt.Errorf("migration %d: %w", iteration+1, err)
			}
		}

		slog.Info("Migration verified",
			slog.Int("iteration", iteration+1),
			slog.String("machine", current.Name()),
		)
	}

	return nil
}

func compareOutputs(commands, before, after []string) error {
	for idx, command := range commands {
		if before[idx] != after[idx] {
			return fmt.Errorf("%w: %q: %q != %q",
				ErrOutputMismatch, command, before[idx], after[idx])
		}
	}

	return nil
}
