// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/cenkalti/backoff/v5"
)

// Migration defaults.
const (
	DefaultMigrationTimeout      = 20 * time.Second
	DefaultMigrationPollInterval = time.Second
)

// Migration status markers in the output of "info migrate".
const (
	migrationCompleted = "completed"
	migrationFailed    = "failed"
)

// errMigrationInProgress is returned by a poll that found the migration
// still running. It makes the poll being retried.
var errMigrationInProgress = errors.New("migration in progress")

// MigrateOptions define a [Machine.Migrate] run.
type MigrateOptions struct {
	// ConsoleAddress of the destination. The one provided by the [Launcher]
	// is used if nil.
	ConsoleAddress *console.Address

	// Timeout is the maximum time the migration may take once started.
	// [DefaultMigrationTimeout] if not set.
	Timeout time.Duration

	// PollInterval is the interval the migration status is polled with.
	// [DefaultMigrationPollInterval] if not set.
	PollInterval time.Duration
}

func (o *MigrateOptions) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultMigrationTimeout
	}

	if o.PollInterval <= 0 {
		o.PollInterval = DefaultMigrationPollInterval
	}
}

// Migration is a live migration from a running source to a destination
// waiting for the incoming migration.
type Migration struct {
	Source      *Machine
	Destination *Machine

	// Endpoint the destination listens on, like "tcp:0:5000".
	Endpoint string

	Timeout      time.Duration
	PollInterval time.Duration

	// Polls is the number of status queries run so far.
	Polls int

	// Status is the last status reported by the source.
	Status string
}

func migrationEndpoint(port int) string {
	return "tcp:0:" + strconv.Itoa(port)
}

// Migrate live migrates the machine to a new machine with the same
// configuration and returns the new machine once the migration completed.
//
// The destination is launched waiting for an incoming migration on a port
// allocated from the machine's [PortAllocator]. If the migration fails after
// the destination has been created, the destination is returned along with
// the error, so the caller can shut it down. Seed images are handed over to
// the destination once the migration completed.
//
// All errors are of type [MigrationError]. A migration reported as failed by
// the source is [ErrMigrationFailed], one that does not complete in time
// [ErrMigrationTimeout].
func (m *Machine) Migrate(ctx context.Context, opts MigrateOptions) (*Machine, error) {
	opts.setDefaults()

	fail := func(err error) error {
		return &MigrationError{Source: m.name, Err: err}
	}

	if !m.Running() {
		return nil, fail(ErrNotRunning)
	}

	port, err := m.ports.Allocate()
	if err != nil {
		return nil, fail(fmt.Errorf("allocate port: %w", err))
	}

	dst := m.migrationDestination(port)

	if err := dst.Launch(ctx, opts.ConsoleAddress); err != nil {
		return dst, fail(fmt.Errorf("destination: %w", err))
	}

	migration := &Migration{
		Source:       m,
		Destination:  dst,
		Endpoint:     migrationEndpoint(port),
		Timeout:      opts.Timeout,
		PollInterval: opts.PollInterval,
	}

	if err := migration.Run(ctx); err != nil {
		return dst, err
	}

	// The destination uses the seed images from now on.
	dst.seeds, m.seeds = m.seeds, nil

	return dst, nil
}

// Run starts the migration on the source and waits for it to complete.
func (g *Migration) Run(ctx context.Context) error {
	slog.Info("Migration started",
		slog.String("source", g.Source.name),
		slog.String("destination", g.Destination.name),
		slog.String("endpoint", g.Endpoint),
	)

	// Detached, so the status can be polled.
	_, err := g.Source.HumanMonitorCommand(ctx, "migrate -d "+g.Endpoint)
	if err != nil {
		return g.fail(fmt.Errorf("start: %w", err))
	}

	poll := func() (string, error) {
		return g.poll(ctx)
	}

	// The deadline bounds the polling only. Requests use ctx, so a poll
	// running at the deadline still gets its answer.
	pollCtx, cancel := context.WithTimeoutCause(ctx, g.Timeout, errMigrationInProgress)
	defer cancel()

	_, err = backoff.Retry(pollCtx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.PollInterval)),
		// Only a backstop, the deadline of pollCtx hits first.
		backoff.WithMaxElapsedTime(g.Timeout+g.PollInterval),
	)

	switch {
	case err == nil:
		slog.Info("Migration successful",
			slog.String("source", g.Source.name),
			slog.String("destination", g.Destination.name),
		)

		return nil
	case ctx.Err() != nil:
		return g.fail(context.Cause(ctx))
	case errors.Is(err, errMigrationInProgress),
		errors.Is(err, context.DeadlineExceeded):
		return g.fail(fmt.Errorf("%w: not completed after %s",
			ErrMigrationTimeout, g.Timeout))
	case errors.Is(err, ErrMigrationFailed):
		return g.fail(ErrMigrationFailed)
	default:
		return g.fail(fmt.Errorf("query status: %w", err))
	}
}

// poll queries the migration status once.
func (g *Migration) poll(ctx context.Context) (string, error) {
	g.Polls++

	status, err := g.Source.HumanMonitorCommand(ctx, "info migrate")
	if err != nil {
		return "", backoff.Permanent(err)
	}

	g.Status = strings.TrimSpace(status)

	slog.Debug("Migration status",
		slog.String("source", g.Source.name),
		slog.Int("poll", g.Polls),
		slog.String("status", g.Status),
	)

	switch {
	case strings.Contains(status, migrationCompleted):
		return status, nil
	case strings.Contains(status, migrationFailed):
		return "", backoff.Permanent(ErrMigrationFailed)
	default:
		return "", errMigrationInProgress
	}
}

func (g *Migration) fail(err error) error {
	return &MigrationError{Source: g.Source.name, Err: err, Status: g.Status}
}
