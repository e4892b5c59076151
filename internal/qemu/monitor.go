// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/digitalocean/go-qemu/qmp"
)

const (
	monitorDialTimeout   = time.Second
	monitorRetryInterval = 50 * time.Millisecond
)

// Response is a decoded QMP response.
type Response map[string]any

// Return returns the "return" member of the response if it is a string, as
// it is for "human-monitor-command".
func (r Response) Return() string {
	s, _ := r["return"].(string)
	return s
}

// monitor is a QMP connection to a QEMU process.
type monitor struct {
	mu  sync.Mutex
	qmp *qmp.SocketMonitor
}

// connectMonitor connects to the QMP unix socket at path. QEMU creates the
// socket shortly after start, so connecting is retried until timeout. It
// gives up immediately once exited is closed.
func connectMonitor(
	ctx context.Context,
	path string,
	exited <-chan struct{},
	timeout time.Duration,
) (*monitor, error) {
	connect := func() (*qmp.SocketMonitor, error) {
		select {
		case <-exited:
			return nil, backoff.Permanent(ErrProcessExited)
		default:
		}

		mon, err := qmp.NewSocketMonitor("unix", path, monitorDialTimeout)
		if err != nil {
			return nil, err
		}

		if err := mon.Connect(); err != nil {
			return nil, err
		}

		return mon, nil
	}

	mon, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewConstantBackOff(monitorRetryInterval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect monitor %s: %w", path, err)
	}

	slog.Debug("Monitor connected", slog.String("path", path))

	return &monitor{qmp: mon}, nil
}

// request runs a QMP command. An error response of QEMU is returned as
// error.
func (m *monitor) request(
	ctx context.Context,
	method string,
	args map[string]any,
) (Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	command := qmp.Command{Execute: method}
	if len(args) > 0 {
		command.Args = args
	}

	raw, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	slog.Debug("QMP request", slog.String("command", string(raw)))

	out, err := m.qmp.Run(raw)
	if err != nil {
		return nil, fmt.Errorf("qmp %s: %w", method, err)
	}

	var response Response
	if err := json.Unmarshal(out, &response); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}

	return response, nil
}

func (m *monitor) close() error {
	return m.qmp.Disconnect()
}
