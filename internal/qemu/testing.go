// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"sync"

	"github.com/aibor/virtconsole/internal/console"
	"github.com/stretchr/testify/assert"
)

// ArgumentValueAssertionFunc returns an [assert.ComparisonAssertionFunc] that
// can be used to assert the values of all Arguments with the given name.
func ArgumentValueAssertionFunc(
	name string,
	assertion assert.ComparisonAssertionFunc,
) assert.ComparisonAssertionFunc {
	return func(t assert.TestingT, arg1, arg2 any, arg3 ...any) bool {
		args, ok := arg1.([]Argument)
		if !assert.True(t, ok, "first argument should be []Argument") {
			return false
		}

		var values []string

		for _, arg := range args {
			if name == arg.name {
				values = append(values, arg.value)
			}
		}

		return assertion(t, values, arg2, arg3...)
	}
}

// FakeRequestHandler answers QMP requests sent to a [FakeInstance].
type FakeRequestHandler func(
	spec LaunchSpec,
	method string,
	args map[string]any,
) (Response, error)

// FakeRequest is a QMP request received by a [FakeInstance].
type FakeRequest struct {
	Method string
	Args   map[string]any
}

// FakeLauncher is a [Launcher] that does not start any process. It can be
// used in tests of code controlling [Machine]s.
type FakeLauncher struct {
	// ConsoleAddress is returned by all instances.
	ConsoleAddress console.Address

	// Handler answers requests. Requests return an empty response if nil.
	Handler FakeRequestHandler

	// Err is returned by Launch, if set.
	Err error

	mu        sync.Mutex
	instances []*FakeInstance
}

var _ Launcher = (*FakeLauncher)(nil)

// Launch implements [Launcher].
func (l *FakeLauncher) Launch(_ context.Context, spec LaunchSpec) (Instance, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	instance := &FakeInstance{
		Spec:     spec,
		launcher: l,
		running:  true,
	}

	l.mu.Lock()
	l.instances = append(l.instances, instance)
	l.mu.Unlock()

	return instance, nil
}

// Instances returns all instances launched so far.
func (l *FakeLauncher) Instances() []*FakeInstance {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*FakeInstance(nil), l.instances...)
}

// FakeInstance is an [Instance] created by a [FakeLauncher].
type FakeInstance struct {
	Spec LaunchSpec

	launcher *FakeLauncher

	mu       sync.Mutex
	requests []FakeRequest
	running  bool
}

var _ Instance = (*FakeInstance)(nil)

// Request implements [Instance].
func (i *FakeInstance) Request(
	_ context.Context,
	method string,
	args map[string]any,
) (Response, error) {
	i.mu.Lock()
	i.requests = append(i.requests, FakeRequest{Method: method, Args: args})
	running := i.running
	i.mu.Unlock()

	if !running {
		return nil, ErrNotRunning
	}

	if i.launcher.Handler == nil {
		return Response{"return": map[string]any{}}, nil
	}

	return i.launcher.Handler(i.Spec, method, args)
}

// Requests returns all requests received so far.
func (i *FakeInstance) Requests() []FakeRequest {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]FakeRequest(nil), i.requests...)
}

// ConsoleAddress implements [Instance].
func (i *FakeInstance) ConsoleAddress() console.Address {
	return i.launcher.ConsoleAddress
}

// Running implements [Instance].
func (i *FakeInstance) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.running
}

// Shutdown implements [Instance].
func (i *FakeInstance) Shutdown(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.running = false

	return nil
}
