// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runtesting provides a scripted command runner for tests.
package runtesting

import (
	"context"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/internal/run"
)

// MockRunner verifies that commands are run in the expected order and
// replays canned responses.
type MockRunner struct {
	c        *gc.C
	commands []*MockCall
}

// MockCall is a single expected command.
type MockCall struct {
	params run.Params
	stdout string
	err    error
}

// NewMockRunner returns a runner with no expectations.
func NewMockRunner(c *gc.C) *MockRunner {
	return &MockRunner{c: c}
}

// Expect records that cmd will be run with args.
func (m *MockRunner) Expect(cmd string, args ...string) *MockCall {
	return m.ExpectParams(run.Cmd(cmd, args...))
}

// ExpectParams records a fully specified command.
func (m *MockRunner) ExpectParams(p run.Params) *MockCall {
	call := &MockCall{params: p}
	m.commands = append(m.commands, call)
	return call
}

// Respond sets the output and error returned for the call.
func (call *MockCall) Respond(stdout string, err error) {
	call.stdout = stdout
	call.err = err
}

// Run satisfies run.Func.
func (m *MockRunner) Run(_ context.Context, p run.Params) (string, error) {
	m.c.Assert(m.commands, gc.Not(gc.HasLen), 0, gc.Commentf("unexpected command: %s", p))
	expect := m.commands[0]
	m.commands = m.commands[1:]
	m.c.Assert(p, jc.DeepEquals, expect.params)
	return expect.stdout, expect.err
}

// AssertDrained checks that every expected command was run.
func (m *MockRunner) AssertDrained() {
	m.c.Assert(m.commands, gc.HasLen, 0)
}
