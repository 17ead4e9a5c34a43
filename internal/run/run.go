// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package run executes host commands on behalf of the bootstrap steps.
// Every step takes a Func so tests can script the commands they expect
// instead of touching the machine.
package run

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("agentbox.run")

// Params describes a single command invocation.
type Params struct {
	// Command is the executable to run.
	Command string

	// Args are passed to the command verbatim.
	Args []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is added to the inherited environment.
	Env []string
}

// Cmd is shorthand for Params with only a command and arguments.
func Cmd(command string, args ...string) Params {
	return Params{Command: command, Args: args}
}

// String returns the command line quoted for a shell.
func (p Params) String() string {
	return shellquote.Join(append([]string{p.Command}, p.Args...)...)
}

// Func runs a command and returns its combined output.
type Func func(ctx context.Context, p Params) (string, error)

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Output  string
}

// Error is part of the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited %d", e.Command, e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// ExitCode returns the exit status carried by err, or -1 if err did not
// come from a command exiting non-zero.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// LogAndExec runs the command on the host, logging it first.
func LogAndExec(ctx context.Context, p Params) (string, error) {
	logger.Debugf("running: %s", p)
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = p.Dir
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	output := out.String()
	if err == nil {
		return output, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, &ExitError{
			Command: p.Command,
			Code:    exitErr.ExitCode(),
			Output:  output,
		}
	}
	return output, errors.Annotatef(err, "running %s", p.Command)
}
