// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package compose

import (
	"context"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/juju/agentbox/internal/run"
)

// Runner drives the orchestration tool.
type Runner struct {
	Run run.Func

	// Tool is the path of the orchestration binary.
	Tool string
}

// UpCommand returns the command which starts the services defined in
// dir, detached.
func (r Runner) UpCommand(dir string) run.Params {
	return run.Params{
		Command: r.Tool,
		Args:    []string{"-f", filepath.Join(dir, FileName), "up", "-d"},
		Dir:     dir,
	}
}

// Up starts the services defined in dir and returns once the tool has
// handed them to the container runtime.
func (r Runner) Up(ctx context.Context, dir string) error {
	p := r.UpCommand(dir)
	out, err := r.Run(ctx, p)
	if err != nil {
		return errors.Annotatef(err, "starting services in %s", dir)
	}
	logger.Debugf("%s: %s", p, out)
	return nil
}
