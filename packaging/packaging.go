// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package packaging installs the container runtime and the service
// orchestration tool, skipping whatever is already present.
package packaging

import (
	"context"
	"os/exec"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"

	"github.com/juju/agentbox/internal/run"
)

var logger = loggo.GetLogger("agentbox.packaging")

// aptGetCommand is the apt-get invocation cloud-init uses; the options
// stop apt from ever blocking on a prompt.
var aptGetCommand = []string{
	"apt-get", "--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io", "--assume-yes", "--quiet",
}

var aptGetEnvOptions = []string{"DEBIAN_FRONTEND=noninteractive"}

// Installer installs packages and binaries with bounded retries.
type Installer struct {
	Run      run.Func
	LookPath func(string) (string, error)

	// Fetch downloads a URL to a local path.
	Fetch func(ctx context.Context, url, dest string) error

	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
}

// NewInstaller returns an Installer acting on the host.
func NewInstaller(attempts int) *Installer {
	return &Installer{
		Run:      run.LogAndExec,
		LookPath: exec.LookPath,
		Fetch:    Download,
		Attempts: attempts,
		Delay:    10 * time.Second,
		Clock:    clock.WallClock,
	}
}

func aptGet(args ...string) run.Params {
	cmdArgs := append([]string(nil), aptGetCommand[1:]...)
	cmdArgs = append(cmdArgs, args...)
	return run.Params{
		Command: aptGetCommand[0],
		Args:    cmdArgs,
		Env:     aptGetEnvOptions,
	}
}

// EnsurePackage installs pkg unless binary is already on the path. It
// reports whether anything was installed.
func (i *Installer) EnsurePackage(ctx context.Context, pkg, binary string) (bool, error) {
	if path, err := i.LookPath(binary); err == nil {
		logger.Infof("%s already installed at %s", binary, path)
		return false, nil
	}
	err := i.retry(ctx, "installing "+pkg, func() error {
		if _, err := i.Run(ctx, aptGet("update")); err != nil {
			return errors.Annotate(err, "updating package lists")
		}
		if _, err := i.Run(ctx, aptGet("install", pkg)); err != nil {
			return errors.Annotatef(err, "installing %s", pkg)
		}
		return nil
	})
	if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// EnsureBinary downloads url to dest unless an executable is already
// there. It reports whether anything was installed.
func (i *Installer) EnsureBinary(ctx context.Context, url, dest string) (bool, error) {
	if isExecutable(dest) {
		logger.Infof("%s already installed", dest)
		return false, nil
	}
	err := i.retry(ctx, "downloading "+url, func() error {
		return i.Fetch(ctx, url, dest)
	})
	if err != nil {
		return false, errors.Annotatef(err, "installing %s", dest)
	}
	return true, nil
}

func (i *Installer) retry(ctx context.Context, what string, f func() error) error {
	err := retry.Call(retry.CallArgs{
		Func: f,
		IsFatalError: func(err error) bool {
			return errors.IsNotFound(err) || errors.IsNotValid(err)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Warningf("%s, attempt %d: %v", what, attempt, err)
		},
		Attempts: i.Attempts,
		Delay:    i.Delay,
		Clock:    i.Clock,
		Stop:     ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		return errors.Annotatef(retry.LastError(err), "giving up %s", what)
	}
	return errors.Trace(err)
}
