// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/agentbox/account"
	"github.com/juju/agentbox/bootstrap"
	"github.com/juju/agentbox/cmd"
	"github.com/juju/agentbox/compose"
	"github.com/juju/agentbox/config"
	"github.com/juju/agentbox/docker"
	"github.com/juju/agentbox/internal/run"
	"github.com/juju/agentbox/packaging"
	"github.com/juju/agentbox/payload"
	"github.com/juju/agentbox/provider/ec2"
	"github.com/juju/agentbox/service/systemd"
	"github.com/juju/agentbox/storage"
)

const runDoc = `
run executes the bootstrap steps in order and stops at the first
failure. A JSON status line is printed on completion and saved to the
status file named in the settings. The exit status identifies the
failed step's category.

The payload is read from a local path or, given an s3://bucket/key
location, from S3 using the instance's credentials.
`

// configStep names the pseudo-step reported when the payload or its
// settings cannot be used.
const configStep = "config"

type runCommand struct {
	cmd.CommandBase

	payloadLocation string
	dryRun          bool

	clock      clock.Clock
	newSession func(ctx context.Context, region string) (*ec2.Session, error)
	session    *ec2.Session
}

func newRunCommand() *runCommand {
	return &runCommand{
		clock:      clock.WallClock,
		newSession: ec2.NewSession,
	}
}

// Info is part of the cmd.Command interface.
func (c *runCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "run",
		Purpose: "Bootstrap this machine from a payload.",
		Doc:     runDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *runCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.payloadLocation, "payload", payload.DefaultPath, "Payload path or s3://bucket/key location")
	f.BoolVar(&c.dryRun, "dry-run", false, "Validate the payload and print the planned steps")
}

// Init is part of the cmd.Command interface.
func (c *runCommand) Init(args []string) error {
	if c.payloadLocation == "" {
		return errors.New("empty payload location")
	}
	return cmd.CheckEmpty(args)
}

// Run is part of the cmd.Command interface.
func (c *runCommand) Run(ctx *cmd.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !ec2.IsS3URL(c.payloadLocation) {
		c.payloadLocation = ctx.AbsPath(c.payloadLocation)
	}
	runID := uuid.NewString()
	logger.Infof("agentbox-init %s starting run %s", currentVersion(), runID)
	started := c.clock.Now()
	configFailed := func(cfg *config.Config, err error) error {
		err = &bootstrap.StepError{Step: configStep, Category: bootstrap.CategoryConfig, Err: err}
		now := c.clock.Now()
		st := bootstrap.NewStatus(configStep, err, now.Sub(started), now)
		st.RunID = runID
		return c.fail(ctx, cfg, st, err)
	}
	p, cfg, err := c.load(sigCtx)
	if err != nil {
		return configFailed(nil, err)
	}
	params, err := c.params(sigCtx, cfg, p)
	if err != nil {
		return configFailed(cfg, err)
	}
	seq, err := bootstrap.NewSequencer(params)
	if err != nil {
		return configFailed(cfg, err)
	}
	if c.dryRun {
		for _, line := range seq.Plan() {
			fmt.Fprintln(ctx.Stdout, line)
		}
		return nil
	}

	st, err := seq.Run(sigCtx)
	st.RunID = runID
	if params.Metrics != nil {
		if werr := params.Metrics.WriteTextfile(cfg.MetricsFile()); werr != nil {
			logger.Warningf("writing metrics: %v", werr)
		}
	}
	if err != nil {
		return c.fail(ctx, cfg, st, err)
	}
	return c.report(ctx, cfg, st)
}

// load fetches the payload and builds the settings from it.
func (c *runCommand) load(ctx context.Context) (*payload.Payload, *config.Config, error) {
	src, err := c.source(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	logger.Infof("loading payload from %s", src)
	p, err := payload.Load(ctx, src)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	cfg, err := config.New(p.Settings)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return p, cfg, nil
}

func (c *runCommand) source(ctx context.Context) (payload.Source, error) {
	if !ec2.IsS3URL(c.payloadLocation) {
		return payload.FileSource{Path: c.payloadLocation}, nil
	}
	bucket, key, err := ec2.ParseS3URL(c.payloadLocation)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// The payload carries the region setting, so the session has to
	// come from the environment and instance metadata.
	sess, err := c.awsSession(ctx, "")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ec2.S3Source{Client: sess.S3, Bucket: bucket, Key: key}, nil
}

func (c *runCommand) awsSession(ctx context.Context, region string) (*ec2.Session, error) {
	if c.session != nil && (region == "" || c.session.Config.Region == region) {
		return c.session, nil
	}
	sess, err := c.newSession(ctx, region)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c.session = sess
	return sess, nil
}

// params wires the host implementations of every collaborator.
func (c *runCommand) params(ctx context.Context, cfg *config.Config, p *payload.Payload) (bootstrap.Params, error) {
	params := bootstrap.Params{
		Config:           cfg,
		Payload:          p,
		Accounts:         account.NewManager(),
		Checkers:         []storage.AttachmentChecker{storage.DeviceChecker{Path: cfg.Device()}},
		Filesystems:      storage.Filesystems{Run: run.LogAndExec},
		Mounter:          storage.NewMounter(),
		Installer:        packaging.NewInstaller(cfg.InstallAttempts()),
		Units:            systemd.NewManager(),
		Services:         compose.Runner{Run: run.LogAndExec, Tool: cfg.ComposePath()},
		RootDockerConfig: bootstrap.RootDockerConfig,
		Clock:            c.clock,
	}
	if cfg.MetricsFile() != "" {
		params.Metrics = bootstrap.NewMetrics()
	}
	// Planning needs no cloud access.
	if c.dryRun {
		return params, nil
	}
	if cfg.VolumeID() != "" {
		sess, err := c.awsSession(ctx, cfg.Region())
		if err != nil {
			return params, errors.Trace(err)
		}
		instanceID, err := ec2.InstanceID(ctx, sess.Metadata)
		if err != nil {
			return params, errors.Trace(err)
		}
		params.Checkers = append(params.Checkers, ec2.AttachmentChecker{
			Client:     sess.EC2,
			VolumeID:   cfg.VolumeID(),
			InstanceID: instanceID,
		})
	}
	if cfg.ECRLogin() {
		sess, err := c.awsSession(ctx, cfg.Region())
		if err != nil {
			return params, errors.Trace(err)
		}
		params.RegistryLogin = func(ctx context.Context) ([]docker.ImageRepoDetails, error) {
			return ec2.RegistryCredentials(ctx, sess.ECR)
		}
	}
	return params, nil
}

// report prints the status line and records it in the status file.
func (c *runCommand) report(ctx *cmd.Context, cfg *config.Config, st bootstrap.Status) error {
	if err := st.Write(ctx.Stdout); err != nil {
		return errors.Trace(err)
	}
	if cfg == nil {
		return nil
	}
	if err := bootstrap.SaveStatus(cfg.StatusFile(), st); err != nil {
		logger.Warningf("recording status: %v", err)
	}
	return nil
}

func (c *runCommand) fail(ctx *cmd.Context, cfg *config.Config, st bootstrap.Status, err error) error {
	logger.Errorf("bootstrap failed after %s: %v", st.Elapsed, err)
	if rerr := c.report(ctx, cfg, st); rerr != nil {
		logger.Warningf("reporting status: %v", rerr)
	}
	return cmd.NewRcPassthroughError(bootstrap.ExitCode(err))
}
