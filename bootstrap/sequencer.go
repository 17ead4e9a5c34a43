// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package bootstrap turns a freshly booted machine with an attached
// volume into one running the agent services. The steps run strictly in
// order; the first failure aborts the run and is reported with the
// category of the step that failed.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/agentbox/account"
	"github.com/juju/agentbox/compose"
	"github.com/juju/agentbox/config"
	"github.com/juju/agentbox/docker"
	"github.com/juju/agentbox/payload"
	"github.com/juju/agentbox/service/systemd"
	"github.com/juju/agentbox/storage"
)

var logger = loggo.GetLogger("agentbox.bootstrap")

// Step names, in run order.
const (
	StepAccount    = "account"
	StepAttach     = "attach"
	StepFormat     = "format"
	StepMount      = "mount"
	StepLayout     = "layout"
	StepInstall    = "install"
	StepFiles      = "files"
	StepManagement = "management"
	StepStart      = "start"
	StepHealth     = "health"
)

// RootDockerConfig is the root user's docker client configuration.
const RootDockerConfig = "/root/.docker/config.json"

// AccountManager ensures the service account exists.
type AccountManager interface {
	Ensure(ctx context.Context, name string, groups []string) (account.Account, error)
}

// Formatter creates a filesystem on a blank device.
type Formatter interface {
	Ensure(ctx context.Context, device, fsType string) (bool, error)
}

// Mounter mounts a volume and registers it for remounting at boot.
type Mounter interface {
	Mount(ctx context.Context, v storage.Volume) error
	Register(v storage.Volume) (bool, error)
}

// Installer installs packages and binaries.
type Installer interface {
	EnsurePackage(ctx context.Context, pkg, binary string) (bool, error)
	EnsureBinary(ctx context.Context, url, dest string) (bool, error)
}

// UnitManager enables and starts systemd units.
type UnitManager interface {
	EnableAndStart(ctx context.Context, unit string) (bool, error)
}

// ServiceRunner starts the services defined in a directory.
type ServiceRunner interface {
	Up(ctx context.Context, dir string) error
}

// RegistryLoginFunc fetches registry credentials.
type RegistryLoginFunc func(ctx context.Context) ([]docker.ImageRepoDetails, error)

// Params holds the settings, payload and collaborators of a run.
type Params struct {
	Config  *config.Config
	Payload *payload.Payload

	Accounts    AccountManager
	Checkers    []storage.AttachmentChecker
	Filesystems Formatter
	Mounter     Mounter
	Installer   Installer
	Units       UnitManager
	Services    ServiceRunner

	// RegistryLogin, when set, is called before the services start and
	// its credentials written for the account and for root.
	RegistryLogin RegistryLoginFunc

	// RootDockerConfig overrides the root docker configuration path.
	RootDockerConfig string

	// Dial is used by the health check.
	Dial compose.DialFunc

	// Metrics, when set, records step timings.
	Metrics *Metrics

	Clock clock.Clock
}

// Validate checks that every collaborator is present.
func (p Params) Validate() error {
	switch {
	case p.Config == nil:
		return errors.NotValidf("nil Config")
	case p.Payload == nil:
		return errors.NotValidf("nil Payload")
	case p.Accounts == nil:
		return errors.NotValidf("nil Accounts")
	case len(p.Checkers) == 0:
		return errors.NotValidf("no attachment Checkers")
	case p.Filesystems == nil:
		return errors.NotValidf("nil Filesystems")
	case p.Mounter == nil:
		return errors.NotValidf("nil Mounter")
	case p.Installer == nil:
		return errors.NotValidf("nil Installer")
	case p.Units == nil:
		return errors.NotValidf("nil Units")
	case p.Services == nil:
		return errors.NotValidf("nil Services")
	case p.Clock == nil:
		return errors.NotValidf("nil Clock")
	}
	return nil
}

type step struct {
	name     string
	category Category
	describe func() string
	run      func(ctx context.Context) error
}

// Sequencer runs the bootstrap steps.
type Sequencer struct {
	p       Params
	cfg     *config.Config
	volume  storage.Volume
	account account.Account
	ports   []int
	steps   []step
}

// NewSequencer validates the run and works out the ports the health
// check probes.
func NewSequencer(p Params) (*Sequencer, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &Sequencer{
		p:   p,
		cfg: p.Config,
		volume: storage.Volume{
			Device:     p.Config.Device(),
			MountPoint: p.Config.MountPoint(),
			Filesystem: p.Config.Filesystem(),
		},
	}
	if err := s.volume.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ValidateFiles(p.Payload.Files()); err != nil {
		return nil, errors.Trace(err)
	}
	ports, err := HealthPorts(p.Config, p.Payload)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s.ports = ports
	s.steps = []step{
		{StepAccount, CategoryAccount, s.describeAccount, s.ensureAccount},
		{StepAttach, CategoryAttachment, s.describeAttach, s.awaitAttachment},
		{StepFormat, CategoryFormat, s.describeFormat, s.format},
		{StepMount, CategoryMount, s.describeMount, s.mount},
		{StepLayout, CategoryWrite, s.describeLayout, s.layout},
		{StepInstall, CategoryPackage, s.describeInstall, s.install},
		{StepFiles, CategoryWrite, s.describeFiles, s.writeFiles},
		{StepManagement, CategoryManagement, s.describeManagement, s.enableManagement},
		{StepStart, CategoryStart, s.describeStart, s.start},
		{StepHealth, CategoryStart, s.describeHealth, s.health},
	}
	return s, nil
}

// HealthPorts returns the configured health ports, or those published
// by the payload's service definition.
func HealthPorts(cfg *config.Config, p *payload.Payload) ([]int, error) {
	if ports := cfg.HealthPorts(); len(ports) > 0 {
		return ports, nil
	}
	f, err := p.File(compose.FileName)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	project, err := compose.Parse(f.Content)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return project.PublishedPorts(), nil
}

// Plan describes each step without running anything.
func (s *Sequencer) Plan() []string {
	plan := make([]string, len(s.steps))
	for i, st := range s.steps {
		plan[i] = fmt.Sprintf("%s: %s", st.name, st.describe())
	}
	return plan
}

// Run executes the steps in order and returns the status record of the
// run along with the first failure.
func (s *Sequencer) Run(ctx context.Context) (Status, error) {
	started := s.p.Clock.Now()
	last := ""
	var runErr error
	for _, st := range s.steps {
		last = st.name
		if runErr = s.runStep(ctx, st); runErr != nil {
			break
		}
	}
	finished := s.p.Clock.Now()
	if s.p.Metrics != nil {
		s.p.Metrics.ObserveRun(finished, runErr)
	}
	return NewStatus(last, runErr, finished.Sub(started), finished), runErr
}

func (s *Sequencer) runStep(ctx context.Context, st step) error {
	logger.Infof("step %s: %s", st.name, st.describe())
	started := s.p.Clock.Now()
	err := st.run(ctx)
	elapsed := s.p.Clock.Now().Sub(started)
	if s.p.Metrics != nil {
		s.p.Metrics.ObserveStep(st.name, elapsed, err)
	}
	if err != nil {
		logger.Errorf("step %s: failed after %v: %v", st.name, elapsed, err)
		return &StepError{Step: st.name, Category: st.category, Err: err}
	}
	logger.Infof("step %s: done in %v", st.name, elapsed)
	return nil
}

func (s *Sequencer) describeAccount() string {
	return fmt.Sprintf("ensure account %s in groups %v", s.cfg.Account(), s.cfg.Groups())
}

func (s *Sequencer) ensureAccount(ctx context.Context) error {
	acct, err := s.p.Accounts.Ensure(ctx, s.cfg.Account(), s.cfg.Groups())
	if err != nil {
		return errors.Trace(err)
	}
	s.account = acct
	return nil
}

func (s *Sequencer) describeAttach() string {
	names := make([]string, len(s.p.Checkers))
	for i, c := range s.p.Checkers {
		names[i] = c.String()
	}
	return fmt.Sprintf("wait for %v, %d attempts every %v", names, s.cfg.AttachAttempts(), s.cfg.PollInterval())
}

func (s *Sequencer) awaitAttachment(ctx context.Context) error {
	return storage.AwaitAttachment(ctx, storage.AwaitParams{
		Checkers: s.p.Checkers,
		Attempts: s.cfg.AttachAttempts(),
		Delay:    s.cfg.PollInterval(),
		Clock:    s.p.Clock,
	})
}

func (s *Sequencer) describeFormat() string {
	return fmt.Sprintf("create %s on %s if blank", s.volume.Filesystem, s.volume.Device)
}

func (s *Sequencer) format(ctx context.Context) error {
	created, err := s.p.Filesystems.Ensure(ctx, s.volume.Device, s.volume.Filesystem)
	if err != nil {
		return errors.Trace(err)
	}
	if !created {
		logger.Infof("%s already has a filesystem, keeping it", s.volume.Device)
	}
	return nil
}

func (s *Sequencer) describeMount() string {
	return fmt.Sprintf("mount %s on %s and register it in fstab", s.volume.Device, s.volume.MountPoint)
}

func (s *Sequencer) mount(ctx context.Context) error {
	if err := s.p.Mounter.Mount(ctx, s.volume); err != nil {
		return errors.Trace(err)
	}
	added, err := s.p.Mounter.Register(s.volume)
	if err != nil {
		return errors.Trace(err)
	}
	if !added {
		logger.Debugf("fstab already has %s", s.volume.MountPoint)
	}
	return nil
}

func (s *Sequencer) layoutFor() Layout {
	return Layout{
		MountPoint: s.volume.MountPoint,
		Home:       s.cfg.Home(),
		Owner:      s.account,
	}
}

func (s *Sequencer) describeLayout() string {
	l := s.layoutFor()
	return fmt.Sprintf("create %v and link %s", l.DataDirs(), filepath.Join(l.Home, StateLink))
}

func (s *Sequencer) layout(context.Context) error {
	return errors.Trace(s.layoutFor().Ensure())
}

func (s *Sequencer) describeInstall() string {
	return fmt.Sprintf("install %s and %s", s.cfg.RuntimePackage(), s.cfg.ComposePath())
}

func (s *Sequencer) install(ctx context.Context) error {
	if _, err := s.p.Installer.EnsurePackage(ctx, s.cfg.RuntimePackage(), "docker"); err != nil {
		return errors.Trace(err)
	}
	_, err := s.p.Installer.EnsureBinary(ctx, s.cfg.ComposeURL(), s.cfg.ComposePath())
	return errors.Trace(err)
}

func (s *Sequencer) describeFiles() string {
	return fmt.Sprintf("write %d files under %s", len(s.p.Payload.Files()), s.cfg.Home())
}

func (s *Sequencer) writeFiles(context.Context) error {
	return errors.Trace(WriteFiles(s.cfg.Home(), s.account, s.p.Payload.Files()))
}

func (s *Sequencer) describeManagement() string {
	return fmt.Sprintf("enable and start %s", s.cfg.ManagementUnit())
}

func (s *Sequencer) enableManagement(ctx context.Context) error {
	_, err := s.p.Units.EnableAndStart(ctx, s.cfg.ManagementUnit())
	if errors.Is(err, systemd.ErrNotRunning) {
		logger.Warningf("not starting %s: %v", s.cfg.ManagementUnit(), err)
		return nil
	}
	return errors.Trace(err)
}

func (s *Sequencer) describeStart() string {
	desc := fmt.Sprintf("start services from %s", filepath.Join(s.cfg.Home(), compose.FileName))
	if s.p.RegistryLogin != nil {
		desc += " after registry login"
	}
	return desc
}

func (s *Sequencer) start(ctx context.Context) error {
	if s.p.RegistryLogin != nil {
		if err := s.registryLogin(ctx); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.p.Services.Up(ctx, s.cfg.Home()))
}

func (s *Sequencer) registryLogin(ctx context.Context) error {
	details, err := s.p.RegistryLogin(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	s.warnUncovered(details)
	userConfig := filepath.Join(s.cfg.Home(), ".docker", "config.json")
	if err := docker.WriteConfig(userConfig, s.account.UID, s.account.GID, details...); err != nil {
		return errors.Trace(err)
	}
	if s.p.RootDockerConfig == "" {
		return nil
	}
	return errors.Trace(docker.WriteConfig(s.p.RootDockerConfig, 0, 0, details...))
}

// warnUncovered logs the service images whose registry the login did
// not cover. Those are pulled anonymously.
func (s *Sequencer) warnUncovered(details []docker.ImageRepoDetails) {
	f, err := s.p.Payload.File(compose.FileName)
	if err != nil {
		return
	}
	project, err := compose.Parse(f.Content)
	if err != nil {
		return
	}
	uncovered, err := docker.UncoveredImages(project.Images(), details)
	if err != nil {
		logger.Warningf("cannot check registry credentials: %v", err)
		return
	}
	for _, image := range uncovered {
		logger.Warningf("no registry credentials for image %s", image)
	}
}

func (s *Sequencer) describeHealth() string {
	if len(s.ports) == 0 {
		return "no ports to probe"
	}
	return fmt.Sprintf("probe ports %v, %d attempts every %v", s.ports, s.cfg.HealthAttempts(), s.cfg.HealthInterval())
}

func (s *Sequencer) health(ctx context.Context) error {
	return compose.WaitHealthy(ctx, compose.HealthParams{
		Ports:    s.ports,
		Attempts: s.cfg.HealthAttempts(),
		Delay:    s.cfg.HealthInterval(),
		Clock:    s.p.Clock,
		Dial:     s.p.Dial,
	})
}
