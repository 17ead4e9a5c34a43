// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config holds the settings which drive the bootstrap sequencer.
// Settings arrive untyped in the provisioning payload and are coerced
// against a fixed schema, with defaults for everything but the optional
// cloud identifiers.
package config

import (
	"path"
	"regexp"
	"sort"
	"time"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"github.com/juju/schema"
)

// Setting keys.
const (
	AccountKey         = "account"
	GroupsKey          = "groups"
	HomeKey            = "home"
	DeviceKey          = "device"
	MountPointKey      = "mount-point"
	FilesystemKey      = "filesystem"
	PollIntervalKey    = "poll-interval"
	AttachAttemptsKey  = "attach-attempts"
	VolumeIDKey        = "volume-id"
	RegionKey          = "region"
	InstallAttemptsKey = "install-attempts"
	RuntimePackageKey  = "runtime-package"
	ComposeURLKey      = "compose-url"
	ComposePathKey     = "compose-path"
	ManagementUnitKey  = "management-unit"
	HealthPortsKey     = "health-ports"
	HealthAttemptsKey  = "health-attempts"
	HealthIntervalKey  = "health-interval"
	ECRLoginKey        = "ecr-login"
	MetricsFileKey     = "metrics-file"
	StatusFileKey      = "status-file"
)

const (
	// DefaultComposeURL is the release binary installed when no
	// orchestration tool is present.
	DefaultComposeURL = "https://github.com/docker/compose/releases/download/v2.29.7/docker-compose-linux-x86_64"

	// DefaultManagementUnit is the SSM agent as shipped in the Ubuntu
	// cloud images.
	DefaultManagementUnit = "snap.amazon-ssm-agent.amazon-ssm-agent.service"
)

var fields = schema.Fields{
	AccountKey:         schema.String(),
	GroupsKey:          schema.List(schema.String()),
	HomeKey:            schema.String(),
	DeviceKey:          schema.String(),
	MountPointKey:      schema.String(),
	FilesystemKey:      schema.String(),
	PollIntervalKey:    schema.TimeDuration(),
	AttachAttemptsKey:  schema.ForceInt(),
	VolumeIDKey:        schema.String(),
	RegionKey:          schema.String(),
	InstallAttemptsKey: schema.ForceInt(),
	RuntimePackageKey:  schema.String(),
	ComposeURLKey:      schema.String(),
	ComposePathKey:     schema.String(),
	ManagementUnitKey:  schema.String(),
	HealthPortsKey:     schema.List(schema.ForceInt()),
	HealthAttemptsKey:  schema.ForceInt(),
	HealthIntervalKey:  schema.TimeDuration(),
	ECRLoginKey:        schema.Bool(),
	MetricsFileKey:     schema.String(),
	StatusFileKey:      schema.String(),
}

var defaults = schema.Defaults{
	AccountKey:         "openhands",
	GroupsKey:          []interface{}{"sudo", "docker"},
	HomeKey:            schema.Omit,
	DeviceKey:          "/dev/xvdf",
	MountPointKey:      "/data",
	FilesystemKey:      "ext4",
	PollIntervalKey:    5 * time.Second,
	AttachAttemptsKey:  60,
	VolumeIDKey:        "",
	RegionKey:          "",
	InstallAttemptsKey: 3,
	RuntimePackageKey:  "docker.io",
	ComposeURLKey:      DefaultComposeURL,
	ComposePathKey:     "/usr/local/bin/docker-compose",
	ManagementUnitKey:  DefaultManagementUnit,
	HealthPortsKey:     schema.Omit,
	HealthAttemptsKey:  30,
	HealthIntervalKey:  2 * time.Second,
	ECRLoginKey:        false,
	MetricsFileKey:     "",
	StatusFileKey:      "/var/lib/agentbox/status.json",
}

var checker = schema.StrictFieldMap(fields, defaults)

var validFilesystem = regexp.MustCompile(`^[a-z0-9]+$`)

// Config is a validated set of sequencer settings.
type Config struct {
	m map[string]interface{}
}

// New coerces attrs against the settings schema, fills in defaults and
// validates the result.
func New(attrs map[string]interface{}) (*Config, error) {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	m, err := checker.Coerce(attrs, nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "invalid settings")
	}
	c := &Config{m: m.(map[string]interface{})}
	if c.asString(HomeKey) == "" {
		c.m[HomeKey] = path.Join("/home", c.Account())
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	if !names.IsValidUserName(c.Account()) {
		return errors.NotValidf("account name %q", c.Account())
	}
	for _, key := range []string{HomeKey, DeviceKey, MountPointKey, ComposePathKey} {
		if v := c.asString(key); !path.IsAbs(v) {
			return errors.NotValidf("%s %q: must be an absolute path", key, v)
		}
	}
	if !validFilesystem.MatchString(c.Filesystem()) {
		return errors.NotValidf("filesystem type %q", c.Filesystem())
	}
	for _, key := range []string{AttachAttemptsKey, InstallAttemptsKey, HealthAttemptsKey} {
		if n := c.m[key].(int); n < 1 {
			return errors.NotValidf("%s %d: must be positive", key, n)
		}
	}
	for _, key := range []string{PollIntervalKey, HealthIntervalKey} {
		if d := c.m[key].(time.Duration); d <= 0 {
			return errors.NotValidf("%s %v: must be positive", key, d)
		}
	}
	for _, port := range c.HealthPorts() {
		if port < 1 || port > 65535 {
			return errors.NotValidf("health port %d", port)
		}
	}
	if c.ManagementUnit() == "" {
		return errors.NotValidf("empty %s", ManagementUnitKey)
	}
	return nil
}

func (c *Config) asString(key string) string {
	s, _ := c.m[key].(string)
	return s
}

// AllAttrs returns a copy of the coerced settings.
func (c *Config) AllAttrs() map[string]interface{} {
	out := make(map[string]interface{}, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// Account is the service account which owns the configuration.
func (c *Config) Account() string {
	return c.asString(AccountKey)
}

// Groups are the supplementary groups of the service account.
func (c *Config) Groups() []string {
	raw, _ := c.m[GroupsKey].([]interface{})
	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		groups = append(groups, g.(string))
	}
	return groups
}

// Home is the configuration root the payload is written under.
func (c *Config) Home() string {
	return c.asString(HomeKey)
}

// Device is the block device path of the persistent volume.
func (c *Config) Device() string {
	return c.asString(DeviceKey)
}

// MountPoint is where the persistent volume is mounted.
func (c *Config) MountPoint() string {
	return c.asString(MountPointKey)
}

// Filesystem is the type the volume is formatted with.
func (c *Config) Filesystem() string {
	return c.asString(FilesystemKey)
}

// PollInterval is the delay between volume attachment checks.
func (c *Config) PollInterval() time.Duration {
	return c.m[PollIntervalKey].(time.Duration)
}

// AttachAttempts bounds the number of volume attachment checks.
func (c *Config) AttachAttempts() int {
	return c.m[AttachAttemptsKey].(int)
}

// VolumeID is the cloud identifier of the volume, if known.
func (c *Config) VolumeID() string {
	return c.asString(VolumeIDKey)
}

// Region is the cloud region, if set explicitly.
func (c *Config) Region() string {
	return c.asString(RegionKey)
}

// InstallAttempts bounds package installation retries.
func (c *Config) InstallAttempts() int {
	return c.m[InstallAttemptsKey].(int)
}

// RuntimePackage is the package providing the container runtime.
func (c *Config) RuntimePackage() string {
	return c.asString(RuntimePackageKey)
}

// ComposeURL is where the orchestration tool binary is downloaded from.
func (c *Config) ComposeURL() string {
	return c.asString(ComposeURLKey)
}

// ComposePath is where the orchestration tool binary is installed.
func (c *Config) ComposePath() string {
	return c.asString(ComposePathKey)
}

// ManagementUnit is the systemd unit of the remote management agent.
func (c *Config) ManagementUnit() string {
	return c.asString(ManagementUnitKey)
}

// HealthPorts are the local ports probed after the services start.
// When empty the ports are derived from the service definition.
func (c *Config) HealthPorts() []int {
	raw, _ := c.m[HealthPortsKey].([]interface{})
	ports := make([]int, 0, len(raw))
	for _, p := range raw {
		ports = append(ports, p.(int))
	}
	sort.Ints(ports)
	return ports
}

// HealthAttempts bounds the post-start port probes.
func (c *Config) HealthAttempts() int {
	return c.m[HealthAttemptsKey].(int)
}

// HealthInterval is the delay between port probes.
func (c *Config) HealthInterval() time.Duration {
	return c.m[HealthIntervalKey].(time.Duration)
}

// ECRLogin reports whether registry credentials are fetched from ECR
// before the services start.
func (c *Config) ECRLogin() bool {
	b, _ := c.m[ECRLoginKey].(bool)
	return b
}

// MetricsFile is the prometheus textfile written after a run, if any.
func (c *Config) MetricsFile() string {
	return c.asString(MetricsFileKey)
}

// StatusFile is where the final run status is recorded.
func (c *Config) StatusFile() string {
	return c.asString(StatusFileKey)
}
