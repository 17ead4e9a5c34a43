// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cloudinit builds the cloud-config user-data which hands a
// provisioning payload to a new machine and runs the bootstrap binary.
// See https://cloudinit.readthedocs.io/.
package cloudinit

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Config represents a set of cloud-init configuration options.
type Config struct {
	// attrs holds the cloud-config attributes, keyed by their
	// cloud-config name.
	attrs map[string]interface{}
}

// New returns an empty configuration.
func New() *Config {
	return &Config{attrs: make(map[string]interface{})}
}

// SetAttr sets an arbitrary attribute in the cloud-config.
func (cfg *Config) SetAttr(name string, value interface{}) {
	cfg.attrs[name] = value
}

// SetAptUpdate sets whether cloud-init runs "apt-get update" on boot.
func (cfg *Config) SetAptUpdate(update bool) {
	cfg.SetAttr("package_update", update)
}

// AddPackage adds a package to be installed on first boot.
func (cfg *Config) AddPackage(name string) {
	cfg.SetAttr("packages", append(cfg.Packages(), name))
}

// Packages returns the packages installed on first boot.
func (cfg *Config) Packages() []string {
	packages, _ := cfg.attrs["packages"].([]string)
	return packages
}

// AddRunCmd adds a command to be executed at first boot. The command is
// run by the shell.
func (cfg *Config) AddRunCmd(cmd string) {
	cfg.attrs["runcmd"] = append(cfg.RunCmds(), cmd)
}

// AddRunCmdArgs adds a command to be executed at first boot, run
// directly without the shell.
func (cfg *Config) AddRunCmdArgs(args ...string) {
	cfg.attrs["runcmd"] = append(cfg.RunCmds(), args)
}

// AddScripts is a simple shorthand for calling AddRunCmd multiple times.
func (cfg *Config) AddScripts(scripts ...string) {
	for _, s := range scripts {
		cfg.AddRunCmd(s)
	}
}

// RunCmds returns the first boot commands, as strings for shell
// commands and string slices for direct ones.
func (cfg *Config) RunCmds() []interface{} {
	cmds, _ := cfg.attrs["runcmd"].([]interface{})
	return cmds
}

// AddRunBinaryFile adds commands which write a file with arbitrary
// content on first boot.
func (cfg *Config) AddRunBinaryFile(filename string, data []byte, perm uint) {
	cfg.AddScripts(addFileCmds(filename, data, perm)...)
}

// OutputKind represents a destination for command output.
type OutputKind string

const (
	OutInit   OutputKind = "init"
	OutConfig OutputKind = "config"
	OutFinal  OutputKind = "final"
	OutAll    OutputKind = "all"
)

// SetOutput specifies the destination for the output of the given kind
// of cloud-init stage. Each destination is a file name prefixed with
// ">" to overwrite, ">>" to append, or "|" to pipe to a command.
func (cfg *Config) SetOutput(kind OutputKind, stdout, stderr string) {
	out, _ := cfg.attrs["output"].(map[string]interface{})
	if out == nil {
		out = make(map[string]interface{})
	}
	if stderr == "" {
		out[string(kind)] = stdout
	} else {
		out[string(kind)] = []string{stdout, stderr}
	}
	cfg.attrs["output"] = out
}

// Header is the first line of every cloud-config document.
const Header = "#cloud-config\n"

// Render returns the cloud-config document.
func (cfg *Config) Render() ([]byte, error) {
	data, err := yaml.Marshal(cfg.attrs)
	if err != nil {
		return nil, errors.Annotate(err, "rendering cloud-config")
	}
	return append([]byte(Header), data...), nil
}
