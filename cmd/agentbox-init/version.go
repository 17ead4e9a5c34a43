// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/version/v2"

	"github.com/juju/agentbox/cmd"
)

// buildVersion is overridden at link time with
// -ldflags "-X main.buildVersion=<version>".
var buildVersion = "1.0.0"

// currentVersion returns the binary's version, or the zero version if
// buildVersion was stamped with something unparseable.
func currentVersion() version.Number {
	v, err := version.Parse(buildVersion)
	if err != nil {
		logger.Warningf("invalid build version %q: %v", buildVersion, err)
		return version.Zero
	}
	return v
}

type versionCommand struct {
	cmd.CommandBase
	out cmd.Output
}

// Info is part of the cmd.Command interface.
func (c *versionCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "version",
		Purpose: "Print the agentbox-init version.",
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *versionCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "yaml", cmd.DefaultFormatters)
}

// Run is part of the cmd.Command interface.
func (c *versionCommand) Run(ctx *cmd.Context) error {
	return errors.Trace(c.out.Write(ctx, currentVersion().String()))
}
