// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cloudinit

import (
	"net/url"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

const (
	// DefaultBinaryPath is where the bootstrap binary is installed.
	DefaultBinaryPath = "/usr/local/bin/agentbox-init"

	// DefaultLogFile receives the bootstrap log on the machine.
	DefaultLogFile = "/var/log/agentbox-init.log"

	// payloadMode keeps registry and model credentials in the payload
	// away from other users.
	payloadMode = 0600
)

// UserdataParams describes the first boot of a machine.
type UserdataParams struct {
	// Payload is the payload document written to PayloadPath. It may
	// be empty when the machine fetches its payload from elsewhere.
	Payload []byte

	// PayloadLocation is passed to the bootstrap binary.
	PayloadLocation string

	// BinaryURL is where the bootstrap binary is downloaded from.
	BinaryURL string

	// BinaryPath defaults to DefaultBinaryPath.
	BinaryPath string

	// LogFile defaults to DefaultLogFile.
	LogFile string
}

// Validate checks the parameters are usable.
func (p UserdataParams) Validate() error {
	if p.BinaryURL == "" {
		return errors.NotValidf("empty binary URL")
	}
	u, err := url.Parse(p.BinaryURL)
	if err != nil {
		return errors.NewNotValid(err, "binary URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return errors.NotValidf("binary URL scheme %q", u.Scheme)
	}
	if p.PayloadLocation == "" {
		return errors.NotValidf("empty payload location")
	}
	return nil
}

// NewUserdata returns the cloud-config which writes the payload,
// installs the bootstrap binary and runs it.
func NewUserdata(p UserdataParams) (*Config, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if p.BinaryPath == "" {
		p.BinaryPath = DefaultBinaryPath
	}
	if p.LogFile == "" {
		p.LogFile = DefaultLogFile
	}

	cfg := New()
	cfg.SetOutput(OutAll, "| tee -a /var/log/cloud-init-output.log", "")
	// curl fetches the binary and is missing from minimal images.
	cfg.SetAptUpdate(true)
	cfg.AddPackage("curl")
	cfg.AddScripts(
		"set -xe",
		DumpFileOnErrorScript(p.LogFile),
		InitProgressCmd(),
	)
	if len(p.Payload) > 0 {
		cfg.AddRunCmd(LogProgressCmd("Writing payload to %s", p.PayloadLocation))
		cfg.AddRunBinaryFile(p.PayloadLocation, p.Payload, payloadMode)
	}
	bin := utils.ShQuote(p.BinaryPath)
	cfg.AddScripts(
		LogProgressCmd("Fetching agentbox-init"),
		"curl -sSfL --retry 10 -o "+bin+" "+utils.ShQuote(p.BinaryURL),
		"chmod 0755 "+bin,
		LogProgressCmd("Running agentbox-init"),
	)
	cfg.AddRunCmdArgs(p.BinaryPath, "--log-file", p.LogFile, "run", "--payload", p.PayloadLocation)
	return cfg, nil
}
