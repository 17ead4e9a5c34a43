// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/agentbox/bootstrap"
	"github.com/juju/agentbox/cloudconfig/cloudinit"
	"github.com/juju/agentbox/cmd"
	"github.com/juju/agentbox/config"
	"github.com/juju/agentbox/payload"
	"github.com/juju/agentbox/provider/ec2"
)

const renderDoc = `
render validates a payload document and prints the cloud-init
user-data which writes it to the machine, downloads agentbox-init from
--binary-url and runs it.

With --remote-payload the document is only validated; the machine
fetches it from the given s3://bucket/key location instead. Use this
when the embedded payload would exceed the EC2 user-data limit.
`

type renderCommand struct {
	cmd.CommandBase

	payloadFile   cmd.FileVar
	binaryURL     string
	remotePayload string
	gzip          bool
	outPath       string
}

// Info is part of the cmd.Command interface.
func (c *renderCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "render",
		Purpose: "Render cloud-init user-data for a payload.",
		Doc:     renderDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *renderCommand) SetFlags(f *gnuflag.FlagSet) {
	c.payloadFile.SetStdin()
	f.Var(&c.payloadFile, "payload", "Payload document to render (- for stdin)")
	f.StringVar(&c.binaryURL, "binary-url", "", "URL the machine downloads agentbox-init from")
	f.StringVar(&c.remotePayload, "remote-payload", "", "s3://bucket/key the machine reads the payload from")
	f.BoolVar(&c.gzip, "gzip", false, "Compress the user-data")
	f.StringVar(&c.outPath, "o", "", "Write the user-data to a file")
	f.StringVar(&c.outPath, "output", "", "")
}

// Init is part of the cmd.Command interface.
func (c *renderCommand) Init(args []string) error {
	if c.payloadFile.Path == "" {
		return errors.New("--payload is required")
	}
	if c.binaryURL == "" {
		return errors.New("--binary-url is required")
	}
	if c.remotePayload != "" {
		if _, _, err := ec2.ParseS3URL(c.remotePayload); err != nil {
			return errors.Trace(err)
		}
	}
	return cmd.CheckEmpty(args)
}

// Run is part of the cmd.Command interface.
func (c *renderCommand) Run(ctx *cmd.Context) error {
	data, err := c.payloadFile.Read(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	p, err := validatePayload(data)
	if err != nil {
		return errors.Trace(err)
	}
	// The re-encoded document drops comments and layout, which keeps
	// the user-data small.
	embedded, err := p.Marshal()
	if err != nil {
		return errors.Trace(err)
	}

	params := cloudinit.UserdataParams{
		Payload:         embedded,
		PayloadLocation: payload.DefaultPath,
		BinaryURL:       c.binaryURL,
	}
	if c.remotePayload != "" {
		params.Payload = nil
		params.PayloadLocation = c.remotePayload
	}
	cfg, err := cloudinit.NewUserdata(params)
	if err != nil {
		return errors.Trace(err)
	}
	rendered, err := cfg.Render()
	if err != nil {
		return errors.Trace(err)
	}
	userdata, err := ec2.EncodeUserdata(rendered, c.gzip)
	if err != nil {
		return errors.Trace(err)
	}
	if c.outPath == "" {
		_, err = ctx.Stdout.Write(userdata)
		return errors.Trace(err)
	}
	return errors.Trace(os.WriteFile(ctx.AbsPath(c.outPath), userdata, 0600))
}

// validatePayload catches the mistakes which would otherwise only show
// up on the machine: bad file names, bad settings and an unreadable
// service definition.
func validatePayload(data []byte) (*payload.Payload, error) {
	p, err := payload.Parse(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := bootstrap.ValidateFiles(p.Files()); err != nil {
		return nil, errors.Trace(err)
	}
	cfg, err := config.New(p.Settings)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := bootstrap.HealthPorts(cfg, p); err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}
