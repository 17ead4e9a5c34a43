// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/agentbox/bootstrap"
	"github.com/juju/agentbox/cmd"
	"github.com/juju/agentbox/config"
)

const statusDoc = `
status prints the outcome recorded by the last run. It exits non-zero
when that run failed, with the same code the run exited with.
`

type statusCommand struct {
	cmd.CommandBase

	out  cmd.Output
	path string
}

// Info is part of the cmd.Command interface.
func (c *statusCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "status",
		Purpose: "Show the result of the last run.",
		Doc:     statusDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *statusCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatStatusTabular,
	})
	f.StringVar(&c.path, "status-file", defaultStatusFile(), "Status file written by run")
}

func defaultStatusFile() string {
	cfg, err := config.New(nil)
	if err != nil {
		return ""
	}
	return cfg.StatusFile()
}

// Run is part of the cmd.Command interface.
func (c *statusCommand) Run(ctx *cmd.Context) error {
	st, err := bootstrap.ReadStatus(ctx.AbsPath(c.path))
	if errors.Is(err, errors.NotFound) {
		return errors.Errorf("no run recorded in %s", c.path)
	} else if err != nil {
		return errors.Trace(err)
	}
	if err := c.out.Write(ctx, st); err != nil {
		return errors.Trace(err)
	}
	if st.Status != bootstrap.StatusOK {
		return cmd.NewRcPassthroughError(st.Category.ExitCode())
	}
	return nil
}

var statusColor = map[string]*ansiterm.Context{
	bootstrap.StatusOK:     ansiterm.Foreground(ansiterm.Green),
	bootstrap.StatusFailed: ansiterm.Foreground(ansiterm.BrightRed),
}

// formatStatusTabular prints a status record for people, colouring the
// outcome when writing to a terminal.
func formatStatusTabular(writer io.Writer, value interface{}) error {
	st, ok := value.(bootstrap.Status)
	if !ok {
		return errors.Errorf("expected bootstrap.Status, got %T", value)
	}
	w := ansiterm.NewWriter(writer)
	row := func(label, format string, args ...interface{}) {
		fmt.Fprintf(w, "%-10s"+format+"\n", append([]interface{}{label + ":"}, args...)...)
	}
	fmt.Fprintf(w, "%-10s", "Status:")
	if ctx, found := statusColor[st.Status]; found {
		ctx.Fprintf(w, "%s", st.Status)
	} else {
		fmt.Fprint(w, st.Status)
	}
	fmt.Fprintln(w)
	row("Step", "%s", st.Step)
	if st.Category != "" {
		row("Category", "%s (exit code %d)", st.Category, st.Category.ExitCode())
	}
	row("Message", "%s", st.Message)
	row("Elapsed", "%s", st.Elapsed)
	row("Finished", "%s (%s)", st.Time.Format("2006-01-02 15:04:05Z07:00"), humanize.Time(st.Time))
	if st.RunID != "" {
		row("Run", "%s", st.RunID)
	}
	return nil
}
