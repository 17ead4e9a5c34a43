// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// SuperCommandParams provides a way to have default parameter to the
// NewSuperCommand call.
type SuperCommandParams struct {
	Name    string
	Purpose string
	Doc     string

	// Log holds the global logging flags. When nil logging is left as
	// configured by the caller.
	Log *Log

	// NotifyRun is called with the name of the subcommand before it runs.
	NotifyRun func(string)
}

// SuperCommand is a Command that selects a subcommand and assumes its
// properties; any command line arguments that were not used in selecting
// the subcommand are passed down to it, and to Run a SuperCommand is to
// run its selected subcommand.
type SuperCommand struct {
	CommandBase

	Name    string
	Purpose string
	Doc     string
	Log     *Log

	notifyRun func(string)
	subcmds   map[string]Command
	flags     *gnuflag.FlagSet
	action    Command
	subFlags  *gnuflag.FlagSet
	showHelp  bool
}

// NewSuperCommand creates and initializes a new SuperCommand.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	return &SuperCommand{
		Name:      params.Name,
		Purpose:   params.Purpose,
		Doc:       params.Doc,
		Log:       params.Log,
		notifyRun: params.NotifyRun,
		subcmds:   make(map[string]Command),
	}
}

// Register makes a subcommand available for use on the command line.
// Registering a name twice panics.
func (c *SuperCommand) Register(subcmd Command) {
	name := subcmd.Info().Name
	if _, found := c.subcmds[name]; found || name == "help" {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.subcmds[name] = subcmd
}

// Info returns a description of the currently selected subcommand, or of
// the SuperCommand itself if no subcommand has been specified.
func (c *SuperCommand) Info() *Info {
	if c.action != nil {
		info := *c.action.Info()
		info.Name = c.Name + " " + info.Name
		return &info
	}
	return &Info{
		Name:    c.Name,
		Args:    "<command> ...",
		Purpose: c.Purpose,
		Doc:     c.Doc + "\n\n" + c.describeCommands(),
	}
}

func (c *SuperCommand) describeCommands() string {
	var names []string
	width := 0
	for name := range c.subcmds {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)
	var buf bytes.Buffer
	buf.WriteString("Commands:\n")
	for _, name := range names {
		fmt.Fprintf(&buf, "    %-*s - %s\n", width, name, c.subcmds[name].Info().Purpose)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// SetFlags adds the options that apply to all commands, particularly
// those due to logging.
func (c *SuperCommand) SetFlags(f *gnuflag.FlagSet) {
	if c.Log != nil {
		c.Log.AddFlags(f)
	}
	c.flags = f
}

// AllowInterspersedFlags returns false: everything after the
// subcommand name belongs to the subcommand.
func (c *SuperCommand) AllowInterspersedFlags() bool {
	return false
}

// Init initializes the command for running.
func (c *SuperCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no command specified")
	}
	name, args := args[0], args[1:]
	if name == "help" {
		if len(args) == 0 {
			return gnuflag.ErrHelp
		}
		name, args = args[0], []string{"--help"}
	}
	subcmd, found := c.subcmds[name]
	if !found {
		return errors.Errorf("unrecognized command: %s %s", c.Name, name)
	}
	c.action = subcmd
	c.subFlags = gnuflag.NewFlagSet(c.Info().Name, gnuflag.ContinueOnError)
	c.subFlags.SetOutput(io.Discard)
	subcmd.SetFlags(c.subFlags)
	err := c.subFlags.Parse(subcmd.AllowInterspersedFlags(), args)
	if err == gnuflag.ErrHelp {
		c.showHelp = true
		return nil
	} else if err != nil {
		return err
	}
	return subcmd.Init(c.subFlags.Args())
}

// Run executes the subcommand that was selected in Init.
func (c *SuperCommand) Run(ctx *Context) error {
	if c.action == nil {
		return errors.New("no command selected")
	}
	if c.showHelp {
		_, err := ctx.Stdout.Write(c.Info().Help(c.subFlags))
		return errors.Trace(err)
	}
	if c.Log != nil {
		if err := c.Log.Start(ctx); err != nil {
			return errors.Trace(err)
		}
		defer c.Log.Stop()
	}
	name := c.action.Info().Name
	logger.Infof("running %s %s", c.Name, name)
	if c.notifyRun != nil {
		c.notifyRun(name)
	}
	err := c.action.Run(ctx)
	if err != nil && err != ErrSilent && !IsRcPassthroughError(err) {
		logger.Errorf("%v", err)
		// Already logged, so don't let Main print it again.
		if c.Log != nil && c.Log.logsToStderr() {
			return ErrSilent
		}
	}
	return err
}
