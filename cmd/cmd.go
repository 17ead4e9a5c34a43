// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cmd is a small command line framework: commands describe
// themselves with Info, register gnuflag flags, validate their
// positional arguments in Init and do their work in Run.
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// ErrSilent can be returned from Run to signal that Main should exit
// with code 1 without producing error output.
var ErrSilent = errors.New("cmd: error out silently")

// RcPassthroughError indicates that a command wants Main to exit with a
// specific status. Nothing further is printed.
type RcPassthroughError struct {
	Code int
}

// Error implements error.
func (e *RcPassthroughError) Error() string {
	return fmt.Sprintf("subprocess encountered error code %v", e.Code)
}

// NewRcPassthroughError returns an error asking Main to exit with code.
func NewRcPassthroughError(code int) error {
	return &RcPassthroughError{code}
}

// IsRcPassthroughError returns whether err asks for a specific exit code.
func IsRcPassthroughError(err error) bool {
	_, ok := errors.Cause(err).(*RcPassthroughError)
	return ok
}

// Info holds everything necessary to describe a Command's intent and usage.
type Info struct {
	// Name is the Command's name.
	Name string

	// Args describes the command's expected positional arguments.
	Args string

	// Purpose is a short explanation of the Command's purpose.
	Purpose string

	// Doc is the long documentation for the Command.
	Doc string
}

// Help renders the command's usage, flags and documentation.
func (i *Info) Help(f *gnuflag.FlagSet) []byte {
	var buf bytes.Buffer
	usage := i.Name
	if hasFlags(f) {
		usage += " [options]"
	}
	if i.Args != "" {
		usage += " " + i.Args
	}
	fmt.Fprintf(&buf, "Usage: %s\n", usage)
	if i.Purpose != "" {
		fmt.Fprintf(&buf, "\nSummary:\n%s\n", strings.TrimSpace(i.Purpose))
	}
	if hasFlags(f) {
		fmt.Fprintf(&buf, "\nOptions:\n")
		f.SetOutput(&buf)
		f.PrintDefaults()
	}
	if i.Doc != "" {
		fmt.Fprintf(&buf, "\nDetails:\n%s\n", strings.TrimSpace(i.Doc))
	}
	return buf.Bytes()
}

func hasFlags(f *gnuflag.FlagSet) bool {
	if f == nil {
		return false
	}
	found := false
	f.VisitAll(func(*gnuflag.Flag) { found = true })
	return found
}

// Command is implemented by types that interpret command-line arguments.
type Command interface {
	// Info returns information about the Command.
	Info() *Info

	// SetFlags adds command specific flags to the flag set.
	SetFlags(f *gnuflag.FlagSet)

	// Init initializes the Command before running.
	Init(args []string) error

	// Run will execute the Command as directed by the options and
	// positional arguments passed to Init.
	Run(ctx *Context) error

	// AllowInterspersedFlags returns whether the command allows flag
	// arguments to be interspersed with non-flag arguments.
	AllowInterspersedFlags() bool
}

// CommandBase provides the default implementation for SetFlags, Init
// and AllowInterspersedFlags.
type CommandBase struct{}

// SetFlags does nothing in the simplest case.
func (c *CommandBase) SetFlags(f *gnuflag.FlagSet) {}

// Init in the simplest case makes sure there are no args.
func (c *CommandBase) Init(args []string) error {
	return CheckEmpty(args)
}

// AllowInterspersedFlags returns true by default.
func (c *CommandBase) AllowInterspersedFlags() bool {
	return true
}

// CheckEmpty is a utility function that returns an error if args is not empty.
func CheckEmpty(args []string) error {
	if len(args) != 0 {
		return errors.Errorf("unrecognized args: %q", args)
	}
	return nil
}

// Context represents the run context of a Command. Command
// implementations should interpret file names relative to Dir (see
// AbsPath below), and print output and errors to Stdout and Stderr
// respectively.
type Context struct {
	context.Context

	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultContext returns a Context suitable for use in non-hosted
// situations.
func DefaultContext() (*Context, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, errors.Trace(err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Context{
		Context: context.Background(),
		Dir:     abs,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, nil
}

// AbsPath returns an absolute representation of path, with relative
// paths interpreted as relative to ctx.Dir.
func (ctx *Context) AbsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ctx.Dir, path)
}

// Infof writes a message to stderr.
func (ctx *Context) Infof(format string, params ...interface{}) {
	fmt.Fprintf(ctx.Stderr, format+"\n", params...)
}

// WithContext returns a copy of ctx using the given context.
func (ctx *Context) WithContext(c context.Context) *Context {
	out := *ctx
	out.Context = c
	return &out
}

// handleCommandError handles errors from parsing or initializing a
// command, returning the exit code and whether the caller should stop.
func handleCommandError(c Command, ctx *Context, err error, f *gnuflag.FlagSet) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case err == gnuflag.ErrHelp:
		_, _ = ctx.Stdout.Write(c.Info().Help(f))
		return 0, true
	case IsRcPassthroughError(err):
		return errors.Cause(err).(*RcPassthroughError).Code, true
	}
	fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
	return 2, true
}

// Main runs the given Command in the supplied Context with the given
// arguments, which should not include the command name. It returns a
// code suitable for passing to os.Exit.
func Main(c Command, ctx *Context, args []string) int {
	f := gnuflag.NewFlagSet(c.Info().Name, gnuflag.ContinueOnError)
	f.SetOutput(io.Discard)
	c.SetFlags(f)
	if rc, done := handleCommandError(c, ctx, f.Parse(c.AllowInterspersedFlags(), args), f); done {
		return rc
	}
	if rc, done := handleCommandError(c, ctx, c.Init(f.Args()), f); done {
		return rc
	}
	if err := c.Run(ctx); err != nil {
		if IsRcPassthroughError(err) {
			return errors.Cause(err).(*RcPassthroughError).Code
		}
		if err != ErrSilent {
			fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		}
		return 1
	}
	return 0
}
