// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd_test

import (
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/cmd"
)

type cmdSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&cmdSuite{})

// echoCommand writes its option and argument to stdout.
type echoCommand struct {
	cmd.CommandBase
	greeting string
	name     string
	err      error
}

func (c *echoCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "echo",
		Args:    "<name>",
		Purpose: "Greet someone.",
		Doc:     "echo prints a greeting.",
	}
}

func (c *echoCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.greeting, "greeting", "hello", "The greeting to use")
}

func (c *echoCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no name specified")
	}
	c.name, args = args[0], args[1:]
	return cmd.CheckEmpty(args)
}

func (c *echoCommand) Run(ctx *cmd.Context) error {
	if c.err != nil {
		return c.err
	}
	ctx.Stdout.Write([]byte(c.greeting + " " + c.name + "\n"))
	return nil
}

func (s *cmdSuite) TestMain(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{}, ctx, []string{"--greeting", "hi", "bob"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout(ctx), gc.Equals, "hi bob\n")
	c.Assert(stderr(ctx), gc.Equals, "")
}

func (s *cmdSuite) TestMainInterspersedFlags(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{}, ctx, []string{"bob", "--greeting", "hey"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout(ctx), gc.Equals, "hey bob\n")
}

func (s *cmdSuite) TestMainBadFlag(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{}, ctx, []string{"--colour", "bob"})
	c.Assert(code, gc.Equals, 2)
	c.Assert(stderr(ctx), gc.Matches, "ERROR flag provided but not defined: -+colour\n")
}

func (s *cmdSuite) TestMainInitError(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{}, ctx, []string{"bob", "alice"})
	c.Assert(code, gc.Equals, 2)
	c.Assert(stderr(ctx), gc.Equals, "ERROR unrecognized args: [\"alice\"]\n")
}

func (s *cmdSuite) TestMainRunError(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{err: errors.New("boom")}, ctx, []string{"bob"})
	c.Assert(code, gc.Equals, 1)
	c.Assert(stderr(ctx), gc.Equals, "ERROR boom\n")
}

func (s *cmdSuite) TestMainSilentError(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{err: cmd.ErrSilent}, ctx, []string{"bob"})
	c.Assert(code, gc.Equals, 1)
	c.Assert(stderr(ctx), gc.Equals, "")
}

func (s *cmdSuite) TestMainRcPassthrough(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{err: cmd.NewRcPassthroughError(12)}, ctx, []string{"bob"})
	c.Assert(code, gc.Equals, 12)
	c.Assert(stderr(ctx), gc.Equals, "")
}

func (s *cmdSuite) TestMainHelp(c *gc.C) {
	ctx := testContext(c)
	code := cmd.Main(&echoCommand{}, ctx, []string{"--help"})
	c.Assert(code, gc.Equals, 0)
	help := stdout(ctx)
	c.Check(help, jc.HasPrefix, "Usage: echo [options] <name>\n")
	c.Check(help, jc.Contains, "Greet someone.")
	c.Check(help, jc.Contains, "--greeting")
	c.Check(help, jc.Contains, "echo prints a greeting.")
}

func (s *cmdSuite) TestAbsPath(c *gc.C) {
	ctx := testContext(c)
	c.Check(ctx.AbsPath("/etc/hosts"), gc.Equals, "/etc/hosts")
	c.Check(ctx.AbsPath("payload.yaml"), gc.Equals, filepath.Join(ctx.Dir, "payload.yaml"))
}

func (s *cmdSuite) TestCheckEmpty(c *gc.C) {
	c.Check(cmd.CheckEmpty(nil), jc.ErrorIsNil)
	c.Check(cmd.CheckEmpty([]string{"x"}), gc.ErrorMatches, `unrecognized args: \["x"\]`)
}

func (s *cmdSuite) TestIsRcPassthroughError(c *gc.C) {
	c.Check(cmd.IsRcPassthroughError(cmd.NewRcPassthroughError(3)), jc.IsTrue)
	c.Check(cmd.IsRcPassthroughError(errors.New("x")), jc.IsFalse)
}
