// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package payload_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/payload"
)

type payloadSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&payloadSuite{})

const sampleDoc = `
settings:
  account: openhands
  device: /dev/xvdf
files:
  docker-compose.yml: |
    services: {}
  .openhands/setup.sh: |
    #!/bin/bash
    echo hi
  .openhands/microagents/repo.md: "# repo\n"
`

func (s *payloadSuite) TestParse(c *gc.C) {
	p, err := payload.Parse([]byte(sampleDoc))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p.Settings["account"], gc.Equals, "openhands")

	var names []string
	for _, f := range p.Files() {
		names = append(names, f.Name)
	}
	c.Check(names, jc.DeepEquals, []string{
		".openhands/microagents/repo.md",
		".openhands/setup.sh",
		"docker-compose.yml",
	})

	f, err := p.File(".openhands/microagents/repo.md")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(f.Content), gc.Equals, "# repo\n")
}

func (s *payloadSuite) TestFileModes(c *gc.C) {
	c.Check(payload.File{Name: ".openhands/setup.sh"}.Mode(), gc.Equals, payload.ScriptMode)
	c.Check(payload.File{Name: ".openhands/setup.sh"}.Executable(), jc.IsTrue)
	c.Check(payload.File{Name: "litellm-config.yml"}.Mode(), gc.Equals, payload.FileMode)
	c.Check(payload.File{Name: "litellm-config.yml"}.Executable(), jc.IsFalse)
}

func (s *payloadSuite) TestFileNotFound(c *gc.C) {
	p, err := payload.New(nil, nil)
	c.Assert(err, jc.ErrorIsNil)
	_, err = p.File("missing")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *payloadSuite) TestInvalidNames(c *gc.C) {
	for _, name := range []string{
		"",
		"/etc/passwd",
		"../escape",
		"a/../../b",
		"./a",
		"a//b",
	} {
		c.Logf("name %q", name)
		_, err := payload.New(nil, map[string][]byte{name: []byte("x")})
		c.Check(err, jc.Satisfies, errors.IsNotValid)
	}
}

func (s *payloadSuite) TestParseInvalidYAML(c *gc.C) {
	_, err := payload.Parse([]byte("files: ["))
	c.Assert(err, gc.ErrorMatches, "cannot parse payload: .*")
}

func (s *payloadSuite) TestParseRejectsEscapingFile(c *gc.C) {
	_, err := payload.Parse([]byte("files:\n  ../../etc/shadow: x\n"))
	c.Assert(err, gc.ErrorMatches, `invalid payload: file name "../../etc/shadow" with relative component not valid`)
}

func (s *payloadSuite) TestMarshalRoundTripKeepsContent(c *gc.C) {
	p, err := payload.Parse([]byte(sampleDoc))
	c.Assert(err, jc.ErrorIsNil)
	data, err := p.Marshal()
	c.Assert(err, jc.ErrorIsNil)
	again, err := payload.Parse(data)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(again.Files(), jc.DeepEquals, p.Files())
}

func (s *payloadSuite) TestLoadFromFile(c *gc.C) {
	path := filepath.Join(c.MkDir(), "payload.yaml")
	err := os.WriteFile(path, []byte(sampleDoc), 0600)
	c.Assert(err, jc.ErrorIsNil)

	p, err := payload.Load(context.Background(), payload.FileSource{Path: path})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(p.Files(), gc.HasLen, 3)
}

func (s *payloadSuite) TestLoadMissingFile(c *gc.C) {
	_, err := payload.Load(context.Background(), payload.FileSource{Path: "/no/such/payload"})
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}
