// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/bootstrap"
	"github.com/juju/agentbox/payload"
)

type filesSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&filesSuite{})

func (s *filesSuite) TestWriteFiles(c *gc.C) {
	home := c.MkDir()
	p, err := payload.New(nil, map[string][]byte{
		"docker-compose.yml":       []byte("services: {}\n"),
		".openhands/setup.sh":      []byte("#!/bin/bash\n"),
		"litellm-config.yml":       []byte("model_list: []\n"),
		".openhands/a/b/c.md":      []byte("deep\n"),
		".openhands/pre-commit.sh": []byte("#!/bin/bash\nexit 0\n"),
	})
	c.Assert(err, jc.ErrorIsNil)

	err = bootstrap.WriteFiles(home, currentAccount(home), p.Files())
	c.Assert(err, jc.ErrorIsNil)

	for _, f := range p.Files() {
		path := filepath.Join(home, f.Name)
		data, err := os.ReadFile(path)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(data, jc.DeepEquals, f.Content)
		info, err := os.Stat(path)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(info.Mode().Perm(), gc.Equals, f.Mode(), gc.Commentf("file %s", f.Name))
	}
}

func (s *filesSuite) TestOverwrite(c *gc.C) {
	home := c.MkDir()
	path := filepath.Join(home, "litellm-config.yml")
	err := os.WriteFile(path, []byte("old content that is longer\n"), 0600)
	c.Assert(err, jc.ErrorIsNil)

	files := []payload.File{{Name: "litellm-config.yml", Content: []byte("new\n")}}
	err = bootstrap.WriteFiles(home, currentAccount(home), files)
	c.Assert(err, jc.ErrorIsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, "new\n")
	info, err := os.Stat(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(info.Mode().Perm(), gc.Equals, payload.FileMode)
}

func (s *filesSuite) TestFileInTheWay(c *gc.C) {
	home := c.MkDir()
	err := os.WriteFile(filepath.Join(home, ".openhands"), nil, 0644)
	c.Assert(err, jc.ErrorIsNil)

	files := []payload.File{{Name: ".openhands/setup.sh", Content: []byte("#!/bin/sh\n")}}
	err = bootstrap.WriteFiles(home, currentAccount(home), files)
	c.Assert(err, gc.ErrorMatches, `.*/\.openhands as a file already exists`)
}

func (s *filesSuite) TestWriteFilesOwnership(c *gc.C) {
	rec := &chownRecorder{}
	s.PatchValue(bootstrap.Lchown, rec.lchown)
	home := c.MkDir()
	p, err := payload.New(nil, map[string][]byte{
		"docker-compose.yml":  []byte("services: {}\n"),
		".openhands/a/b/c.md": []byte("deep\n"),
	})
	c.Assert(err, jc.ErrorIsNil)

	err = bootstrap.WriteFiles(home, serviceAccount(home), p.Files())
	c.Assert(err, jc.ErrorIsNil)

	for _, name := range []string{
		"docker-compose.yml",
		".openhands",
		".openhands/a",
		".openhands/a/b",
		".openhands/a/b/c.md",
	} {
		rec.checkOwner(c, filepath.Join(home, name), 1001, 1002)
	}
}

func (s *filesSuite) TestRefusesStateLinkName(c *gc.C) {
	home := c.MkDir()
	files := []payload.File{{Name: ".openhands", Content: []byte("oops")}}
	err := bootstrap.WriteFiles(home, currentAccount(home), files)
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	c.Assert(err, gc.ErrorMatches, `payload file ".openhands" replacing the state link not valid`)

	_, err = os.Lstat(filepath.Join(home, ".openhands"))
	c.Assert(os.IsNotExist(err), jc.IsTrue)
}

func (s *filesSuite) TestRefusesToReplaceLink(c *gc.C) {
	home := c.MkDir()
	target := filepath.Join(c.MkDir(), "litellm-config.yml")
	err := os.Symlink(target, filepath.Join(home, "litellm-config.yml"))
	c.Assert(err, jc.ErrorIsNil)

	files := []payload.File{{Name: "litellm-config.yml", Content: []byte("new\n")}}
	err = bootstrap.WriteFiles(home, currentAccount(home), files)
	c.Assert(err, jc.Satisfies, errors.IsAlreadyExists)

	link, err := os.Readlink(filepath.Join(home, "litellm-config.yml"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(link, gc.Equals, target)
}
