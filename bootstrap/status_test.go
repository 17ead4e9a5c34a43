// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/bootstrap"
)

type statusSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&statusSuite{})

var finished = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func (s *statusSuite) TestSuccess(c *gc.C) {
	st := bootstrap.NewStatus(bootstrap.StepHealth, nil, 1500*time.Millisecond, finished)
	c.Assert(st, jc.DeepEquals, bootstrap.Status{
		Step:    "health",
		Status:  "ok",
		Message: "bootstrap complete",
		Elapsed: "1.5s",
		Time:    finished,
	})
}

func (s *statusSuite) TestFailure(c *gc.C) {
	err := &bootstrap.StepError{
		Step:     bootstrap.StepMount,
		Category: bootstrap.CategoryMount,
		Err:      errors.New("mount exited 32"),
	}
	st := bootstrap.NewStatus(bootstrap.StepMount, err, time.Second, finished)
	c.Assert(st.Status, gc.Equals, "failed")
	c.Assert(st.Category, gc.Equals, bootstrap.CategoryMount)
	c.Assert(st.Message, gc.Equals, "mount exited 32")
}

func (s *statusSuite) TestWriteSingleLine(c *gc.C) {
	var buf bytes.Buffer
	st := bootstrap.NewStatus(bootstrap.StepStart, &bootstrap.StepError{
		Step:     bootstrap.StepStart,
		Category: bootstrap.CategoryStart,
		Err:      errors.New("exited 1"),
	}, 0, finished)
	c.Assert(st.Write(&buf), jc.ErrorIsNil)

	out := buf.String()
	c.Assert(out[len(out)-1], gc.Equals, byte('\n'))
	c.Assert(bytes.Count(buf.Bytes(), []byte("\n")), gc.Equals, 1)

	var fields map[string]interface{}
	c.Assert(json.Unmarshal(buf.Bytes(), &fields), jc.ErrorIsNil)
	c.Check(fields["step"], gc.Equals, "start")
	c.Check(fields["category"], gc.Equals, "start")
	c.Check(fields["status"], gc.Equals, "failed")
	c.Check(fields["message"], gc.Equals, "exited 1")
	c.Check(fields["elapsed"], gc.Equals, "0s")
}

func (s *statusSuite) TestSaveAndRead(c *gc.C) {
	path := filepath.Join(c.MkDir(), "lib", "status.json")
	st := bootstrap.NewStatus(bootstrap.StepHealth, nil, time.Minute, finished)
	c.Assert(bootstrap.SaveStatus(path, st), jc.ErrorIsNil)

	got, err := bootstrap.ReadStatus(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(got, jc.DeepEquals, st)
}

func (s *statusSuite) TestReadMissing(c *gc.C) {
	_, err := bootstrap.ReadStatus(filepath.Join(c.MkDir(), "status.json"))
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *statusSuite) TestReadCorrupt(c *gc.C) {
	path := filepath.Join(c.MkDir(), "status.json")
	c.Assert(os.WriteFile(path, []byte("{"), 0644), jc.ErrorIsNil)
	_, err := bootstrap.ReadStatus(path)
	c.Assert(err, gc.ErrorMatches, "parsing .*")
}
