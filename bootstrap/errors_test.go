// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/bootstrap"
)

type errorsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&errorsSuite{})

func (s *errorsSuite) TestExitCodes(c *gc.C) {
	for category, code := range map[bootstrap.Category]int{
		bootstrap.CategoryConfig:     2,
		bootstrap.CategoryAttachment: 10,
		bootstrap.CategoryFormat:     11,
		bootstrap.CategoryMount:      12,
		bootstrap.CategoryAccount:    13,
		bootstrap.CategoryPackage:    14,
		bootstrap.CategoryWrite:      15,
		bootstrap.CategoryManagement: 16,
		bootstrap.CategoryStart:      17,
		bootstrap.Category("other"):  1,
	} {
		c.Check(category.ExitCode(), gc.Equals, code, gc.Commentf("category %s", category))
	}
}

func (s *errorsSuite) TestStepError(c *gc.C) {
	cause := errors.NotFoundf("device /dev/xvdf")
	err := errors.Trace(&bootstrap.StepError{
		Step:     bootstrap.StepAttach,
		Category: bootstrap.CategoryAttachment,
		Err:      cause,
	})
	c.Check(err, gc.ErrorMatches, `step attach failed \(attachment\): device /dev/xvdf not found`)
	c.Check(bootstrap.CategoryOf(err), gc.Equals, bootstrap.CategoryAttachment)
	c.Check(bootstrap.ExitCode(err), gc.Equals, 10)
	c.Check(err, jc.Satisfies, errors.IsNotFound)
}

func (s *errorsSuite) TestExitCodeOtherErrors(c *gc.C) {
	c.Check(bootstrap.ExitCode(nil), gc.Equals, 0)
	c.Check(bootstrap.ExitCode(errors.New("bad payload")), gc.Equals, 2)
}
