// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2_test

import (
	"bytes"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/provider/ec2"
)

type userdataSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&userdataSuite{})

func (s *userdataSuite) TestPlain(c *gc.C) {
	data := []byte("#cloud-config\n")
	result, err := ec2.EncodeUserdata(data, false)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result, jc.DeepEquals, data)
}

func (s *userdataSuite) TestGzip(c *gc.C) {
	data := []byte("#cloud-config\n")
	result, err := ec2.EncodeUserdata(data, true)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result, jc.DeepEquals, utils.Gzip(data))
}

func (s *userdataSuite) TestTooLarge(c *gc.C) {
	data := make([]byte, ec2.MaxUserdataSize+1)
	_, err := ec2.EncodeUserdata(data, false)
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	c.Assert(err, gc.ErrorMatches, `user-data of 16385 bytes exceeds the EC2 limit of 16384 bytes.*`)
}

func (s *userdataSuite) TestCompressionStretchesLimit(c *gc.C) {
	data := bytes.Repeat([]byte("x"), 4*ec2.MaxUserdataSize)
	result, err := ec2.EncodeUserdata(data, true)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(len(result) < ec2.MaxUserdataSize, jc.IsTrue)
}
