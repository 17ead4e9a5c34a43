// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2_test

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/provider/ec2"
)

type getMetadataFunc func(context.Context, *imds.GetMetadataInput, ...func(*imds.Options)) (*imds.GetMetadataOutput, error)

func (f getMetadataFunc) GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	return f(ctx, params, optFns...)
}

type metadataSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&metadataSuite{})

func respondWith(body string) getMetadataFunc {
	return func(_ context.Context, in *imds.GetMetadataInput, _ ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
		if in.Path != "instance-id" {
			return nil, errors.NotFoundf("path %q", in.Path)
		}
		return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(body))}, nil
	}
}

func (s *metadataSuite) TestInstanceID(c *gc.C) {
	id, err := ec2.InstanceID(context.Background(), respondWith("i-0abc\n"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(id, gc.Equals, "i-0abc")
}

func (s *metadataSuite) TestInstanceIDEmpty(c *gc.C) {
	_, err := ec2.InstanceID(context.Background(), respondWith("  "))
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *metadataSuite) TestInstanceIDError(c *gc.C) {
	_, err := ec2.InstanceID(context.Background(), getMetadataFunc(func(context.Context, *imds.GetMetadataInput, ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
		return nil, errors.New("no route to host")
	}))
	c.Assert(err, gc.ErrorMatches, "querying instance id: no route to host")
}
