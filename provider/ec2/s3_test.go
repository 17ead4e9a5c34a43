// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2_test

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/payload"
	"github.com/juju/agentbox/provider/ec2"
)

type getObjectFunc func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)

func (f getObjectFunc) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f(ctx, params, optFns...)
}

type s3Suite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&s3Suite{})

var _ payload.Source = ec2.S3Source{}

func (s *s3Suite) TestParseS3URL(c *gc.C) {
	bucket, key, err := ec2.ParseS3URL("s3://boxes/prod/payload.yaml")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(bucket, gc.Equals, "boxes")
	c.Check(key, gc.Equals, "prod/payload.yaml")
}

func (s *s3Suite) TestParseS3URLInvalid(c *gc.C) {
	for _, loc := range []string{
		"https://boxes/payload.yaml",
		"s3:///payload.yaml",
		"s3://boxes",
		"s3://boxes/",
	} {
		c.Logf("location %q", loc)
		_, _, err := ec2.ParseS3URL(loc)
		c.Check(err, jc.Satisfies, errors.IsNotValid)
	}
}

func (s *s3Suite) TestIsS3URL(c *gc.C) {
	c.Check(ec2.IsS3URL("s3://boxes/p"), jc.IsTrue)
	c.Check(ec2.IsS3URL("/etc/agentbox/payload.yaml"), jc.IsFalse)
}

func (s *s3Suite) TestFetch(c *gc.C) {
	var got *s3.GetObjectInput
	src := ec2.S3Source{
		Client: getObjectFunc(func(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			got = in
			return &s3.GetObjectOutput{
				Body: io.NopCloser(strings.NewReader("files: {}\n")),
			}, nil
		}),
		Bucket: "boxes",
		Key:    "payload.yaml",
	}
	p, err := payload.Load(context.Background(), src)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p.Files(), gc.HasLen, 0)
	c.Check(aws.ToString(got.Bucket), gc.Equals, "boxes")
	c.Check(aws.ToString(got.Key), gc.Equals, "payload.yaml")
	c.Check(src.String(), gc.Equals, "s3://boxes/payload.yaml")
}

func (s *s3Suite) TestFetchMissing(c *gc.C) {
	src := ec2.S3Source{
		Client: getObjectFunc(func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
		}),
		Bucket: "boxes",
		Key:    "payload.yaml",
	}
	_, err := src.Fetch(context.Background())
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}
