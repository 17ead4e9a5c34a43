// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/juju/errors"
)

// ObjectClient is the subset of the S3 API used to fetch payloads.
type ObjectClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a payload document from an S3 object. It satisfies
// payload.Source.
type S3Source struct {
	Client ObjectClient
	Bucket string
	Key    string
}

// IsS3URL reports whether location names an S3 object.
func IsS3URL(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseS3URL splits an "s3://bucket/key" location.
func ParseS3URL(location string) (bucket, key string, _ error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.NewNotValid(err, fmt.Sprintf("s3 location %q", location))
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", errors.NotValidf("s3 location %q", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", errors.NotValidf("s3 location %q without key", location)
	}
	return u.Host, key, nil
}

// Fetch is part of the payload.Source interface.
func (s S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, maybeNotFound(err, "payload %s", s)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Annotatef(err, "reading payload %s", s)
	}
	return data, nil
}

// String is part of the payload.Source interface.
func (s S3Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}
