// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package ec2 connects the bootstrap sequencer to the AWS APIs it can
// optionally consult: EC2 for volume attachment state, ECR for registry
// credentials, S3 for payloads too large for user-data, and the instance
// metadata service for the machine's own identity.
package ec2

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("agentbox.provider.ec2")

// MetadataClient is the subset of the instance metadata client used here.
type MetadataClient interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// Session bundles the clients for the machine's region.
type Session struct {
	Config   aws.Config
	Metadata MetadataClient
	EC2      *ec2.Client
	ECR      *ecr.Client
	S3       *s3.Client
}

// NewSession loads credentials from the default chain, which on an
// instance is its role. If region is empty it is taken from the
// environment, falling back to the instance metadata service.
func NewSession(ctx context.Context, region string) (*Session, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithEC2IMDSRegion(),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "loading AWS configuration")
	}
	logger.Debugf("using AWS region %q", cfg.Region)
	return &Session{
		Config:   cfg,
		Metadata: imds.NewFromConfig(cfg),
		EC2:      ec2.NewFromConfig(cfg),
		ECR:      ecr.NewFromConfig(cfg),
		S3:       s3.NewFromConfig(cfg),
	}, nil
}

// InstanceID asks the metadata service which instance this is.
func InstanceID(ctx context.Context, client MetadataClient) (string, error) {
	out, err := client.GetMetadata(ctx, &imds.GetMetadataInput{Path: "instance-id"})
	if err != nil {
		return "", errors.Annotate(err, "querying instance id")
	}
	defer out.Content.Close()
	data, err := io.ReadAll(out.Content)
	if err != nil {
		return "", errors.Annotate(err, "reading instance id")
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", errors.NotFoundf("instance id")
	}
	return id, nil
}
