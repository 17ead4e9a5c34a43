// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/juju/errors"

	"github.com/juju/agentbox/docker"
)

// RegistryClient is the subset of the ECR API used for registry login.
type RegistryClient interface {
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// RegistryCredentials fetches a pull token for the account's default
// registry and returns it in the form the docker client config expects.
func RegistryCredentials(ctx context.Context, client RegistryClient) ([]docker.ImageRepoDetails, error) {
	out, err := client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, errors.Annotate(err, "fetching ECR authorization token")
	}
	if len(out.AuthorizationData) == 0 {
		return nil, errors.NotFoundf("ECR authorization data")
	}
	var details []docker.ImageRepoDetails
	for _, data := range out.AuthorizationData {
		rid, err := docker.NewImageRepoDetails(
			aws.ToString(data.ProxyEndpoint),
			aws.ToString(data.AuthorizationToken),
		)
		if err != nil {
			return nil, errors.Annotate(err, "decoding ECR authorization token")
		}
		if data.ExpiresAt != nil {
			logger.Debugf("ECR token for %s expires at %v", rid.ServerAddress, *data.ExpiresAt)
		}
		details = append(details, rid)
	}
	return details, nil
}
