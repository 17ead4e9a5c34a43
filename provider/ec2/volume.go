// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/juju/errors"
)

// VolumeClient is the subset of the EC2 API used to inspect volumes.
type VolumeClient interface {
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
}

// AttachmentChecker asks EC2 whether a volume is attached to an instance.
// It satisfies storage.AttachmentChecker.
type AttachmentChecker struct {
	Client     VolumeClient
	VolumeID   string
	InstanceID string
}

// Attached reports whether EC2 shows the volume in the "attached" state
// on the instance. A volume EC2 does not know about yields a NotFound
// error, which ends the wait.
func (a AttachmentChecker) Attached(ctx context.Context) (bool, error) {
	out, err := a.Client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{a.VolumeID},
	})
	if err != nil {
		return false, maybeNotFound(err, "volume %s", a.VolumeID)
	}
	if len(out.Volumes) == 0 {
		return false, errors.NotFoundf("volume %s", a.VolumeID)
	}
	for _, att := range out.Volumes[0].Attachments {
		if aws.ToString(att.InstanceId) != a.InstanceID {
			continue
		}
		logger.Debugf("volume %s on %s is %s", a.VolumeID, a.InstanceID, att.State)
		return att.State == types.VolumeAttachmentStateAttached, nil
	}
	return false, nil
}

// String is part of the storage.AttachmentChecker interface.
func (a AttachmentChecker) String() string {
	return fmt.Sprintf("ec2 volume %s on %s", a.VolumeID, a.InstanceID)
}

// maybeNotFound converts AWS "not found" style API errors into NotFound
// errors so callers can stop retrying.
func maybeNotFound(err error, format string, args ...interface{}) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidVolume.NotFound", "InvalidVolumeID.Malformed", "NoSuchKey", "NoSuchBucket":
			return errors.NewNotFound(err, fmt.Sprintf(format, args...))
		}
	}
	return errors.Annotatef(err, format, args...)
}
