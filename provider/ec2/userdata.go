// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ec2

import (
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// MaxUserdataSize is the largest user-data EC2 accepts, after encoding.
const MaxUserdataSize = 16384

// EncodeUserdata prepares rendered cloud-config for EC2. Cloud-init
// transparently decompresses gzip user-data, which stretches the size
// limit considerably for text payloads.
func EncodeUserdata(data []byte, compress bool) ([]byte, error) {
	if compress {
		data = utils.Gzip(data)
	}
	if len(data) > MaxUserdataSize {
		return nil, errors.NotValidf(
			"user-data of %d bytes exceeds the EC2 limit of %d bytes; publish the payload to S3 instead",
			len(data), MaxUserdataSize,
		)
	}
	return data, nil
}
