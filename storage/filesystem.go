// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storage

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/agentbox/internal/run"
)

// blkidNoMatch is blkid's exit status when the device carries no
// recognisable signature.
const blkidNoMatch = 2

// Filesystems detects and creates filesystems on block devices.
type Filesystems struct {
	Run run.Func
}

// Type returns the filesystem type found on the device, or the empty
// string if the device carries no filesystem signature.
func (f Filesystems) Type(ctx context.Context, device string) (string, error) {
	// -p probes the device directly rather than trusting the cache,
	// which may be stale for a freshly attached volume.
	out, err := f.Run(ctx, run.Cmd("blkid", "-p", "-s", "TYPE", "-o", "value", device))
	if run.ExitCode(err) == blkidNoMatch {
		return "", nil
	} else if err != nil {
		return "", errors.Annotatef(err, "probing %s", device)
	}
	return strings.TrimSpace(out), nil
}

// Ensure creates a filesystem of the given type on the device unless one
// is already present, and reports whether it formatted the device.
// An existing filesystem is never touched, whatever its type.
func (f Filesystems) Ensure(ctx context.Context, device, fsType string) (bool, error) {
	existing, err := f.Type(ctx, device)
	if err != nil {
		return false, errors.Trace(err)
	}
	if existing != "" {
		if existing != fsType {
			logger.Warningf("%s already has a %s filesystem, expected %s; leaving it alone", device, existing, fsType)
		} else {
			logger.Infof("%s already has a %s filesystem", device, existing)
		}
		return false, nil
	}
	logger.Infof("creating %s filesystem on %s", fsType, device)
	if _, err := f.Run(ctx, run.Cmd("mkfs."+fsType, device)); err != nil {
		return false, errors.Annotatef(err, "creating %s filesystem on %s", fsType, device)
	}
	return true, nil
}
