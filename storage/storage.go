// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package storage prepares the persistent volume: it waits for the
// block device to attach, creates a filesystem only when none exists,
// mounts it and registers the mount so it survives a reboot.
package storage

import (
	"github.com/juju/errors"
)

// ErrNotAttached is wrapped by the error returned when a volume does not
// attach within the allowed attempts.
const ErrNotAttached = errors.ConstError("volume not attached")

// Volume describes the persistent block device and where it lives.
type Volume struct {
	// Device is the block device path, e.g. "/dev/xvdf".
	Device string `yaml:"device"`

	// MountPoint is the directory the filesystem is mounted on.
	MountPoint string `yaml:"mount-point"`

	// Filesystem is the filesystem type created on a blank device.
	Filesystem string `yaml:"filesystem"`
}

// Validate checks that the volume is fully specified.
func (v Volume) Validate() error {
	if v.Device == "" {
		return errors.NotValidf("empty device")
	}
	if v.MountPoint == "" {
		return errors.NotValidf("empty mount point")
	}
	if v.Filesystem == "" {
		return errors.NotValidf("empty filesystem type")
	}
	return nil
}
