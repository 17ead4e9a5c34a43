// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/moby/sys/mountinfo"

	"github.com/juju/agentbox/internal/run"
)

// DefaultFstabPath is the host's persistent mount table.
const DefaultFstabPath = "/etc/fstab"

// fstabOptions keeps the machine booting if the volume is ever missing.
const fstabOptions = "defaults,nofail"

// Mounter mounts filesystems and records them in the mount table.
type Mounter struct {
	Run run.Func

	// Mounted reports whether path is already a mount point.
	Mounted func(path string) (bool, error)

	// FstabPath is the mount table to register mounts in.
	FstabPath string
}

// NewMounter returns a Mounter which operates on the host.
func NewMounter() *Mounter {
	return &Mounter{
		Run:       run.LogAndExec,
		Mounted:   mountinfo.Mounted,
		FstabPath: DefaultFstabPath,
	}
}

// Mount mounts the volume's device on its mount point, creating the
// mount point if needed. Nothing is done if something is already
// mounted there.
func (m *Mounter) Mount(ctx context.Context, v Volume) error {
	if err := os.MkdirAll(v.MountPoint, 0755); err != nil {
		return errors.Annotatef(err, "creating mount point %s", v.MountPoint)
	}
	mounted, err := m.Mounted(v.MountPoint)
	if err != nil {
		return errors.Annotatef(err, "checking mount point %s", v.MountPoint)
	}
	if mounted {
		logger.Infof("%s is already mounted", v.MountPoint)
		return nil
	}
	if _, err := m.Run(ctx, run.Cmd("mount", v.Device, v.MountPoint)); err != nil {
		return errors.Annotatef(err, "mounting %s on %s", v.Device, v.MountPoint)
	}
	return nil
}

// Register adds an fstab entry for the volume unless the mount table
// already has an entry for its mount point. It reports whether the
// table was changed.
func (m *Mounter) Register(v Volume) (bool, error) {
	data, err := os.ReadFile(m.FstabPath)
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Annotatef(err, "reading %s", m.FstabPath)
	}
	if hasMountPoint(data, v.MountPoint) {
		logger.Debugf("%s already has an entry for %s", m.FstabPath, v.MountPoint)
		return false, nil
	}

	var buf bytes.Buffer
	buf.Write(data)
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "%s %s %s %s 0 2\n", v.Device, v.MountPoint, v.Filesystem, fstabOptions)

	perm := os.FileMode(0644)
	if info, err := os.Stat(m.FstabPath); err == nil {
		perm = info.Mode().Perm()
	}
	if err := utils.AtomicWriteFile(m.FstabPath, buf.Bytes(), perm); err != nil {
		return false, errors.Annotatef(err, "writing %s", m.FstabPath)
	}
	logger.Infof("registered %s on %s in %s", v.Device, v.MountPoint, m.FstabPath)
	return true, nil
}

// hasMountPoint reports whether any non-comment fstab line mounts
// something on mountPoint.
func hasMountPoint(fstab []byte, mountPoint string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(fstab))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == mountPoint {
			return true
		}
	}
	return false
}
