// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/juju/agentbox/account"
)

const (
	// StateDir holds the agent's state on the volume and is linked from
	// the account's home.
	StateDir = "openhands"

	// WorkspaceDir holds the editor workspace on the volume.
	WorkspaceDir = "vscode-workspace"

	// StateLink is the home-relative name resolving to StateDir.
	StateLink = ".openhands"
)

// Layout is the directory structure laid over the mounted volume.
type Layout struct {
	MountPoint string
	Home       string
	Owner      account.Account
}

// DataDirs returns the directories created on the volume.
func (l Layout) DataDirs() []string {
	return []string{
		filepath.Join(l.MountPoint, StateDir),
		filepath.Join(l.MountPoint, WorkspaceDir),
	}
}

// Ensure creates the data directories owned by the account and links the
// account's state path to the volume. An existing link to the right
// place is kept and a link elsewhere is replaced. A real directory in
// the way is an error, as replacing it would hide its contents.
func (l Layout) Ensure() error {
	for _, dir := range l.DataDirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Annotatef(err, "creating %s", dir)
		}
		if err := lchown(dir, l.Owner.UID, l.Owner.GID); err != nil {
			return errors.Annotatef(err, "chown %s", dir)
		}
	}
	parent := filepath.Dir(l.Home)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return errors.Annotatef(err, "creating %s", parent)
	}
	if err := mkdirAllOwned(parent, l.Home, l.Owner); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(l.ensureLink())
}

func (l Layout) ensureLink() error {
	link := filepath.Join(l.Home, StateLink)
	target := filepath.Join(l.MountPoint, StateDir)

	info, err := os.Lstat(link)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return errors.Trace(err)
	case info.Mode()&os.ModeSymlink == 0:
		return errors.AlreadyExistsf("%s as a %s, not a link to %s", link, describe(info), target)
	default:
		current, err := os.Readlink(link)
		if err != nil {
			return errors.Trace(err)
		}
		if current == target {
			logger.Debugf("%s already links to %s", link, target)
			return nil
		}
		logger.Warningf("replacing link %s -> %s with %s", link, current, target)
	}

	// Create the new link beside the old one and rename it over, so the
	// path never goes missing.
	tmp := link + ".new"
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return errors.Annotatef(err, "linking %s", link)
	}
	if err := lchown(tmp, l.Owner.UID, l.Owner.GID); err != nil {
		_ = os.Remove(tmp)
		return errors.Annotatef(err, "chown %s", link)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return errors.Annotatef(err, "linking %s", link)
	}
	return nil
}

func describe(info os.FileInfo) string {
	if info.IsDir() {
		return "directory"
	}
	return "file"
}
