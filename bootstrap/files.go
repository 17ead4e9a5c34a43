// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/juju/agentbox/account"
	"github.com/juju/agentbox/payload"
)

var lchown = os.Lchown

// ValidateFiles checks that no payload file takes the place of a path
// the layout owns.
func ValidateFiles(files []payload.File) error {
	for _, f := range files {
		if f.Name == StateLink {
			return errors.NotValidf("payload file %q replacing the state link", f.Name)
		}
	}
	return nil
}

// WriteFiles writes every payload file under root, owned by the account.
// Each file is written to a temporary name, given its owner and mode,
// and renamed into place, so readers only ever see complete content.
// A link at a file's path is never replaced.
func WriteFiles(root string, owner account.Account, files []payload.File) error {
	if err := ValidateFiles(files); err != nil {
		return errors.Trace(err)
	}
	for _, f := range files {
		dest := filepath.Join(root, filepath.FromSlash(f.Name))
		if err := mkdirAllOwned(root, filepath.Dir(dest), owner); err != nil {
			return errors.Trace(err)
		}
		if info, err := os.Lstat(dest); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.AlreadyExistsf("%s as a link", dest)
		}
		mode := f.Mode()
		err := utils.AtomicWriteFileAndChange(dest, f.Content, func(tmp string) error {
			if err := lchown(tmp, owner.UID, owner.GID); err != nil {
				return errors.Trace(err)
			}
			return errors.Trace(os.Chmod(tmp, mode))
		})
		if err != nil {
			return errors.Annotatef(err, "writing %s", dest)
		}
		logger.Debugf("wrote %s (%d bytes, mode %o)", dest, len(f.Content), mode)
	}
	return nil
}

// mkdirAllOwned creates dir and any missing parents below root, giving
// each directory it creates to the account. Existing directories, and
// links to directories, are left as they are.
func mkdirAllOwned(root, dir string, owner account.Account) error {
	rel, err := filepath.Rel(root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return errors.NotValidf("directory %s outside %s", dir, root)
	}
	if rel == "." {
		return nil
	}
	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return errors.AlreadyExistsf("%s as a file", current)
			}
			continue
		}
		if !os.IsNotExist(err) {
			return errors.Trace(err)
		}
		if err := os.Mkdir(current, 0755); err != nil {
			return errors.Annotatef(err, "creating %s", current)
		}
		if err := lchown(current, owner.UID, owner.GID); err != nil {
			return errors.Annotatef(err, "chown %s", current)
		}
	}
	return nil
}
