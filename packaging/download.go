// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package packaging

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// BinaryMode is the permission given to downloaded tools.
const BinaryMode = 0755

// Download fetches url into dest. The body is streamed to a temporary
// file beside dest which is renamed into place only once complete, so an
// interrupted download never leaves a truncated executable behind.
func Download(ctx context.Context, url, dest string) error {
	return download(ctx, http.DefaultClient, url, dest)
}

func download(ctx context.Context, client *http.Client, url, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.NewNotValid(err, "download url")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Annotatef(err, "fetching %s", url)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFoundf("%s", url)
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("fetching %s: %s", url, resp.Status)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return errors.Annotatef(err, "reading %s", url)
	}
	if err := f.Chmod(BinaryMode); err != nil {
		return errors.Trace(err)
	}
	if err := f.Close(); err != nil {
		return errors.Trace(err)
	}
	if err := os.Rename(f.Name(), dest); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("downloaded %s from %s to %s", humanize.IBytes(uint64(n)), url, dest)
	return nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
