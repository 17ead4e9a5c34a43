// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package payload

import (
	"context"
	"os"

	"github.com/juju/errors"
)

// DefaultPath is where cloud-init leaves the payload document.
const DefaultPath = "/etc/agentbox/payload.yaml"

// Source provides the raw payload document.
type Source interface {
	// Fetch returns the payload document bytes.
	Fetch(ctx context.Context) ([]byte, error)

	// String describes the source for logging.
	String() string
}

// FileSource reads the payload from the local filesystem.
type FileSource struct {
	Path string
}

// Fetch is part of the Source interface.
func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("payload file %q", s.Path)
	} else if err != nil {
		return nil, errors.Annotatef(err, "reading payload %q", s.Path)
	}
	return data, nil
}

// String is part of the Source interface.
func (s FileSource) String() string {
	return s.Path
}

// Load fetches and parses a payload from the source.
func Load(ctx context.Context, src Source) (*Payload, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "payload from %s", src)
	}
	return p, nil
}
