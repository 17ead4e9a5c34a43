// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Status records the outcome of a run.
type Status struct {
	Step     string    `json:"step" yaml:"step"`
	Category Category  `json:"category,omitempty" yaml:"category,omitempty"`
	Status   string    `json:"status" yaml:"status"`
	Message  string    `json:"message" yaml:"message"`
	Elapsed  string    `json:"elapsed" yaml:"elapsed"`
	Time     time.Time `json:"time" yaml:"time"`

	// RunID identifies the run in logs and in the status file.
	RunID string `json:"run-id,omitempty" yaml:"run-id,omitempty"`
}

// NewStatus builds the record for a run that reached step and ended
// with err.
func NewStatus(step string, err error, elapsed time.Duration, now time.Time) Status {
	st := Status{
		Step:    step,
		Status:  StatusOK,
		Message: "bootstrap complete",
		Elapsed: elapsed.Round(time.Millisecond).String(),
		Time:    now.UTC(),
	}
	if err != nil {
		st.Status = StatusFailed
		st.Category = CategoryOf(err)
		st.Message = err.Error()
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			st.Message = stepErr.Err.Error()
		}
	}
	return st
}

// Write emits the status as a single JSON line.
func (st Status) Write(w io.Writer) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = w.Write(append(data, '\n'))
	return errors.Trace(err)
}

// SaveStatus atomically replaces the status file at path.
func SaveStatus(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(utils.AtomicWriteFile(path, append(data, '\n'), 0644), "writing %s", path)
}

// ReadStatus reads a status file written by SaveStatus.
func ReadStatus(path string) (Status, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Status{}, errors.NotFoundf("status file %s", path)
	} else if err != nil {
		return Status{}, errors.Trace(err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, errors.Annotatef(err, "parsing %s", path)
	}
	return st, nil
}
