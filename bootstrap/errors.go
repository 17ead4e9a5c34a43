// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap

import (
	"fmt"

	"github.com/juju/errors"
)

// Category classifies a bootstrap failure so operators can tell what
// went wrong from the exit status alone.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryAttachment Category = "attachment"
	CategoryFormat     Category = "format"
	CategoryMount      Category = "mount"
	CategoryAccount    Category = "account"
	CategoryPackage    Category = "package"
	CategoryWrite      Category = "write"
	CategoryManagement Category = "management"
	CategoryStart      Category = "start"
)

var exitCodes = map[Category]int{
	CategoryConfig:     2,
	CategoryAttachment: 10,
	CategoryFormat:     11,
	CategoryMount:      12,
	CategoryAccount:    13,
	CategoryPackage:    14,
	CategoryWrite:      15,
	CategoryManagement: 16,
	CategoryStart:      17,
}

// ExitCode is the process exit status reported for the category.
func (c Category) ExitCode() int {
	if code, ok := exitCodes[c]; ok {
		return code
	}
	return 1
}

// StepError is returned when a step fails.
type StepError struct {
	Step     string
	Category Category
	Err      error
}

// Error is part of the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed (%s): %v", e.Step, e.Category, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of a failed run. Errors not raised by
// a step are configuration errors.
func CategoryOf(err error) Category {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Category
	}
	return CategoryConfig
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return CategoryOf(err).ExitCode()
}
