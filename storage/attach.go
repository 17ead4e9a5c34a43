// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("agentbox.storage")

// AttachmentChecker reports whether a volume is attached to this machine.
// A NotFound or NotValid error stops the wait immediately; any other
// error is logged and the check retried.
type AttachmentChecker interface {
	Attached(ctx context.Context) (bool, error)
	String() string
}

// DeviceChecker considers a volume attached once its device node exists.
type DeviceChecker struct {
	Path string
}

// Attached is part of the AttachmentChecker interface.
func (d DeviceChecker) Attached(_ context.Context) (bool, error) {
	_, err := os.Stat(d.Path)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// String is part of the AttachmentChecker interface.
func (d DeviceChecker) String() string {
	return fmt.Sprintf("device %s", d.Path)
}

// AwaitParams configures AwaitAttachment.
type AwaitParams struct {
	// Checkers must all report the volume attached.
	Checkers []AttachmentChecker

	// Attempts bounds the number of polls.
	Attempts int

	// Delay is the fixed interval between polls.
	Delay time.Duration

	Clock clock.Clock
}

type notYetError struct {
	checker AttachmentChecker
}

func (e notYetError) Error() string {
	return e.checker.String() + " not yet attached"
}

// AwaitAttachment polls the checkers until every one reports the volume
// attached. It fails with an error wrapping ErrNotAttached once the
// attempts are used up.
func AwaitAttachment(ctx context.Context, args AwaitParams) error {
	if len(args.Checkers) == 0 {
		return errors.NotValidf("no attachment checkers")
	}
	attempts := 0
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			for _, checker := range args.Checkers {
				attached, err := checker.Attached(ctx)
				if err != nil {
					return errors.Annotatef(err, "checking %s", checker)
				}
				if !attached {
					return notYetError{checker}
				}
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return errors.IsNotFound(err) || errors.IsNotValid(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if _, ok := err.(notYetError); ok {
				logger.Debugf("attempt %d: %v", attempt, err)
				return
			}
			logger.Warningf("attempt %d: %v", attempt, err)
		},
		Attempts: args.Attempts,
		Delay:    args.Delay,
		Clock:    args.Clock,
		Stop:     ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		err = errors.Annotatef(retry.LastError(err), "%v after %d attempts", ErrNotAttached, attempts)
		return errors.WithType(err, ErrNotAttached)
	}
	if retry.IsRetryStopped(err) {
		return errors.Annotate(ctx.Err(), "waiting for volume attachment")
	}
	return errors.Trace(err)
}
