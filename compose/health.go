// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package compose

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("agentbox.compose")

// ErrUnhealthy is wrapped by the error returned when the services never
// accept connections.
const ErrUnhealthy = errors.ConstError("services not accepting connections")

// DialFunc opens a connection, as net.Dialer.DialContext does.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// HealthParams configures WaitHealthy.
type HealthParams struct {
	// Ports are probed on the loopback address.
	Ports []int

	Attempts int
	Delay    time.Duration
	Clock    clock.Clock

	// Dial defaults to a net.Dialer with a short timeout.
	Dial DialFunc
}

// WaitHealthy waits until every port accepts a TCP connection. Ports
// that answer are not probed again.
func WaitHealthy(ctx context.Context, args HealthParams) error {
	if len(args.Ports) == 0 {
		logger.Infof("no ports to probe")
		return nil
	}
	dial := args.Dial
	if dial == nil {
		d := &net.Dialer{Timeout: time.Second}
		dial = d.DialContext
	}
	pending := append([]int(nil), args.Ports...)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var still []int
			for _, port := range pending {
				addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
				conn, err := dial(ctx, "tcp", addr)
				if err != nil {
					still = append(still, port)
					continue
				}
				_ = conn.Close()
				logger.Infof("port %d accepting connections", port)
			}
			pending = still
			if len(pending) > 0 {
				return errors.Errorf("ports %v not listening", pending)
			}
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("attempt %d: %v", attempt, err)
		},
		Attempts: args.Attempts,
		Delay:    args.Delay,
		Clock:    args.Clock,
		Stop:     ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		err = errors.Annotatef(retry.LastError(err), "%v after %d attempts", ErrUnhealthy, args.Attempts)
		return errors.WithType(err, ErrUnhealthy)
	}
	if retry.IsRetryStopped(err) {
		return errors.Annotate(ctx.Err(), "waiting for services")
	}
	return errors.Trace(err)
}
