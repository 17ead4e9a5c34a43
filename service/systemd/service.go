// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package systemd enables and starts pre-installed units over D-Bus.
package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/util"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("agentbox.service.systemd")

// ErrNotRunning is returned when the host is not booted with systemd.
const ErrNotRunning = errors.ConstError("systemd is not the init system")

// IsRunning returns whether or not systemd is the local init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// Manager controls units through a systemd D-Bus connection.
type Manager struct {
	newDBus   DBusAPIFactory
	isRunning func() bool
}

// NewManager returns a Manager talking to the host's systemd.
func NewManager() *Manager {
	return NewManagerWith(NewDBusAPI, IsRunning)
}

// NewManagerWith returns a Manager using the given connection factory and
// init system check.
func NewManagerWith(newDBus DBusAPIFactory, isRunning func() bool) *Manager {
	return &Manager{newDBus: newDBus, isRunning: isRunning}
}

func (m *Manager) errorf(unit string, err error, msg string, args ...interface{}) error {
	msg += " for unit %q"
	args = append(args, unit)
	if err == nil {
		err = errors.Errorf(msg, args...)
	} else {
		err = errors.Annotatef(err, msg, args...)
	}
	err.(*errors.Err).SetLocation(1)
	logger.Errorf("%v", err)
	logger.Debugf("stack trace:\n%s", errors.ErrorStack(err))
	return err
}

func running(ctx context.Context, conn DBusAPI, unit string) (bool, error) {
	units, err := conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		return false, errors.Trace(err)
	}
	for _, u := range units {
		if u.Name == unit {
			if u.LoadState == "not-found" {
				return false, errors.NotFoundf("unit %q", unit)
			}
			return u.ActiveState == "active", nil
		}
	}
	return false, errors.NotFoundf("unit %q", unit)
}

// EnableAndStart enables the unit so it starts on boot and starts it now.
// A unit that is already active is enabled but not restarted. It reports
// whether the unit had to be started. On hosts without systemd it
// returns ErrNotRunning.
func (m *Manager) EnableAndStart(ctx context.Context, unit string) (bool, error) {
	if !m.isRunning() {
		return false, ErrNotRunning
	}
	conn, err := m.newDBus(ctx)
	if err != nil {
		return false, m.errorf(unit, err, "dbus connection failed")
	}
	defer conn.Close()

	active, err := running(ctx, conn, unit)
	if err != nil {
		return false, m.errorf(unit, err, "unit status check failed")
	}

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return false, m.errorf(unit, err, "dbus enable request failed")
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return false, m.errorf(unit, err, "dbus post-enable daemon reload request failed")
	}
	if active {
		logger.Infof("unit %s already active", unit)
		return false, nil
	}

	statusCh := make(chan string, 1)
	if _, err := conn.StartUnitContext(ctx, unit, "replace", statusCh); err != nil {
		return false, m.errorf(unit, err, "dbus start request failed")
	}
	if err := m.wait(ctx, unit, "start", statusCh); err != nil {
		return false, errors.Trace(err)
	}
	logger.Infof("unit %s started", unit)
	return true, nil
}

func (m *Manager) wait(ctx context.Context, unit, op string, statusCh chan string) error {
	select {
	case status := <-statusCh:
		// See the possible values for status in the StartUnit docs:
		//  https://godoc.org/github.com/coreos/go-systemd/dbus#Conn.StartUnit
		if status != "done" {
			return m.errorf(unit, nil, "failed to %s (API status %q)", op, status)
		}
		return nil
	case <-ctx.Done():
		return m.errorf(unit, ctx.Err(), "waiting to %s", op)
	}
}
