// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package account creates the service account which owns the agent
// configuration and the persistent data.
package account

import (
	"context"
	"os/user"
	"strconv"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/agentbox/internal/run"
)

var logger = loggo.GetLogger("agentbox.account")

// Account identifies a host user.
type Account struct {
	Name string
	UID  int
	GID  int
	Home string
}

// Lookup abstracts the host user and group databases.
type Lookup interface {
	User(name string) (*user.User, error)
	Group(name string) (*user.Group, error)
	GroupIDs(u *user.User) ([]string, error)
}

type osLookup struct{}

// OSLookup reads the host's user and group databases.
var OSLookup Lookup = osLookup{}

func (osLookup) User(name string) (*user.User, error) {
	return user.Lookup(name)
}

func (osLookup) Group(name string) (*user.Group, error) {
	return user.LookupGroup(name)
}

func (osLookup) GroupIDs(u *user.User) ([]string, error) {
	return u.GroupIds()
}

// Manager ensures accounts exist.
type Manager struct {
	Run    run.Func
	Lookup Lookup
}

// NewManager returns a Manager which operates on the host.
func NewManager() *Manager {
	return &Manager{Run: run.LogAndExec, Lookup: OSLookup}
}

// Ensure makes sure the named account exists with a home directory and
// is a member of every given group. Missing groups are created as
// system groups, so the account can be set up before the packages that
// normally own those groups are installed. It is safe to call repeatedly.
func (m *Manager) Ensure(ctx context.Context, name string, groups []string) (Account, error) {
	u, err := m.Lookup.User(name)
	if isUnknown(err) {
		logger.Infof("creating account %q", name)
		if _, err := m.Run(ctx, run.Cmd("useradd", "--create-home", "--shell", "/bin/bash", name)); err != nil {
			return Account{}, errors.Annotatef(err, "creating account %q", name)
		}
		u, err = m.Lookup.User(name)
	}
	if err != nil {
		return Account{}, errors.Annotatef(err, "looking up account %q", name)
	}

	missing, err := m.missingGroups(ctx, u, groups)
	if err != nil {
		return Account{}, errors.Trace(err)
	}
	if !missing.IsEmpty() {
		logger.Infof("adding %q to groups %v", name, missing.SortedValues())
		args := []string{"-aG", strings.Join(missing.SortedValues(), ","), name}
		if _, err := m.Run(ctx, run.Cmd("usermod", args...)); err != nil {
			return Account{}, errors.Annotatef(err, "adding %q to groups", name)
		}
	}
	return toAccount(u)
}

// missingGroups creates any group which does not exist and returns the
// groups the user is not yet a member of.
func (m *Manager) missingGroups(ctx context.Context, u *user.User, groups []string) (set.Strings, error) {
	current, err := m.Lookup.GroupIDs(u)
	if err != nil {
		return nil, errors.Annotatef(err, "listing groups of %q", u.Username)
	}
	member := set.NewStrings(current...)
	missing := set.NewStrings()
	for _, name := range groups {
		g, err := m.Lookup.Group(name)
		if isUnknown(err) {
			logger.Infof("creating system group %q", name)
			if _, err := m.Run(ctx, run.Cmd("groupadd", "--system", name)); err != nil {
				return nil, errors.Annotatef(err, "creating group %q", name)
			}
			missing.Add(name)
			continue
		} else if err != nil {
			return nil, errors.Annotatef(err, "looking up group %q", name)
		}
		if !member.Contains(g.Gid) {
			missing.Add(name)
		}
	}
	return missing, nil
}

func isUnknown(err error) bool {
	switch errors.Cause(err).(type) {
	case user.UnknownUserError, user.UnknownGroupError:
		return true
	}
	return false
}

func toAccount(u *user.User) (Account, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Account{}, errors.Annotatef(err, "uid of %q", u.Username)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Account{}, errors.Annotatef(err, "gid of %q", u.Username)
	}
	return Account{Name: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}
