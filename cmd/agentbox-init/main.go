// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// agentbox-init turns a freshly booted machine with an attached volume
// into one running the agent and gateway services.
package main

import (
	"fmt"
	"os"

	"github.com/juju/loggo/v2"

	"github.com/juju/agentbox/cmd"
)

var logger = loggo.GetLogger("agentbox.cmd.agentbox-init")

const doc = `
agentbox-init prepares the machine from a provisioning payload: it
creates the service account, waits for the persistent volume, formats
and mounts it, installs the container tooling, writes the configuration
files and starts the services.

"render" produces the cloud-init user-data which installs and runs this
binary on first boot. "status" reports the outcome of the last run.
`

// NewSuperCommand returns the agentbox-init command with its
// subcommands registered.
func NewSuperCommand() *cmd.SuperCommand {
	sc := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "agentbox-init",
		Purpose: "Bootstrap an agent machine.",
		Doc:     doc,
		Log:     &cmd.Log{},
	})
	sc.Register(newRunCommand())
	sc.Register(&renderCommand{})
	sc.Register(&statusCommand{})
	sc.Register(&versionCommand{})
	return sc
}

// Main runs agentbox-init with args, which include the program name,
// and returns the process exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(NewSuperCommand(), ctx, args[1:])
}

func main() {
	os.Exit(Main(os.Args))
}
