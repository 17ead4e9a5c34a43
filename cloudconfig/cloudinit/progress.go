// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cloudinit

import (
	"fmt"

	"github.com/juju/utils/v4"
)

// progressFdEnvVar names the file descriptor progress messages are
// written to for the duration of the first boot script.
const progressFdEnvVar = "AGENTBOX_PROGRESS_FD"

// InitProgressCmd returns a command to initialise progress reporting,
// sending messages to stderr. It must run before any command returned
// by LogProgressCmd.
func InitProgressCmd() string {
	// This command may be run by either bash or /bin/sh, the
	// latter of which does not support named file descriptors.
	// When running under /bin/sh progress goes to FD 2.
	return fmt.Sprintf(
		`test -n "$%s" || `+
			`(exec {%s}>&2) 2>/dev/null && exec {%s}>&2 || `+
			`%s=2`,
		progressFdEnvVar,
		progressFdEnvVar,
		progressFdEnvVar,
		progressFdEnvVar,
	)
}

// LogProgressCmd returns a command which logs a progress message.
func LogProgressCmd(format string, args ...interface{}) string {
	msg := utils.ShQuote(fmt.Sprintf(format, args...))
	return fmt.Sprintf("echo %s >&$%s", msg, progressFdEnvVar)
}

// DumpFileOnErrorScript returns a script which dumps the contents of
// filename to stderr when the shell exits with an error, so the failure
// reaches the console log.
func DumpFileOnErrorScript(filename string) string {
	script := `
dump_file() {
    code=$?
    if [ $code -ne 0 -a -e %s ]; then
        cat %s >&2
    fi
    exit $code
}
trap dump_file EXIT
`[1:]
	filename = utils.ShQuote(filename)
	return fmt.Sprintf(script, filename, filename)
}
