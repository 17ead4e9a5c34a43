// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cloudinit

import (
	"encoding/base64"
	"fmt"

	"github.com/juju/utils/v4"
)

// addFileCmds returns the shell commands which write a file with the
// given mode. The content is carried base64 encoded so that any bytes
// survive the shell. An existing file is overwritten.
func addFileCmds(filename string, data []byte, mode uint) []string {
	p := utils.ShQuote(filename)
	encoded := base64.StdEncoding.EncodeToString(data)
	return []string{
		fmt.Sprintf("install -D -m %o /dev/null %s", mode, p),
		fmt.Sprintf(`printf %%s %s | base64 -d > %s`, encoded, p),
	}
}
