// Command auditctl runs an inventory audit from the terminal against the
// same saved session as the web server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/patrimonio/internal/core"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "erro:", err)
			if core.IsUserFacing(err) {
				fmt.Fprintln(os.Stderr, core.FormatUserError(err))
			}
		}
		os.Exit(1)
	}
}
