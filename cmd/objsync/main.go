// Command objsync syncs host document elements with content-addressed
// object stores.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/objsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
