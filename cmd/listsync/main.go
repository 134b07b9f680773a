// Command listsync keeps local lists in sync with a REST collection and
// runs the reference server.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/listsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
