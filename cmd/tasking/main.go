// Command tasking runs the provider task lifecycle engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tasking/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
