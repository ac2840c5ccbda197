// Command sspace validates, samples and converts hyperparameter space
// definitions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sspace/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sspace: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
