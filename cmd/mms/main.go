// Command mms serves and administers versioned RDF models on a SPARQL store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mms/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsSilent(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
