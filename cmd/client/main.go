// Package main is the sealkeeper command line client.
package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/atinyakov/SealKeeper/internal/cli"
)

var (
	version   string
	buildDate string
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
