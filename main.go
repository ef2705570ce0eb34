// Command citewatch runs the crawl scheduler, merger, and REST façade
// described in spec.md.
package main

import (
	"fmt"
	"os"

	"citewatch.io/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
