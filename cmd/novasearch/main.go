// Package main provides the novasearch CLI entry point.
// novasearch indexes a filesystem in the background and answers
// ranked filename queries from a local SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/novasearch/novasearch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
