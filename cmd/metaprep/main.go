// Package main provides the metaprep CLI: study metadata templates and the
// preprocessing pipeline over a local SQLite store or a shared Postgres one.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
