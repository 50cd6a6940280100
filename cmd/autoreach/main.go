// Package main is the autoreach command line client. It runs analyses and
// audits in-process against the configured providers without a database.
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
