// Package main provides the entry point for the orc-task CLI.
package main

import (
	"os"

	"github.com/limaronaldo/orc-task/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
