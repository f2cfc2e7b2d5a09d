// Package main is the entry point of the ballotbox CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/ballotbox/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
