// Package main provides the leapscale CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapscale/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
