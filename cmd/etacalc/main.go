package main

import (
	"os"
)

// main is the application composition root. It wires concrete adapters
// (OSRM, Postgres, Redis, isolation launchers) behind ports and runs the
// selected subcommand.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
