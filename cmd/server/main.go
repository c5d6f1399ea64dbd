// Package main implements the entry point for the promptdeck API server. It
// wires configuration, storage, AI providers, the job queue and worker pools,
// and serves the processing HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
