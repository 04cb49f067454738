// Package main provides the entry point for the docfuse CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/docfuse/cmd/docfuse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
