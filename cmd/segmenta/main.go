// Package main provides the entry point for the segmenta server and CLI.
package main

import (
	"os"

	"github.com/segmenta-io/segmenta/cmd/segmenta/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
