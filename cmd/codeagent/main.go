// Package main is the entry point for the codeagent CLI.
package main

import (
	"os"

	"github.com/Creeper5261/Rikki-sub002/cmd/codeagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
