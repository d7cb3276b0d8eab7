// Package main is the entry point for the bcidctl admin tool.
package main

import (
	"os"

	"github.com/biscicol/bcid/cmd/bcidctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
