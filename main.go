// Package main is the entry point for the dofuswire protocol decoder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/dofuswire/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
