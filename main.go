// Package main is the entry point for icom, the SIP header-fold merging filter.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/icom/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
