// Package main is the entry point for the wiretap recording daemon and
// its control clients.
package main

import (
	"fmt"
	"os"

	"github.com/wiretap/wiretap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
