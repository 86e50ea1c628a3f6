// Package main provides the avatarloop binary.
//
// Usage:
//
//	avatarloop [flags] <command>
//
// Commands:
//
//	run     - serve renderer clients and drive the animation loop
//	tier    - print the detected performance tier bundle
//	config  - write a default configuration file
package main

import (
	"fmt"
	"os"

	"github.com/normanking/avatarloop/cmd/avatarloop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
