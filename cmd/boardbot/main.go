// Package main is the entry point for the boardbot CLI.
package main

import (
	"os"

	"github.com/KafClaw/boardbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
