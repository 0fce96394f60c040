// Package main is the scopenote CLI.
//
// Usage:
//
//	scopenote <command> [flags]
//
// Commands:
//
//	run           - Run the interactive documentation assistant
//	classify      - Classify endoscopy images in one shot
//	note          - Generate the operative note for a closed session
//	convert-audio - Re-encode dictation audio to canonical PCM WAV
//	mapping       - Inspect the anatomical diagram mapping
//
// Configuration comes from SCOPENOTE_* environment variables; flags
// override them per invocation.
package main

import (
	"fmt"
	"os"

	"github.com/scopenote/scopenote/cmd/scopenote/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
