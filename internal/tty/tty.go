// Package tty provides terminal detection helpers for nodebuild commands.
package tty

import (
	"os"

	"golang.org/x/term"
)

// IsTTY returns true if the given file is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive returns true if both stdin and stderr are terminals.
func IsInteractive() bool {
	return IsTTY(os.Stdin) && IsTTY(os.Stderr)
}
