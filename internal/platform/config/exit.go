package config

import (
	"fmt"
	"io"
	"os"
)

// Process hooks, replaced in tests.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Exitf reports a startup failure on stderr and exits with code 1. Binaries
// use it before the log prefix is configured.
func Exitf(format string, args ...any) {
	ExitCodef(1, format, args...)
}

// ExitCodef is Exitf with an explicit exit code. Codes below 1 become 1.
func ExitCodef(code int, format string, args ...any) {
	if code < 1 {
		code = 1
	}
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(code)
}
