package config

import (
	"fmt"
	"os"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	ExitCodef(1, format, args...)
}

// ExitCodef writes a formatted error message to stderr and exits with code.
// Codes below 1 are coerced to 1 so a failure never reports success.
func ExitCodef(code int, format string, args ...any) {
	if code < 1 {
		code = 1
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
