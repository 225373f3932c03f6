package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"barscan/internal/faults"
)

// Exit codes let scripts tell operator errors from runtime failures.
const (
	exitFailure           = 1
	exitConfiguration     = 2
	exitSourceUnavailable = 3
	exitUnknownField      = 4
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if hint := faults.Hint(err); hint != "" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
			}
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch faults.KindOf(err) {
	case faults.KindNone:
		return 0
	case faults.KindConfiguration:
		return exitConfiguration
	case faults.KindSourceUnavailable:
		return exitSourceUnavailable
	case faults.KindUnknownField:
		return exitUnknownField
	default:
		return exitFailure
	}
}
