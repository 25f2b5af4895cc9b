package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/akulkarni/0perator-eval/internal/config"
	"github.com/akulkarni/0perator-eval/internal/workspace"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Session ran and the results bundle was written
	ExitRunFailed   = 1 // Engine session failed mid-run
	ExitConfigError = 2 // Configuration error, nothing was started
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error types to process exit codes. Configuration and
// workspace-creation failures happen before a session starts and get their
// own code; everything else is a run failure.
func exitCode(err error) int {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}

	var wsErr *workspace.CreationError
	if errors.As(err, &wsErr) {
		return ExitConfigError
	}

	return ExitRunFailed
}
