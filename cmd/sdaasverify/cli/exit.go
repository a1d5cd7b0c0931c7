package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

const (
	ExitRejected = 1
	ExitUsage    = 2
)

// ExitError carries the process exit code for a failed command. Err may be
// nil when the command already reported the failure on stdout.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func (e *ExitError) ExitCode() int { return e.Code }

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

func usageErrorf(msg string) error {
	return usageError(errors.New(msg))
}

// usageArgs turns argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
