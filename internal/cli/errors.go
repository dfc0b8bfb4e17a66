package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// UsageError marks a failure caused by how the command line was written
// rather than by anything the command did.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// IsUsageError reports whether err came from argument or flag parsing.
// Cobra resolves unknown subcommands before any hook runs, so those are
// recognized by message.
func IsUsageError(err error) bool {
	if err == nil {
		return false
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return true
	}
	return strings.HasPrefix(err.Error(), "unknown command ")
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

func flagUsageError(_ *cobra.Command, err error) error {
	return &UsageError{Err: err}
}
