package cli

import (
	"fmt"

	"github.com/fmueller/voxserve/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  usageArgs(cobra.NoArgs),
		// Skips config loading so a broken config cannot hide the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", version.Name, version.Resolve())
			return nil
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Include commit, build date and Go version")
	return cmd
}
