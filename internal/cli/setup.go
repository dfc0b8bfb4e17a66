package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fmueller/voxserve/internal/download"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		Long:  "Download and verify speech model assets.\n\nFetch the configured model into the model directory ahead of time, so that serve can start without network access.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runSetup(cmd.Context(), cmd.OutOrStdout())
		},
	}

	bindConfigFlag(cmd, app)
	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)

	return cmd
}

// runSetup installs the named model, re-downloading a present copy whose
// checksum no longer matches.
func (a *appState) runSetup(ctx context.Context, out io.Writer) error {
	model, err := a.resolveModel()
	if err != nil {
		return err
	}
	if model.IsCustomPath {
		return fmt.Errorf("setup expects a named model; got custom path %s", model.Path)
	}

	expected, err := checksumFor(ctx, model)
	if err != nil {
		return err
	}

	if !model.NeedsDownload && expected != "" {
		stop := startSpinner(a.progressEnabled(), "Verifying "+model.Name)
		err := download.VerifyFileChecksum(model.Path, expected)
		stop()
		if err != nil {
			a.log().Warn("installed model failed verification; fetching it again", zap.String("model", model.Name), zap.Error(err))
			model.NeedsDownload = true
		}
	}

	if !model.NeedsDownload {
		a.log().Info("model already present", zap.String("model", model.Name), zap.String("path", model.Path))
		fmt.Fprintf(out, "Model %s already present at %s\n", model.Name, model.Path)
		return nil
	}

	if err := a.installModel(ctx, model, expected); err != nil {
		return err
	}
	fmt.Fprintf(out, "Model %s installed at %s\n", model.Name, model.Path)
	return nil
}
