package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"serve", "setup", "version"})

	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("listen"))
	require.NotNil(t, cmd.Flags().Lookup("verbose"))
	require.NotNil(t, cmd.Flags().Lookup("json"))

	setup, _, err := cmd.Find([]string{"setup"})
	require.NoError(t, err)
	require.NotNil(t, setup.Flags().Lookup("model"))
	require.NotNil(t, setup.Flags().Lookup("model-dir"))
	require.NotNil(t, setup.Flags().Lookup("no-progress"))
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "serve")
	require.Contains(t, out.String(), "setup")
	require.Contains(t, out.String(), "version")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "serve", args: []string{"serve", "--help"}, contains: "Run the transcription HTTP server"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify speech model assets"},
		{name: "setup details", args: []string{"setup", "--help"}, contains: "serve can start without network access"},
		{name: "version", args: []string{"version", "--help"}, contains: "Print the version number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := runCommand(t, tt.args)
			require.NoError(t, err)
			require.Contains(t, stdout, tt.contains)
		})
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:7000\nqueue_capacity: 2\nlanguage: ' DE '\n"), 0o600))

	app := &appState{lookupEnv: func(key string) (string, bool) {
		switch key {
		case "VOXSERVE_QUEUE_CAPACITY":
			return "5", true
		case "VOXSERVE_LISTEN":
			return "127.0.0.1:7001", true
		}
		return "", false
	}}

	cmd := &cobra.Command{}
	bindConfigFlag(cmd, app)
	bindListenFlag(cmd, app)
	bindLoggingFlags(cmd, app)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--listen", "127.0.0.1:7002"}))

	require.NoError(t, app.loadConfig(cmd))
	require.Equal(t, "127.0.0.1:7002", app.cfg.Listen)
	require.Equal(t, 5, app.cfg.QueueCapacity)
	require.Equal(t, "de", app.cfg.Language)
}

func TestSanitizeLanguage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "auto", sanitizeLanguage("  "))
	require.Equal(t, "en", sanitizeLanguage(" EN "))
}
