package normalize

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNumbersNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "one hundred", want: "100"},
		{in: "we sold twenty three boxes", want: "we sold 23 boxes"},
		{in: "twenty-three", want: "23"},
		{in: "two thousand five hundred people", want: "2500 people"},
		{in: "one hundred and five", want: "105"},
		{in: "one million two hundred thousand", want: "1200000"},
		{in: "nineteen hundred", want: "1900"},
		{in: "call four two now", want: "call 42 now"},
		{in: "it costs ten.", want: "it costs 10."},
		{in: "twenty, thirty", want: "20, 30"},
		{in: "I have one dog", want: "I have one dog"},
		{in: "rock and roll", want: "rock and roll"},
		{in: "one and two", want: "one and two"},
		{in: "hundred", want: "hundred"},
		{in: "Twenty Five", want: "25"},
		{in: "", want: ""},
		{in: "first line.\n\nsecond line", want: "first line.\n\nsecond line"},
		{in: "  padded\ttext  ", want: "  padded\ttext  "},
		{in: "line\ntwenty  three\tapples", want: "line\n23\tapples"},
		{in: "ten.\n\nfive", want: "10.\n\nfive"},
	}

	for _, tt := range tests {
		got, err := Numbers{}.Normalize(context.Background(), tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestNewSelectsMode(t *testing.T) {
	t.Parallel()

	n, err := New("", "")
	require.NoError(t, err)
	require.IsType(t, Numbers{}, n)

	n, err = New("none", "")
	require.NoError(t, err)
	require.Nil(t, n)

	n, err = New("command", "cat -u")
	require.NoError(t, err)
	cmd, ok := n.(*Command)
	require.True(t, ok)
	require.Equal(t, "cat", cmd.Name)
	require.Equal(t, []string{"-u"}, cmd.Args)

	_, err = New("command", "  ")
	require.Error(t, err)

	_, err = New("bogus", "")
	require.Error(t, err)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "itn")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCommandNormalize(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand(writeScript(t, "tr 'a-z' 'A-Z'\n"))
	require.NoError(t, err)

	got, err := cmd.Normalize(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, "HELLO WORLD", got)
}

func TestCommandNormalizeFailure(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand(writeScript(t, "echo 'grammar missing' >&2\nexit 2\n"))
	require.NoError(t, err)

	_, err = cmd.Normalize(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "grammar missing")
}

func TestCommandNormalizeEmptyOutput(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand(writeScript(t, "cat > /dev/null\n"))
	require.NoError(t, err)

	_, err = cmd.Normalize(context.Background(), "hello")
	require.Error(t, err)
}

func TestCommandNormalizeTimeout(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand(writeScript(t, "exec sleep 5\n"))
	require.NoError(t, err)
	cmd.Timeout = 50 * time.Millisecond

	_, err = cmd.Normalize(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}
