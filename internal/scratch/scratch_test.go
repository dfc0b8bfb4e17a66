package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(filepath.Join(t.TempDir(), "scratch"), nil)
	require.NoError(t, err)
	return m
}

func TestAcquireCreatesUniqueWorkspaces(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	a, err := m.Acquire("speech.mp3")
	require.NoError(t, err)
	b, err := m.Acquire("speech.mp3")
	require.NoError(t, err)

	require.NotEqual(t, a.Dir, b.Dir)
	require.DirExists(t, a.Dir)
	require.DirExists(t, b.Dir)
	require.Equal(t, filepath.Join(a.Dir, "input.mp3"), a.InputPath)
	require.Equal(t, filepath.Join(a.Dir, "converted.wav"), a.OutputPath)
	require.True(t, strings.HasPrefix(a.Dir, m.Root()))
}

func TestAcquireIgnoresUntrustedFilename(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	ws, err := m.Acquire("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ws.Dir, "input.bin"), ws.InputPath)
}

func TestReleaseRemovesDirectoryOnce(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ws, err := m.Acquire("clip.wav")
	require.NoError(t, err)
	require.NoError(t, ws.WriteInput([]byte("audio")))
	require.NoError(t, os.WriteFile(ws.OutputPath, []byte("converted"), 0o600))

	require.False(t, ws.Released())
	require.NoError(t, ws.Release())
	require.True(t, ws.Released())
	require.NoDirExists(t, ws.Dir)

	require.NoError(t, ws.Release())
}

func TestReleaseConcurrentCallers(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ws, err := m.Acquire("clip.wav")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, ws.Release())
		}()
	}
	wg.Wait()

	require.True(t, ws.Released())
	require.NoDirExists(t, ws.Dir)
}

func TestPurgeRemovesOnlyTaskDirectories(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ws, err := m.Acquire("clip.wav")
	require.NoError(t, err)

	keep := filepath.Join(m.Root(), "keep-me")
	require.NoError(t, os.Mkdir(keep, 0o700))

	removed, err := m.Purge()
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.NoDirExists(t, ws.Dir)
	require.DirExists(t, keep)
}

func TestNewManagerRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := NewManager("  ", nil)
	require.Error(t, err)
}

func TestExtensionHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "clip.WAV", want: ".wav"},
		{in: "voice.m4a", want: ".m4a"},
		{in: "noext", want: ".bin"},
		{in: "", want: ".bin"},
		{in: "weird.w$v", want: ".bin"},
		{in: "trailing.", want: ".bin"},
		{in: "long.extensionname", want: ".bin"},
		{in: "dir/name.ogg", want: ".ogg"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, ExtensionHint(tt.in), "input %q", tt.in)
	}
}
