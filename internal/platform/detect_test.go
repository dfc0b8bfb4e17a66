package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirsForLinuxWithXDG(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("linux", "/home/dev", "/tmp/xdg-data")
	require.NoError(t, err)
	require.Equal(t, Dirs{
		Data:    "/tmp/xdg-data/voxserve",
		Models:  "/tmp/xdg-data/voxserve/models",
		Scratch: "/tmp/xdg-data/voxserve/scratch",
	}, dirs)
}

func TestDirsForLinuxWithoutXDG(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("linux", "/home/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.local/share/voxserve/models", dirs.Models)
	require.Equal(t, "/home/dev/.local/share/voxserve/scratch", dirs.Scratch)
}

func TestDirsForMacOS(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("darwin", "/Users/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/Users/dev/Library/Application Support/voxserve/models", dirs.Models)
}

func TestDirsForUnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := DirsFor("windows", "/Users/dev", "")
	require.Error(t, err)

	_, err = DirsFor("linux", "", "")
	require.Error(t, err)
}

func TestResolveOverrides(t *testing.T) {
	t.Parallel()

	dir, err := ResolveModelDir("/srv/models/")
	require.NoError(t, err)
	require.Equal(t, "/srv/models", dir)

	dir, err = ResolveScratchDir("/var/tmp/voxserve/../scratch")
	require.NoError(t, err)
	require.Equal(t, "/var/tmp/scratch", dir)
}
