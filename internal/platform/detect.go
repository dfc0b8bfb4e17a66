// Package platform resolves where voxserve keeps models and scratch files.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "voxserve"

// Dirs is the on-disk layout under the data directory.
type Dirs struct {
	Data    string
	Models  string
	Scratch string
}

func DirsFor(goos, homeDir, xdgDataHome string) (Dirs, error) {
	data, err := dataDirFor(goos, homeDir, xdgDataHome)
	if err != nil {
		return Dirs{}, err
	}
	return Dirs{
		Data:    data,
		Models:  filepath.Join(data, "models"),
		Scratch: filepath.Join(data, "scratch"),
	}, nil
}

func DefaultDirs() (Dirs, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve user home: %w", err)
	}
	return DirsFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"))
}

// ResolveModelDir returns override when set, else the default layout's
// model directory.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	dirs, err := DefaultDirs()
	if err != nil {
		return "", err
	}
	return dirs.Models, nil
}

func ResolveScratchDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	dirs, err := DefaultDirs()
	if err != nil {
		return "", err
	}
	return dirs.Scratch, nil
}

func dataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux", "freebsd":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appDirName), nil
		}
		return filepath.Join(homeDir, ".local", "share", appDirName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appDirName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
