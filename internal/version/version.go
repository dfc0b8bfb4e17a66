// Package version reports the build version, set through -ldflags at
// release time and derived from git during development.
package version

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const Name = "voxserve"

var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

func Current() Info {
	return Info{Version: Resolve(), Commit: Commit, Date: Date, GoVersion: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("%s v%s (commit %s, built %s, %s)", Name, i.Version, i.Commit, i.Date, i.GoVersion)
}

// Release is the identifier error reports are grouped by.
func Release() string {
	return Name + "@" + Resolve()
}

// Resolve returns the full version string. Builds run from a git checkout
// whose HEAD is not on a release tag get the describe output appended.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// gitRunner runs git with the given arguments and returns trimmed stdout.
type gitRunner func(args ...string) (string, error)

func resolveVersion(base string, git gitRunner) string {
	if base == "" {
		base = "0.0.0"
	}
	if suffix := describeSuffix(base, git); suffix != "" {
		return base + "-" + suffix
	}
	return base
}

func describeSuffix(base string, git gitRunner) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
