package concoursetest

import (
	"os"
	"path/filepath"

	"github.com/dubex/concourse-test/internal/core"
)

// Default configuration values for Install. These are exported so callers
// can reference the defaults when building custom configurations relative
// to them.
const (
	// DefaultUsername and DefaultPassword are the credentials a fresh
	// installation accepts.
	DefaultUsername = "admin"
	DefaultPassword = "admin"

	// DefaultInstallDirName is the directory name under the user's home
	// directory where workspaces and the installer cache live.
	DefaultInstallDirName = ".concourse-testing"

	// DefaultGracePeriod is how long the installer subprocess may run
	// before it is killed. The installer finishes writing files well
	// within this window; the remainder is an interactive prompt that is
	// never answered.
	DefaultGracePeriod = core.DefaultGracePeriod
)

// cacheDirName is the subdirectory of the install home where downloaded
// installer binaries are kept across runs.
const cacheDirName = "cache"

// DefaultInstallHome returns the directory workspaces and cached installers
// are created under: <user-home>/.concourse-testing, falling back to the
// system temp directory when the home directory cannot be determined.
func DefaultInstallHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, DefaultInstallDirName)
}
