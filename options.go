package concoursetest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dubex/concourse-test/client"
	"github.com/dubex/concourse-test/internal/fetch"
)

// config carries the resolved settings for one Server.
type config struct {
	workspace   string
	installHome string
	gracePeriod time.Duration
	version     string
	username    string
	password    string
	dialer      client.DialFunc
	resolver    fetch.Resolver
}

// cacheDir returns where downloaded installers are kept.
func (c config) cacheDir() string {
	return filepath.Join(c.installHome, cacheDirName)
}

func defaultConfig() config {
	return config{
		installHome: DefaultInstallHome(),
		gracePeriod: DefaultGracePeriod,
		username:    DefaultUsername,
		password:    DefaultPassword,
		resolver:    fetch.DefaultResolver,
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("concoursetest: %s must not be empty", name))
	}
}

// Option configures a Server during Install or Attach.
//
// Several With* functions panic on invalid input (empty paths, non-positive
// durations). These panics are intentional: option values are typically
// compile-time constants, so an invalid value indicates a programmer error
// rather than a runtime condition. The pattern mirrors [regexp.MustCompile]:
// fail fast during initialization instead of returning errors that would be
// universally fatal anyway.
type Option func(*config)

// WithWorkspace pins the server to a specific workspace directory instead of
// a generated one under the install home. The directory is created if
// needed and removed wholesale by Destroy.
// Panics if dir is empty.
func WithWorkspace(dir string) Option {
	requireNonEmpty("workspace", dir)
	return func(c *config) {
		c.workspace = dir
	}
}

// WithInstallHome sets the directory generated workspaces and the installer
// cache are created under.
//
// Default: DefaultInstallHome().
//
// Panics if dir is empty.
func WithInstallHome(dir string) Option {
	requireNonEmpty("install home", dir)
	return func(c *config) {
		c.installHome = dir
	}
}

// WithGracePeriod sets how long the installer may run before being killed.
// Raise this on slow filesystems where the installer needs more than the
// default second to lay down its files.
//
// Default: DefaultGracePeriod.
//
// Panics if d <= 0.
func WithGracePeriod(d time.Duration) Option {
	if d <= 0 {
		panic(fmt.Sprintf("concoursetest: grace period must be greater than 0, got %v", d))
	}
	return func(c *config) {
		c.gracePeriod = d
	}
}

// WithVersion overrides the version label used to pick a client driver,
// for local installer binaries whose build version the caller knows.
// Panics if version is empty.
func WithVersion(version string) Option {
	requireNonEmpty("version", version)
	return func(c *config) {
		c.version = version
	}
}

// WithCredentials sets the credentials Connect authenticates with.
//
// Default: DefaultUsername / DefaultPassword.
//
// Panics if username is empty.
func WithCredentials(username, password string) Option {
	requireNonEmpty("username", username)
	return func(c *config) {
		c.username = username
		c.password = password
	}
}

// WithDialer sets the transport dialer Connect hands to client.Dial. Connect
// fails with client.ErrNoTransport when no dialer is configured.
func WithDialer(dial client.DialFunc) Option {
	return func(c *config) {
		c.dialer = dial
	}
}

// VersionResolver maps a server version to the URL its installer is
// downloaded from.
type VersionResolver func(version string) (string, error)

// WithResolver sets the function that maps a version to its installer
// download URL, for mirrors or internal artifact stores.
//
// Default: the official release URL layout.
//
// Panics if r is nil.
func WithResolver(r VersionResolver) Option {
	if r == nil {
		panic("concoursetest: resolver must not be nil")
	}
	return func(c *config) {
		c.resolver = fetch.Resolver(r)
	}
}
