package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dubex/concourse-test/internal/fetch"
	"github.com/dubex/concourse-test/internal/fileutil"
	"github.com/dubex/concourse-test/internal/netutil"
	"github.com/dubex/concourse-test/internal/prefs"
	"github.com/dubex/concourse-test/internal/run"
	"github.com/dubex/concourse-test/internal/sentinel"
)

// ErrInstallFailed is returned when installer execution completes but the
// expected application directory is missing or empty afterwards.
const ErrInstallFailed = sentinel.Error("server installation failed")

// Fixed names inside an installation workspace.
const (
	// TargetBinaryName is the filename the installer payload is copied to
	// inside the workspace before execution.
	TargetBinaryName = "concourse-server.bin"

	// AppDirName is the directory the installer creates under the
	// workspace; it becomes the installation root.
	AppDirName = "concourse-server"

	// Relative paths under the installation root.
	ConfDirName  = "conf"
	BinDirName   = "bin"
	PrefsName    = "concourse.prefs"
	LogLevelName = "DEBUG"
)

// DefaultGracePeriod is how long the installer subprocess may run before it
// is killed. The installer lays down all files needed for unattended
// operation well within this window; the remaining wait is only an optional
// interactive prompt that is never satisfied.
const DefaultGracePeriod = time.Second

// InstallConfig carries the parameters for one installation.
type InstallConfig struct {
	// SourceBinary is the path to the installer payload.
	SourceBinary string
	// Workspace is the per-instance directory the installer runs in.
	// The installation root becomes <Workspace>/concourse-server.
	Workspace string
	// GracePeriod bounds installer execution; see DefaultGracePeriod.
	GracePeriod time.Duration
	// Ports allocates the instance's client and shutdown ports.
	Ports *netutil.Registry
	// Logger receives installation progress. Required.
	Logger *slog.Logger
}

// Validate reports the first missing required field.
func (c InstallConfig) Validate() error {
	if c.SourceBinary == "" {
		return fmt.Errorf("install config: source binary must not be empty")
	}
	if c.Workspace == "" {
		return fmt.Errorf("install config: workspace must not be empty")
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("install config: grace period must be positive, got %v", c.GracePeriod)
	}
	if c.Ports == nil {
		return fmt.Errorf("install config: port registry must not be nil")
	}
	if c.Logger == nil {
		return fmt.Errorf("install config: logger must not be nil")
	}
	return nil
}

// Installation describes one installed server instance. All of its
// filesystem state lives under Workspace; destroying the instance removes
// the whole workspace.
type Installation struct {
	// Workspace is the per-instance directory holding the installer copy
	// and the installation root.
	Workspace string
	// Root is the application directory, <Workspace>/concourse-server.
	Root string
	// SourceBinary is the installer the instance was created from.
	SourceBinary string
	// ClientPort and ShutdownPort are the freshly allocated, distinct
	// ports written into the instance's preferences.
	ClientPort   int
	ShutdownPort int
}

// PrefsPath returns the location of the instance's preference file.
func (i *Installation) PrefsPath() string {
	return filepath.Join(i.Root, ConfDirName, PrefsName)
}

// BinDir returns the directory holding the instance's control scripts.
func (i *Installation) BinDir() string {
	return filepath.Join(i.Root, BinDirName)
}

// DefaultWorkspace returns a fresh per-instance workspace path under the
// caller's install home: <home>/<unix-nanos>-<short-id>. The timestamp keeps
// sequentially created instances apart; the id suffix guards the rare case
// of two instances created in the same nanosecond reading.
func DefaultWorkspace(home string) string {
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
	return filepath.Join(home, name)
}

// Install unpacks and configures a server instance in cfg.Workspace.
//
// The installer payload is copied into the workspace, executed with the
// workspace as its working directory (stderr merged into stdout), and
// killed after the grace period to skip its interactive prompt. Success is
// verified by listing the application directory. On success the installed
// preferences are rewritten: data directories relocated under the root,
// distinct client and shutdown ports assigned, and log verbosity raised.
//
// Failures are not retried and partially written directories are left in
// place for post-mortem inspection.
func Install(ctx context.Context, cfg InstallConfig) (*Installation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger

	if err := fileutil.EnsureDir(cfg.Workspace); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	binary := filepath.Join(cfg.Workspace, TargetBinaryName)
	if err := fileutil.CopyFile(cfg.SourceBinary, binary, 0o755); err != nil {
		return nil, fmt.Errorf("place installer payload: %w", err)
	}

	log.Debug("running installer", "binary", binary, "grace", cfg.GracePeriod)
	lines, err := run.StartWithGrace(ctx, cfg.Workspace, cfg.GracePeriod, "sh", TargetBinaryName)
	for _, line := range lines {
		log.Debug("installer output", "line", line)
	}
	if err != nil {
		return nil, fmt.Errorf("execute installer: %w", err)
	}

	root := filepath.Join(cfg.Workspace, AppDirName)
	populated, err := fileutil.DirHasEntries(root)
	if err != nil {
		return nil, fmt.Errorf("verify installation: %w", err)
	}
	if !populated {
		return nil, fmt.Errorf("%w: no application files in %s after running %s",
			ErrInstallFailed, cfg.Workspace, cfg.SourceBinary)
	}

	inst := &Installation{
		Workspace:    cfg.Workspace,
		Root:         root,
		SourceBinary: cfg.SourceBinary,
	}
	if err := configure(inst, cfg.Ports, log); err != nil {
		return nil, err
	}

	log.Info("server installed", "root", root,
		"client_port", inst.ClientPort, "shutdown_port", inst.ShutdownPort)
	return inst, nil
}

// configure rewrites the installed preferences so the instance cannot
// collide with any other concurrently running instance: data directories
// under its own root and two distinct freshly allocated ports. Log
// verbosity is raised for debuggability of failing tests.
func configure(inst *Installation, ports *netutil.Registry, log *slog.Logger) error {
	p, err := prefs.Load(inst.PrefsPath())
	if err != nil {
		return fmt.Errorf("configure installation: %w", err)
	}

	clientPort, shutdownPort, err := ports.OpenPair()
	if err != nil {
		return fmt.Errorf("configure installation: %w", err)
	}

	data := filepath.Join(inst.Root, "data")
	p.SetBufferDirectory(filepath.Join(data, "buffer"))
	p.SetDatabaseDirectory(filepath.Join(data, "database"))
	p.SetClientPort(clientPort)
	p.SetShutdownPort(shutdownPort)
	p.SetLogLevel(LogLevelName)

	if err := p.Store(); err != nil {
		ports.Release(clientPort)
		ports.Release(shutdownPort)
		return fmt.Errorf("configure installation: %w", err)
	}

	inst.ClientPort = clientPort
	inst.ShutdownPort = shutdownPort
	log.Debug("installation configured",
		"prefs", p.Path(), "buffer", p.BufferDirectory(), "database", p.DatabaseDirectory())
	return nil
}

// Attach rebuilds an Installation descriptor from an existing workspace,
// reading the assigned ports back out of the preference file. It performs
// no port allocation; the ports already belong to the installation.
func Attach(workspace string) (*Installation, error) {
	root := filepath.Join(workspace, AppDirName)
	populated, err := fileutil.DirHasEntries(root)
	if err != nil {
		return nil, fmt.Errorf("attach to workspace: %w", err)
	}
	if !populated {
		return nil, fmt.Errorf("%w: %s does not contain an installed server", ErrInstallFailed, workspace)
	}

	inst := &Installation{
		Workspace: workspace,
		Root:      root,
	}
	p, err := prefs.Load(inst.PrefsPath())
	if err != nil {
		return nil, fmt.Errorf("attach to workspace: %w", err)
	}
	inst.ClientPort = p.ClientPort()
	inst.ShutdownPort = p.ShutdownPort()
	return inst, nil
}

// ResolveSource turns a version-or-path source into an installer path. A
// source naming an existing file is used directly; anything else is treated
// as a version and fetched through the downloader.
func ResolveSource(ctx context.Context, source string, dl *fetch.Downloader) (string, error) {
	if _, err := os.Stat(source); err == nil {
		return source, nil
	}
	path, err := dl.Download(ctx, source)
	if err != nil {
		return "", fmt.Errorf("obtain installer for %q: %w", source, err)
	}
	return path, nil
}
