package concoursetest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dubex/concourse-test/client"
	"github.com/dubex/concourse-test/internal/core"
	"github.com/dubex/concourse-test/internal/fetch"
	"github.com/dubex/concourse-test/internal/netutil"
	"github.com/dubex/concourse-test/internal/run"
)

// runningToken is the literal the status command prints on its first line
// while the server process is up. The check is a substring match on that
// line only; it must not match the "is not running" message.
const runningToken = "is running"

// ports hands out client and shutdown ports to every server created in this
// process, so concurrently installed instances can never collide.
var ports = netutil.NewRegistry(nil)

// Server is one installed server instance. All of its filesystem state
// lives in its workspace; Destroy removes the workspace and ends the
// instance's life. A Server is safe for concurrent use.
//
// Whether the instance is running is never tracked in memory: the server's
// own status command is the source of truth, so the handle stays correct
// when the process dies or is controlled from outside.
type Server struct {
	cfg     config
	inst    *core.Installation
	version string
	log     *slog.Logger

	mu        sync.Mutex
	destroyed bool
	clients   []client.Client
}

// Install creates a new server instance from source, which is either a path
// to a local installer binary or a released version (downloaded and cached
// under the install home on first use). The instance is installed but not
// started.
func Install(ctx context.Context, source string, opts ...Option) (*Server, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := core.Logger()

	dl := fetch.NewDownloader(cfg.cacheDir(), cfg.resolver, log)
	binary, err := core.ResolveSource(ctx, source, dl)
	if err != nil {
		return nil, err
	}

	workspace := cfg.workspace
	if workspace == "" {
		workspace = core.DefaultWorkspace(cfg.installHome)
	}

	inst, err := core.Install(ctx, core.InstallConfig{
		SourceBinary: binary,
		Workspace:    workspace,
		GracePeriod:  cfg.gracePeriod,
		Ports:        ports,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	version := cfg.version
	if version == "" {
		version = versionLabel(source)
	}
	return &Server{
		cfg:     cfg,
		inst:    inst,
		version: version,
		log:     log.With("workspace", workspace),
	}, nil
}

// Attach wraps an existing installed workspace in a Server, reading the
// instance's ports back out of its preference file. Used by tooling that
// controls a long-lived instance across process invocations.
func Attach(workspace string, opts ...Option) (*Server, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	inst, err := core.Attach(workspace)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		inst:    inst,
		version: cfg.version,
		log:     core.Logger().With("workspace", workspace),
	}, nil
}

// versionLabel distinguishes an installed version from a local build: a
// source naming an existing file has no known version.
func versionLabel(source string) string {
	if _, err := os.Stat(source); err == nil {
		return ""
	}
	return source
}

// Workspace returns the instance's workspace directory.
func (s *Server) Workspace() string {
	return s.inst.Workspace
}

// Version returns the server version the instance was installed from, or ""
// for a local installer binary of unknown version.
func (s *Server) Version() string {
	return s.version
}

// ClientPort returns the port the server accepts client connections on.
func (s *Server) ClientPort() int {
	return s.inst.ClientPort
}

// ShutdownPort returns the port the server listens on for shutdown requests.
func (s *Server) ShutdownPort() int {
	return s.inst.ShutdownPort
}

// Address returns the client connection address, host:port.
func (s *Server) Address() string {
	return fmt.Sprintf("localhost:%d", s.inst.ClientPort)
}

// Start launches the server process through its control script and returns
// once the script completes. Starting a running server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}

	running, err := s.isRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	lines, err := run.Output(ctx, s.inst.BinDir(), "sh", "start")
	for _, line := range lines {
		s.log.Info("server output", "line", line)
	}
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.log.Info("server started", "address", s.Address())
	return nil
}

// Stop shuts the server process down through its control script. Stopping a
// server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	return s.stop(ctx)
}

// stop implements Stop; the caller holds s.mu.
func (s *Server) stop(ctx context.Context) error {
	running, err := s.isRunning(ctx)
	if err != nil {
		return err
	}
	if !running {
		return nil
	}

	lines, err := run.Output(ctx, s.inst.BinDir(), "sh", "stop")
	for _, line := range lines {
		s.log.Info("server output", "line", line)
	}
	if err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// IsRunning reports whether the server process is up, as judged by the
// server's own status command rather than in-process bookkeeping, so it
// also notices processes that died or were started outside this handle.
func (s *Server) IsRunning(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false, ErrDestroyed
	}
	return s.isRunning(ctx)
}

// isRunning implements IsRunning; the caller holds s.mu.
func (s *Server) isRunning(ctx context.Context) (bool, error) {
	lines, err := run.Output(ctx, s.inst.BinDir(), "sh", "concourse", "status")
	if err != nil {
		return false, fmt.Errorf("query server status: %w", err)
	}
	return len(lines) > 0 && strings.Contains(lines[0], runningToken), nil
}

// Connect returns a client for the server, authenticated with the
// configured credentials. Clients obtained here are closed by Destroy.
func (s *Server) Connect(ctx context.Context) (client.Client, error) {
	return s.ConnectAs(ctx, s.cfg.username, s.cfg.password)
}

// ConnectAs is Connect with explicit credentials.
func (s *Server) ConnectAs(ctx context.Context, username, password string) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}

	c, err := client.Dial(ctx, s.version, s.Address(), username, password, s.cfg.dialer)
	if err != nil {
		return nil, fmt.Errorf("connect to server at %s: %w", s.Address(), err)
	}
	s.clients = append(s.clients, c)
	return c, nil
}

// Destroy stops the server if it is running, closes every client obtained
// from it, deletes its workspace, and releases its ports. Destroy is
// idempotent and tolerates a workspace that was already removed externally;
// after it returns the instance is gone for good and every other operation
// reports ErrDestroyed.
func (s *Server) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}

	for _, c := range s.clients {
		_ = c.Close()
	}
	s.clients = nil

	if _, err := os.Stat(s.inst.Workspace); err == nil {
		if err := s.stop(ctx); err != nil {
			s.log.Warn("stop before destroy failed", "error", err)
		}
		if err := os.RemoveAll(s.inst.Workspace); err != nil {
			return fmt.Errorf("remove workspace: %w", err)
		}
	}

	ports.Release(s.inst.ClientPort)
	ports.Release(s.inst.ShutdownPort)
	s.destroyed = true
	s.log.Info("server destroyed")
	return nil
}
