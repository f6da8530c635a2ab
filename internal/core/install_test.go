package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dubex/concourse-test/internal/netutil"
	"github.com/dubex/concourse-test/internal/prefs"
	"github.com/dubex/concourse-test/internal/testutil"
)

func testConfig(t *testing.T, source string) InstallConfig {
	t.Helper()
	return InstallConfig{
		SourceBinary: source,
		Workspace:    filepath.Join(t.TempDir(), "ws"),
		GracePeriod:  300 * time.Millisecond,
		Ports:        netutil.NewRegistry(nil),
		Logger:       slog.Default(),
	}
}

func TestInstallConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := InstallConfig{
		SourceBinary: "installer.bin",
		Workspace:    "/tmp/ws",
		GracePeriod:  time.Second,
		Ports:        netutil.NewRegistry(nil),
		Logger:       slog.Default(),
	}

	tests := map[string]struct {
		mutate  func(c *InstallConfig)
		wantErr bool
	}{
		"valid":              {mutate: func(*InstallConfig) {}},
		"empty source":       {mutate: func(c *InstallConfig) { c.SourceBinary = "" }, wantErr: true},
		"empty workspace":    {mutate: func(c *InstallConfig) { c.Workspace = "" }, wantErr: true},
		"zero grace period":  {mutate: func(c *InstallConfig) { c.GracePeriod = 0 }, wantErr: true},
		"nil port registry":  {mutate: func(c *InstallConfig) { c.Ports = nil }, wantErr: true},
		"nil logger":         {mutate: func(c *InstallConfig) { c.Logger = nil }, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestInstall(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, testutil.WriteInstaller(t))
	inst, err := Install(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if inst.Root != filepath.Join(cfg.Workspace, AppDirName) {
		t.Errorf("Root = %q", inst.Root)
	}
	if inst.ClientPort == inst.ShutdownPort {
		t.Errorf("client and shutdown port must differ, both %d", inst.ClientPort)
	}
	for _, port := range []int{inst.ClientPort, inst.ShutdownPort} {
		if port < netutil.PortMin || port >= netutil.PortMax {
			t.Errorf("port %d outside [%d, %d)", port, netutil.PortMin, netutil.PortMax)
		}
	}

	p, err := prefs.Load(inst.PrefsPath())
	if err != nil {
		t.Fatalf("load rewritten prefs: %v", err)
	}
	if got := p.ClientPort(); got != inst.ClientPort {
		t.Errorf("prefs client port = %d, want %d", got, inst.ClientPort)
	}
	if got := p.ShutdownPort(); got != inst.ShutdownPort {
		t.Errorf("prefs shutdown port = %d, want %d", got, inst.ShutdownPort)
	}
	if got := p.LogLevel(); got != LogLevelName {
		t.Errorf("prefs log level = %q, want %q", got, LogLevelName)
	}
	if got := p.BufferDirectory(); !strings.HasPrefix(got, inst.Root) {
		t.Errorf("buffer directory %q not under root %q", got, inst.Root)
	}
	if got := p.DatabaseDirectory(); !strings.HasPrefix(got, inst.Root) {
		t.Errorf("database directory %q not under root %q", got, inst.Root)
	}
}

func TestInstall_ReplacesPriorPayloadCopy(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, testutil.WriteInstaller(t))
	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cfg.Workspace, TargetBinaryName)
	if err := os.WriteFile(stale, []byte("stale payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Install(context.Background(), cfg); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	content, err := os.ReadFile(stale)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) == "stale payload" {
		t.Error("prior payload copy was not replaced")
	}
}

func TestInstall_VerificationFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, testutil.WriteBrokenInstaller(t))
	_, err := Install(context.Background(), cfg)
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("Install() error = %v, want ErrInstallFailed", err)
	}
	// Both the workspace and the source binary are named in the failure.
	if !strings.Contains(err.Error(), cfg.Workspace) {
		t.Errorf("error %q does not name workspace %q", err, cfg.Workspace)
	}
	if !strings.Contains(err.Error(), cfg.SourceBinary) {
		t.Errorf("error %q does not name source binary %q", err, cfg.SourceBinary)
	}
	// Partial state is left for post-mortem inspection.
	if _, statErr := os.Stat(cfg.Workspace); statErr != nil {
		t.Errorf("workspace should remain after failure: %v", statErr)
	}
}

func TestInstall_ConcurrentInstallationsNeverSharePorts(t *testing.T) {
	t.Parallel()

	const n = 4
	ports := netutil.NewRegistry(nil)
	installer := testutil.WriteInstaller(t)

	results := make(chan *Installation, n)
	for i := 0; i < n; i++ {
		workspace := filepath.Join(t.TempDir(), "ws")
		go func() {
			inst, err := Install(context.Background(), InstallConfig{
				SourceBinary: installer,
				Workspace:    workspace,
				GracePeriod:  300 * time.Millisecond,
				Ports:        ports,
				Logger:       slog.Default(),
			})
			if err != nil {
				t.Errorf("Install() error = %v", err)
				results <- nil
				return
			}
			results <- inst
		}()
	}

	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		inst := <-results
		if inst == nil {
			continue
		}
		for _, port := range []int{inst.ClientPort, inst.ShutdownPort} {
			if _, dup := seen[port]; dup {
				t.Errorf("port %d assigned to two installations", port)
			}
			seen[port] = struct{}{}
		}
	}
}

func TestAttach(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, testutil.WriteInstaller(t))
	installed, err := Install(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	attached, err := Attach(cfg.Workspace)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if attached.ClientPort != installed.ClientPort {
		t.Errorf("ClientPort = %d, want %d", attached.ClientPort, installed.ClientPort)
	}
	if attached.ShutdownPort != installed.ShutdownPort {
		t.Errorf("ShutdownPort = %d, want %d", attached.ShutdownPort, installed.ShutdownPort)
	}
	if attached.Root != installed.Root {
		t.Errorf("Root = %q, want %q", attached.Root, installed.Root)
	}
}

func TestAttach_EmptyWorkspace(t *testing.T) {
	t.Parallel()

	_, err := Attach(t.TempDir())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("Attach() error = %v, want ErrInstallFailed", err)
	}
}

func TestDefaultWorkspace_Distinct(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	a := DefaultWorkspace(home)
	b := DefaultWorkspace(home)
	if a == b {
		t.Errorf("consecutive workspaces collide: %q", a)
	}
	if filepath.Dir(a) != home {
		t.Errorf("workspace %q not under home %q", a, home)
	}
}
