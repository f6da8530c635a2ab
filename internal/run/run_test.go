package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOutput(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		script    string
		wantLines []string
		wantErr   bool
	}{
		"captures stdout lines": {
			script:    "echo one\necho two\n",
			wantLines: []string{"one", "two"},
		},
		"merges stderr into stdout": {
			script:    "echo out\necho err 1>&2\n",
			wantLines: []string{"out", "err"},
		},
		"no output": {
			script:    "true\n",
			wantLines: nil,
		},
		"non-zero exit returns lines and error": {
			script:    "echo before failure\nexit 3\n",
			wantLines: []string{"before failure"},
			wantErr:   true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			script := filepath.Join(dir, "script.sh")
			if err := os.WriteFile(script, []byte(tc.script), 0o755); err != nil {
				t.Fatal(err)
			}

			lines, err := Output(context.Background(), dir, "sh", "script.sh")
			if (err != nil) != tc.wantErr {
				t.Fatalf("Output() error = %v, wantErr %v", err, tc.wantErr)
			}
			if len(lines) != len(tc.wantLines) {
				t.Fatalf("lines = %q, want %q", lines, tc.wantLines)
			}
			for i := range lines {
				if lines[i] != tc.wantLines[i] {
					t.Errorf("line %d = %q, want %q", i, lines[i], tc.wantLines[i])
				}
			}
		})
	}
}

func TestOutput_LaunchFailure(t *testing.T) {
	t.Parallel()

	_, err := Output(context.Background(), t.TempDir(), "./does-not-exist")
	if err == nil {
		t.Fatal("expected launch failure")
	}
}

func TestOutput_WorkingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := Output(context.Background(), dir, "ls")
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	found := false
	for _, l := range lines {
		if l == "marker" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected marker in listing, got %q", lines)
	}
}

func TestStartWithGrace(t *testing.T) {
	t.Parallel()

	t.Run("kills a blocking process after the grace period", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		script := filepath.Join(dir, "installer.sh")
		// Writes its payload, then blocks on a prompt that never comes.
		if err := os.WriteFile(script, []byte("mkdir -p payload\necho installed\nsleep 300\n"), 0o755); err != nil {
			t.Fatal(err)
		}

		start := time.Now()
		lines, err := StartWithGrace(context.Background(), dir, 100*time.Millisecond, "sh", "installer.sh")
		if err != nil {
			t.Fatalf("StartWithGrace() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("took %v, expected prompt to be killed promptly", elapsed)
		}
		if len(lines) == 0 || lines[0] != "installed" {
			t.Errorf("lines = %q, want first line %q", lines, "installed")
		}
		if _, statErr := os.Stat(filepath.Join(dir, "payload")); statErr != nil {
			t.Errorf("payload dir missing: %v", statErr)
		}
	})

	t.Run("early exit is not an error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		script := filepath.Join(dir, "installer.sh")
		if err := os.WriteFile(script, []byte("echo done\nexit 7\n"), 0o755); err != nil {
			t.Fatal(err)
		}

		lines, err := StartWithGrace(context.Background(), dir, time.Second, "sh", "installer.sh")
		if err != nil {
			t.Fatalf("StartWithGrace() error = %v", err)
		}
		if len(lines) != 1 || lines[0] != "done" {
			t.Errorf("lines = %q, want [done]", lines)
		}
	})

	t.Run("launch failure is an error", func(t *testing.T) {
		t.Parallel()

		_, err := StartWithGrace(context.Background(), t.TempDir(), time.Second, "./does-not-exist")
		if err == nil {
			t.Fatal("expected launch failure")
		}
	})
}
