package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path    func(base string) string
		wantErr bool
	}{
		"creates nested directories": {
			path: func(base string) string { return filepath.Join(base, "a", "b", "c") },
		},
		"existing directory is fine": {
			path: func(base string) string { return base },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			base := t.TempDir()
			path := tc.path(base)

			err := EnsureDir(path)
			if (err != nil) != tc.wantErr {
				t.Fatalf("EnsureDir(%q) error = %v, wantErr %v", path, err, tc.wantErr)
			}
			if err == nil {
				info, statErr := os.Stat(path)
				if statErr != nil {
					t.Fatalf("stat %q: %v", path, statErr)
				}
				if !info.IsDir() {
					t.Errorf("%q is not a directory", path)
				}
			}
		})
	}
}

func TestDirHasEntries(t *testing.T) {
	t.Parallel()

	t.Run("missing directory reports false without error", func(t *testing.T) {
		t.Parallel()

		got, err := DirHasEntries(filepath.Join(t.TempDir(), "nope"))
		if err != nil {
			t.Fatalf("DirHasEntries() error = %v", err)
		}
		if got {
			t.Error("missing directory should report false")
		}
	})

	t.Run("empty directory reports false", func(t *testing.T) {
		t.Parallel()

		got, err := DirHasEntries(t.TempDir())
		if err != nil {
			t.Fatalf("DirHasEntries() error = %v", err)
		}
		if got {
			t.Error("empty directory should report false")
		}
	})

	t.Run("populated directory reports true", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := DirHasEntries(dir)
		if err != nil {
			t.Fatalf("DirHasEntries() error = %v", err)
		}
		if !got {
			t.Error("populated directory should report true")
		}
	})
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	t.Run("copies content and mode", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		src := filepath.Join(dir, "src.bin")
		dst := filepath.Join(dir, "sub", "dst.bin")
		if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(src, dst, 0o755); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}

		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "payload" {
			t.Errorf("content = %q, want %q", got, "payload")
		}
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("mode = %v, want 0755", info.Mode().Perm())
		}
	})

	t.Run("replaces existing destination", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		src := filepath.Join(dir, "src.bin")
		dst := filepath.Join(dir, "dst.bin")
		if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(dst, []byte("old payload"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(src, dst, 0o644); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "new" {
			t.Errorf("content = %q, want %q", got, "new")
		}
	})

	t.Run("empty source path", func(t *testing.T) {
		t.Parallel()

		err := CopyFile("", filepath.Join(t.TempDir(), "dst"), 0o644)
		if !errors.Is(err, ErrEmptySrc) {
			t.Errorf("error = %v, want ErrEmptySrc", err)
		}
	})

	t.Run("empty destination path", func(t *testing.T) {
		t.Parallel()

		err := CopyFile(filepath.Join(t.TempDir(), "src"), "", 0o644)
		if !errors.Is(err, ErrEmptyDst) {
			t.Errorf("error = %v, want ErrEmptyDst", err)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		err := CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"), 0o644)
		if err == nil {
			t.Fatal("expected error for missing source")
		}
	})
}
