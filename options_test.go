package concoursetest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	assert.Equal(t, DefaultInstallHome(), cfg.installHome)
	assert.Equal(t, DefaultGracePeriod, cfg.gracePeriod)
	assert.Equal(t, DefaultUsername, cfg.username)
	assert.Equal(t, DefaultPassword, cfg.password)
	assert.NotNil(t, cfg.resolver)
	assert.Nil(t, cfg.dialer)
	assert.Equal(t, filepath.Join(cfg.installHome, cacheDirName), cfg.cacheDir())
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	for _, opt := range []Option{
		WithWorkspace("/tmp/ws"),
		WithInstallHome("/tmp/home"),
		WithGracePeriod(5 * time.Second),
		WithVersion("0.4.2"),
		WithCredentials("jeff", "secret"),
	} {
		opt(&cfg)
	}

	assert.Equal(t, "/tmp/ws", cfg.workspace)
	assert.Equal(t, "/tmp/home", cfg.installHome)
	assert.Equal(t, 5*time.Second, cfg.gracePeriod)
	assert.Equal(t, "0.4.2", cfg.version)
	assert.Equal(t, "jeff", cfg.username)
	assert.Equal(t, "secret", cfg.password)
}

func TestOptions_PanicOnInvalidInput(t *testing.T) {
	t.Parallel()

	tests := map[string]func(){
		"empty workspace":    func() { WithWorkspace("") },
		"empty install home": func() { WithInstallHome("") },
		"zero grace period":  func() { WithGracePeriod(0) },
		"negative grace":     func() { WithGracePeriod(-time.Second) },
		"empty version":      func() { WithVersion("") },
		"empty username":     func() { WithCredentials("", "secret") },
		"nil resolver":       func() { WithResolver(nil) },
	}

	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Panics(t, build)
		})
	}
}
