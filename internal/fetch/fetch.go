package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	"github.com/dubex/concourse-test/internal/fileutil"
	"github.com/dubex/concourse-test/internal/sentinel"
)

// ErrBadStatus is returned when the release host answers with a non-200
// status for a resolved installer URL.
const ErrBadStatus = sentinel.Error("unexpected response status for installer download")

// defaultURLTemplate builds the release-asset URL for a version. The two
// %s verbs both receive the bare version string (no "v" prefix).
const defaultURLTemplate = "https://github.com/cinchapi/concourse/releases/download/v%s/concourse-server-%s.bin"

// Resolver maps a version string to the URL of its installer binary.
type Resolver func(version string) (string, error)

// DefaultResolver resolves versions against the public release index.
func DefaultResolver(version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("resolve installer URL: version must not be empty")
	}
	v := strings.TrimPrefix(version, "v")
	return fmt.Sprintf(defaultURLTemplate, v, v), nil
}

// Downloader fetches and caches installer binaries.
type Downloader struct {
	cacheDir string
	resolver Resolver
	client   *retryablehttp.Client
	group    singleflight.Group
	log      *slog.Logger
}

// NewDownloader creates a Downloader that caches installers in cacheDir.
// If resolver is nil, DefaultResolver is used. If logger is nil,
// slog.Default() is used.
func NewDownloader(cacheDir string, resolver Resolver, logger *slog.Logger) *Downloader {
	if resolver == nil {
		resolver = DefaultResolver
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.Logger = nil // retry logging goes through our slog hook below
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Debug("retrying installer download", "url", req.URL.String(), "attempt", attempt)
		}
	}
	return &Downloader{
		cacheDir: cacheDir,
		resolver: resolver,
		client:   client,
		log:      logger,
	}
}

// CachePath returns the cache location for a version, following the
// concourse-server-<version>.bin naming convention.
func (d *Downloader) CachePath(version string) string {
	return filepath.Join(d.cacheDir, "concourse-server-"+strings.TrimPrefix(version, "v")+".bin")
}

// Download returns the local path of the installer for version, fetching it
// from the release host if it is not already cached. Concurrent calls for
// the same version share one fetch.
func (d *Downloader) Download(ctx context.Context, version string) (string, error) {
	path, err, _ := d.group.Do(version, func() (any, error) {
		return d.download(ctx, version)
	})
	if err != nil {
		return "", err
	}
	return path.(string), nil
}

func (d *Downloader) download(ctx context.Context, version string) (string, error) {
	dest := d.CachePath(version)
	if _, err := os.Stat(dest); err == nil {
		d.log.Debug("using cached installer", "path", dest)
		return dest, nil
	}

	if err := fileutil.EnsureDir(d.cacheDir); err != nil {
		return "", fmt.Errorf("prepare cache: %w", err)
	}

	// Serialize cache writes across processes sharing the cache directory.
	// A sibling process may have completed the download while this one was
	// waiting on the lock, so the cache is re-checked after acquisition.
	lock := flock.New(dest + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock installer cache: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			d.log.Warn("unlock installer cache", "path", dest, "error", err)
		}
	}()

	if _, err := os.Stat(dest); err == nil {
		d.log.Debug("installer cached by concurrent process", "path", dest)
		return dest, nil
	}

	url, err := d.resolver(version)
	if err != nil {
		return "", fmt.Errorf("resolve installer for version %s: %w", version, err)
	}

	d.log.Info("downloading installer", "version", version, "url", url)
	if err := d.fetchTo(ctx, url, dest); err != nil {
		return "", fmt.Errorf("download installer for version %s: %w", version, err)
	}
	d.log.Info("installer downloaded", "version", version, "path", dest)
	return dest, nil
}

// fetchTo streams url into dest via a temp file and rename, so a partially
// written installer is never observable at the cache path.
func (d *Downloader) fetchTo(ctx context.Context, url, dest string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s from %s", ErrBadStatus, resp.Status, url)
	}

	tmp, err := os.CreateTemp(d.cacheDir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write installer: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename installer: %w", err)
	}
	return nil
}
