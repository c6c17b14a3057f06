package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mobiledepot/appfetch/internal/bundle"
	"github.com/mobiledepot/appfetch/internal/domain"
	"github.com/mobiledepot/appfetch/internal/port"
	"github.com/mobiledepot/appfetch/internal/progress"
)

// Config contains fetcher configuration
type Config struct {
	// CacheRoot is the directory holding per-URL cache entries.
	CacheRoot string

	// TempRoot is the directory for temporary workspaces.
	TempRoot string

	// ProgressInterval throttles progress sink invocations.
	ProgressInterval time.Duration
}

// DefaultConfig returns default fetcher configuration
func DefaultConfig() *Config {
	return &Config{
		CacheRoot:        filepath.Join(os.TempDir(), "appfetch", "cache"),
		TempRoot:         filepath.Join(os.TempDir(), "appfetch", "tmp"),
		ProgressInterval: 250 * time.Millisecond,
	}
}

// Fetcher acquires installable application bundles from remote URLs or
// local archives. A single invocation runs sequentially; multiple
// invocations may run concurrently, each with its own workspace.
// Invocations for the same URL can race on the shared cache directory;
// that race is a documented property, not defended against here.
type Fetcher struct {
	config    *Config
	transport port.Transport
	extractor port.Extractor
	records   port.FetchRecordRepository
	logger    *zap.Logger
}

// New creates a new Fetcher. records may be nil to disable fetch
// history bookkeeping.
func New(
	cfg *Config,
	transport port.Transport,
	extractor port.Extractor,
	records port.FetchRecordRepository,
	logger *zap.Logger,
) *Fetcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 250 * time.Millisecond
	}

	return &Fetcher{
		config:    cfg,
		transport: transport,
		extractor: extractor,
		records:   records,
		logger:    logger,
	}
}

// FetchFromURL obtains the installable bundle for rawURL, reusing the
// cache entry when it already holds a locatable bundle. Raw package
// URLs are downloaded as-is; archive URLs are downloaded into a
// temporary workspace and extracted into the cache directory.
func (f *Fetcher) FetchFromURL(ctx context.Context, rawURL string, sink domain.ProgressSink) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidURL, rawURL)
	}

	cacheDir := CacheDir(f.config.CacheRoot, rawURL)

	if _, err := os.Stat(cacheDir); err == nil {
		cached, err := bundle.Locate(cacheDir, bundle.DefaultExtensions)
		if err == nil {
			f.logger.Info("bundle served from cache",
				zap.String("url", rawURL),
				zap.String("path", cached))
			f.recordHit(rawURL)
			return cached, nil
		}
		if domain.IsAmbiguous(err) {
			// Re-downloading cannot pick one of several bundles
			return "", err
		}
		f.logger.Debug("cache entry incomplete, downloading fresh",
			zap.String("url", rawURL),
			zap.Error(err))
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	if ext, ok := packageExtension(u.Path); ok {
		dest := filepath.Join(cacheDir, uuid.NewString()+ext)
		written, err := f.download(ctx, rawURL, dest, sink)
		if err != nil {
			return "", err
		}

		f.logger.Info("package downloaded",
			zap.String("url", rawURL),
			zap.String("path", dest),
			zap.Int64("bytes", written))
		f.recordFetch(rawURL, cacheDir, dest, written)
		return dest, nil
	}

	workspace, err := f.newWorkspace()
	if err != nil {
		return "", err
	}

	archivePath := filepath.Join(workspace, uuid.NewString()+archiveSuffix(u.Path))
	written, err := f.download(ctx, rawURL, archivePath, sink)
	if err != nil {
		return "", err
	}

	if err := f.extractor.Extract(ctx, archivePath, cacheDir); err != nil {
		return "", err
	}

	located, err := bundle.Locate(cacheDir, bundle.DefaultExtensions)
	if err != nil {
		return "", err
	}

	f.logger.Info("bundle extracted",
		zap.String("url", rawURL),
		zap.String("path", located),
		zap.Int64("bytes", written))
	f.recordFetch(rawURL, cacheDir, located, written)
	return located, nil
}

// ExtractArchive unpacks a local archive into a fresh temporary
// workspace and returns the single bundle found inside. Local archives
// are never cached.
func (f *Fetcher) ExtractArchive(ctx context.Context, archivePath string) (string, error) {
	workspace, err := f.newWorkspace()
	if err != nil {
		return "", err
	}

	if err := f.extractor.Extract(ctx, archivePath, workspace); err != nil {
		return "", err
	}

	return bundle.Locate(workspace, bundle.DefaultExtensions)
}

// download streams url into dest, reporting progress through sink.
// Partially written output is removed on failure.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string, sink domain.ProgressSink) (int64, error) {
	body, headers, err := f.transport.Get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	reader := progress.WrapReader(body, headers.Get("Content-Length"),
		f.config.ProgressInterval, sink, f.logger)

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	written, err := io.Copy(out, reader)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return 0, &domain.TransferError{URL: rawURL, Err: err}
	}

	return written, nil
}

// recordFetch stores acquisition history. Failures are logged only.
func (f *Fetcher) recordFetch(rawURL, cacheDir, bundlePath string, written int64) {
	if f.records == nil {
		return
	}

	err := f.records.RecordFetch(&domain.FetchRecord{
		URL:             rawURL,
		CacheDir:        cacheDir,
		BundlePath:      bundlePath,
		BytesDownloaded: written,
	})
	if err != nil {
		f.logger.Warn("failed to record fetch", zap.String("url", rawURL), zap.Error(err))
	}
}

func (f *Fetcher) recordHit(rawURL string) {
	if f.records == nil {
		return
	}

	if err := f.records.RecordHit(rawURL); err != nil {
		f.logger.Warn("failed to record cache hit", zap.String("url", rawURL), zap.Error(err))
	}
}

// packageExtension reports whether urlPath denotes a raw installable
// package and returns its extension.
func packageExtension(urlPath string) (string, bool) {
	base := path.Base(urlPath)
	for _, ext := range bundle.PackageExtensions {
		if bundle.Matches(base, []string{ext}) {
			return ext, true
		}
	}
	return "", false
}

// archiveSuffix preserves the archive naming of the source URL so the
// system tar tool can recognize the compression from the filename.
func archiveSuffix(urlPath string) string {
	base := path.Base(urlPath)
	for _, suffix := range []string{".tar.gz", ".tgz", ".tar"} {
		if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
			return suffix
		}
	}
	return ".tar.gz"
}
