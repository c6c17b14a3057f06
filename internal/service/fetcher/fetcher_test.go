package fetcher

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/mobiledepot/appfetch/internal/adapter/httpx"
	"github.com/mobiledepot/appfetch/internal/domain"
	"github.com/mobiledepot/appfetch/internal/extract"
)

// tarGz builds a gzip-compressed tarball of name -> content entries.
// Names ending in "/" become directories.
func tarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range entries {
		if strings.HasSuffix(name, "/") {
			if err := tw.WriteHeader(&tar.Header{
				Name:     name,
				Typeflag: tar.TypeDir,
				Mode:     0755,
			}); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

// newTestFetcher wires a fetcher against a stub HTTP handler, counting
// requests so cache-hit tests can assert no network activity.
func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	log := zap.NewNop()
	cfg := &Config{
		CacheRoot:        filepath.Join(t.TempDir(), "cache"),
		TempRoot:         filepath.Join(t.TempDir(), "tmp"),
		ProgressInterval: 10 * time.Millisecond,
	}

	f := New(cfg,
		httpx.NewClient(10*time.Second, log),
		extract.NewWithStrategies(log, extract.NewGoTar(log)),
		nil,
		log)

	return f, server, &requests
}

func serveBytes(payload []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Large responses would otherwise go out chunked without a
		// Content-Length, silently disabling progress reporting
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	})
}

func TestFetchFromURL_RawPackage(t *testing.T) {
	payload := []byte("apk-bytes")
	f, server, requests := newTestFetcher(t, serveBytes(payload))

	got, err := f.FetchFromURL(context.Background(), server.URL+"/builds/app-release.apk", nil)
	if err != nil {
		t.Fatalf("FetchFromURL() error = %v", err)
	}

	if !strings.HasSuffix(got, ".apk") {
		t.Errorf("FetchFromURL() = %s, want a path ending in .apk", got)
	}
	if !strings.HasPrefix(got, f.config.CacheRoot) {
		t.Errorf("FetchFromURL() = %s, want a path inside the cache root", got)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("downloaded content = %q, want %q", data, payload)
	}
	if requests.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", requests.Load())
	}
}

func TestFetchFromURL_ArchiveWithAppBundle(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"payload/":                   "",
		"payload/MyApp.app/":         "",
		"payload/MyApp.app/Contents": "binary",
	})
	f, server, _ := newTestFetcher(t, serveBytes(archive))

	url := server.URL + "/releases/MyApp.tar.gz"
	got, err := f.FetchFromURL(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("FetchFromURL() error = %v", err)
	}

	want, _ := filepath.Abs(filepath.Join(CacheDir(f.config.CacheRoot, url), "payload", "MyApp.app"))
	if got != want {
		t.Errorf("FetchFromURL() = %s, want %s", got, want)
	}

	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("result does not exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected .app bundle to be a directory")
	}
}

func TestFetchFromURL_CacheHitSkipsNetwork(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"MyApp.ipa": "ipa-bytes",
	})
	f, server, requests := newTestFetcher(t, serveBytes(archive))

	url := server.URL + "/releases/MyApp.tar.gz"

	first, err := f.FetchFromURL(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("first FetchFromURL() error = %v", err)
	}

	second, err := f.FetchFromURL(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("second FetchFromURL() error = %v", err)
	}

	if first != second {
		t.Errorf("cache hit returned %s, want identical path %s", second, first)
	}
	if requests.Load() != 1 {
		t.Errorf("server saw %d requests, want 1 (second call must hit the cache)", requests.Load())
	}
}

func TestFetchFromURL_NoBundleInArchive(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"docs/readme.txt": "no apps here",
	})
	f, server, _ := newTestFetcher(t, serveBytes(archive))

	_, err := f.FetchFromURL(context.Background(), server.URL+"/empty.tar.gz", nil)
	if !errors.Is(err, domain.ErrBundleNotFound) {
		t.Errorf("FetchFromURL() error = %v, want ErrBundleNotFound", err)
	}
}

func TestFetchFromURL_AmbiguousArchive(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"one.apk": "a",
		"two.apk": "b",
	})
	f, server, requests := newTestFetcher(t, serveBytes(archive))

	url := server.URL + "/double.tar.gz"

	_, err := f.FetchFromURL(context.Background(), url, nil)
	var ambiguous *domain.AmbiguousBundleError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("FetchFromURL() error = %v, want AmbiguousBundleError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(ambiguous.Candidates))
	}

	// The ambiguous cache entry must fail again without a re-download:
	// fetching fresh bytes cannot pick one of two bundles.
	_, err = f.FetchFromURL(context.Background(), url, nil)
	if !domain.IsAmbiguous(err) {
		t.Errorf("second FetchFromURL() error = %v, want AmbiguousBundleError", err)
	}
	if requests.Load() != 1 {
		t.Errorf("server saw %d requests, want 1 (ambiguity is not corruption)", requests.Load())
	}
}

func TestFetchFromURL_CorruptCacheEntryRedownloads(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"MyApp.apk": "fresh",
	})
	f, server, requests := newTestFetcher(t, serveBytes(archive))

	url := server.URL + "/app.tar.gz"

	// A cache directory without a locatable bundle is incomplete
	cacheDir := CacheDir(f.config.CacheRoot, url)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "leftover.partial"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := f.FetchFromURL(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("FetchFromURL() error = %v", err)
	}
	if !strings.HasSuffix(got, "MyApp.apk") {
		t.Errorf("FetchFromURL() = %s, want the freshly downloaded bundle", got)
	}
	if requests.Load() != 1 {
		t.Errorf("server saw %d requests, want 1 (corrupt entry triggers re-download)", requests.Load())
	}
}

func TestFetchFromURL_HTTPError(t *testing.T) {
	f, server, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	url := server.URL + "/missing.apk"
	_, err := f.FetchFromURL(context.Background(), url, nil)

	var transferErr *domain.TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("FetchFromURL() error = %v, want TransferError", err)
	}
	if transferErr.Status != http.StatusNotFound {
		t.Errorf("TransferError.Status = %d, want 404", transferErr.Status)
	}
	if !strings.Contains(err.Error(), url) {
		t.Errorf("error %q should name the URL", err.Error())
	}
}

func TestFetchFromURL_InvalidURL(t *testing.T) {
	f, _, _ := newTestFetcher(t, serveBytes(nil))

	for _, raw := range []string{"not a url", "ftp://example.com/a.apk", ""} {
		if _, err := f.FetchFromURL(context.Background(), raw, nil); !errors.Is(err, domain.ErrInvalidURL) {
			t.Errorf("FetchFromURL(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestFetchFromURL_ProgressReported(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64*1024)
	f, server, _ := newTestFetcher(t, serveBytes(payload))

	var events []domain.ProgressEvent
	sink := func(ev domain.ProgressEvent) {
		events = append(events, ev)
	}

	if _, err := f.FetchFromURL(context.Background(), server.URL+"/big.apk", sink); err != nil {
		t.Fatalf("FetchFromURL() error = %v", err)
	}

	if len(events) == 0 {
		t.Fatal("no progress events delivered")
	}
	last := events[len(events)-1]
	if !last.IsComplete {
		t.Error("last progress event IsComplete = false, want true")
	}
	if last.BytesTransferred != uint64(len(payload)) {
		t.Errorf("final BytesTransferred = %d, want %d", last.BytesTransferred, len(payload))
	}
}

func TestExtractArchive_Local(t *testing.T) {
	f, _, requests := newTestFetcher(t, serveBytes(nil))

	archivePath := filepath.Join(t.TempDir(), "local.tar.gz")
	if err := os.WriteFile(archivePath, tarGz(t, map[string]string{
		"build/MyApp.ipa": "ipa",
	}), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := f.ExtractArchive(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("ExtractArchive() error = %v", err)
	}

	if !strings.HasSuffix(got, "MyApp.ipa") {
		t.Errorf("ExtractArchive() = %s, want a MyApp.ipa path", got)
	}
	if !strings.HasPrefix(got, f.config.TempRoot) {
		t.Errorf("ExtractArchive() = %s, want a path inside the temp root", got)
	}
	if requests.Load() != 0 {
		t.Errorf("server saw %d requests, want 0 for a local archive", requests.Load())
	}

	// Local archives are never cached: a second extraction gets a
	// fresh workspace.
	again, err := f.ExtractArchive(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("second ExtractArchive() error = %v", err)
	}
	if again == got {
		t.Error("second extraction reused the first workspace")
	}
}

func TestCleanStaleWorkspaces(t *testing.T) {
	f, _, _ := newTestFetcher(t, serveBytes(nil))

	stale, err := f.newWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	fresh, err := f.newWorkspace()
	if err != nil {
		t.Fatal(err)
	}

	removed, err := f.CleanStaleWorkspaces(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanStaleWorkspaces() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d workspaces, want 1", removed)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale workspace still exists")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh workspace was removed")
	}
}
