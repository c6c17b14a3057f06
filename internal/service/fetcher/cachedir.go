package fetcher

import (
	"net/url"
	"path/filepath"
	"strings"
)

// CacheDir maps a source URL to its cache directory: the URL with the
// scheme prefix stripped, percent-encoded into a single path segment,
// joined under root. The mapping is deterministic so repeated fetches
// of one URL share an entry, and collision-resistant because encoding
// preserves the full remainder of the URL.
func CacheDir(root, rawURL string) string {
	key := rawURL
	if i := strings.Index(key, "://"); i >= 0 {
		key = key[i+len("://"):]
	}
	return filepath.Join(root, url.PathEscape(key))
}
