package domain

import "time"

// FetchRecord is the stored history of one successful acquisition.
// Records are advisory bookkeeping: they never gate pipeline control
// flow, and storage failures are logged and ignored.
type FetchRecord struct {
	ID              int64
	URL             string
	CacheDir        string
	BundlePath      string
	BytesDownloaded int64
	HitCount        int
	CreatedAt       time.Time
	LastAccessAt    time.Time
}
