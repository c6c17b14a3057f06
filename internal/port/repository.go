package port

import "github.com/mobiledepot/appfetch/internal/domain"

// FetchRecordRepository persists acquisition history.
type FetchRecordRepository interface {
	// RecordFetch inserts or replaces the record for rec.URL.
	RecordFetch(rec *domain.FetchRecord) error

	// RecordHit bumps the hit counter and access time for a URL whose
	// cached bundle was reused without a download.
	RecordHit(url string) error

	// GetByURL returns the record for a URL, or nil if none exists.
	GetByURL(url string) (*domain.FetchRecord, error)

	// ListRecent returns up to limit records ordered by most recent access.
	ListRecent(limit int) ([]*domain.FetchRecord, error)
}
