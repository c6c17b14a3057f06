package sqlite

import (
	"database/sql"
	"time"

	"github.com/mobiledepot/appfetch/internal/domain"
)

// RecordFetch inserts or replaces the record for rec.URL
func (s *Store) RecordFetch(rec *domain.FetchRecord) error {
	query := `
		INSERT INTO fetch_records (url, cache_dir, bundle_path, bytes_downloaded, hit_count, created_at, last_access_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			cache_dir = excluded.cache_dir,
			bundle_path = excluded.bundle_path,
			bytes_downloaded = excluded.bytes_downloaded,
			last_access_at = excluded.last_access_at
	`

	now := time.Now().UTC()
	_, err := s.db.Exec(query, rec.URL, rec.CacheDir, rec.BundlePath, rec.BytesDownloaded, now, now)
	return err
}

// RecordHit bumps the hit counter for a URL served from cache
func (s *Store) RecordHit(url string) error {
	query := `
		UPDATE fetch_records
		SET hit_count = hit_count + 1, last_access_at = ?
		WHERE url = ?
	`

	_, err := s.db.Exec(query, time.Now().UTC(), url)
	return err
}

// GetByURL retrieves the record for a URL, or nil if none exists
func (s *Store) GetByURL(url string) (*domain.FetchRecord, error) {
	query := `
		SELECT id, url, cache_dir, bundle_path, bytes_downloaded, hit_count, created_at, last_access_at
		FROM fetch_records
		WHERE url = ?
	`

	rec := &domain.FetchRecord{}
	err := s.db.QueryRow(query, url).Scan(
		&rec.ID, &rec.URL, &rec.CacheDir, &rec.BundlePath,
		&rec.BytesDownloaded, &rec.HitCount, &rec.CreatedAt, &rec.LastAccessAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// ListRecent returns up to limit records ordered by most recent access
func (s *Store) ListRecent(limit int) ([]*domain.FetchRecord, error) {
	query := `
		SELECT id, url, cache_dir, bundle_path, bytes_downloaded, hit_count, created_at, last_access_at
		FROM fetch_records
		ORDER BY last_access_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.FetchRecord
	for rows.Next() {
		rec := &domain.FetchRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.URL, &rec.CacheDir, &rec.BundlePath,
			&rec.BytesDownloaded, &rec.HitCount, &rec.CreatedAt, &rec.LastAccessAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
