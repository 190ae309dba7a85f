package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrDuplicateVersion is returned when an appended blob key already exists
// in the record's history.
var ErrDuplicateVersion = errors.New("duplicate blob version")

// BlobRecord mirrors the newest stored HTML for a URL. Earlier versions
// live in blob_versions, dense from 1 and strictly ascending in scraped_at.
type BlobRecord struct {
	URL             string    `db:"url"`
	EntityID        string    `db:"entity_id"`
	TournamentID    int       `db:"tournament_id"`
	BlobKey         string    `db:"blob_key"`
	ETag            *string   `db:"etag"`
	LastModified    *string   `db:"last_modified"`
	ByteSize        int64     `db:"byte_size"`
	ContentHash     *string   `db:"content_hash"`
	ExtractedStatus *string   `db:"extracted_status"`
	ScrapedAt       time.Time `db:"scraped_at"`
	Version         int       `db:"version"`
}

// BlobVersion is one historical version entry.
type BlobVersion struct {
	URL             string    `db:"url"`
	VersionNumber   int       `db:"version_number"`
	BlobKey         string    `db:"blob_key"`
	ByteSize        int64     `db:"byte_size"`
	ContentHash     *string   `db:"content_hash"`
	ExtractedStatus *string   `db:"extracted_status"`
	ScrapedAt       time.Time `db:"scraped_at"`
}

// BlobMeta carries the fields of a newly stored blob.
type BlobMeta struct {
	EntityID        string
	TournamentID    int
	ETag            string
	LastModified    string
	ByteSize        int64
	ContentHash     string
	ExtractedStatus string
	ScrapedAt       time.Time
}

// BlobStore maintains the one-record-per-URL blob version history.
type BlobStore struct {
	db *sqlx.DB
}

func NewBlobStore(db *sqlx.DB) *BlobStore {
	return &BlobStore{db: db}
}

// Append installs blobKey as the newest version for url. The previous main
// fields, if any, are pushed onto the version history first. Appending a
// blob key that already appears anywhere in the record fails with
// ErrDuplicateVersion.
func (s *BlobStore) Append(ctx context.Context, url, blobKey string, meta BlobMeta) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback()

	var current BlobRecord
	err = tx.GetContext(ctx, &current, "SELECT * FROM blob_records WHERE url = ?", url)
	switch {
	case err == sql.ErrNoRows:
		if err := insertMain(ctx, tx, url, blobKey, meta, 1); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("reading blob record: %w", err)
	default:
		if current.BlobKey == blobKey {
			return ErrDuplicateVersion
		}
		var dup int
		if err := tx.GetContext(ctx, &dup,
			"SELECT COUNT(*) FROM blob_versions WHERE url = ? AND blob_key = ?", url, blobKey); err != nil {
			return fmt.Errorf("checking duplicate version: %w", err)
		}
		if dup > 0 {
			return ErrDuplicateVersion
		}

		var count int
		if err := tx.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM blob_versions WHERE url = ?", url); err != nil {
			return fmt.Errorf("counting versions: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO blob_versions
				(url, version_number, blob_key, byte_size, content_hash, extracted_status, scraped_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			url, count+1, current.BlobKey, current.ByteSize,
			current.ContentHash, current.ExtractedStatus, current.ScrapedAt)
		if err != nil {
			return fmt.Errorf("archiving previous version: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE blob_records SET
				blob_key = ?, etag = ?, last_modified = ?, byte_size = ?,
				content_hash = ?, extracted_status = ?, scraped_at = ?,
				version = version + 1
			 WHERE url = ?`,
			blobKey, nilIfEmpty(meta.ETag), nilIfEmpty(meta.LastModified), meta.ByteSize,
			nilIfEmpty(meta.ContentHash), nilIfEmpty(meta.ExtractedStatus), meta.ScrapedAt, url)
		if err != nil {
			return fmt.Errorf("installing new version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

func insertMain(ctx context.Context, tx *sqlx.Tx, url, blobKey string, meta BlobMeta, version int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO blob_records
			(url, entity_id, tournament_id, blob_key, etag, last_modified,
			 byte_size, content_hash, extracted_status, scraped_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		url, meta.EntityID, meta.TournamentID, blobKey,
		nilIfEmpty(meta.ETag), nilIfEmpty(meta.LastModified), meta.ByteSize,
		nilIfEmpty(meta.ContentHash), nilIfEmpty(meta.ExtractedStatus), meta.ScrapedAt, version)
	if err != nil {
		return fmt.Errorf("creating blob record: %w", err)
	}
	return nil
}

// ResolveLatest returns the main fields for a URL, or ErrNotFound.
func (s *BlobStore) ResolveLatest(ctx context.Context, url string) (*BlobRecord, error) {
	var rec BlobRecord
	err := s.db.GetContext(ctx, &rec, "SELECT * FROM blob_records WHERE url = ?", url)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving latest blob: %w", err)
	}
	return &rec, nil
}

// ListVersions returns the full version history for a URL, oldest first,
// with the current main as the final entry.
func (s *BlobStore) ListVersions(ctx context.Context, url string) ([]BlobVersion, error) {
	main, err := s.ResolveLatest(ctx, url)
	if err != nil {
		return nil, err
	}

	var history []BlobVersion
	err = s.db.SelectContext(ctx, &history,
		"SELECT * FROM blob_versions WHERE url = ? ORDER BY version_number ASC", url)
	if err != nil {
		return nil, fmt.Errorf("listing blob versions: %w", err)
	}

	history = append(history, BlobVersion{
		URL:             main.URL,
		VersionNumber:   len(history) + 1,
		BlobKey:         main.BlobKey,
		ByteSize:        main.ByteSize,
		ContentHash:     main.ContentHash,
		ExtractedStatus: main.ExtractedStatus,
		ScrapedAt:       main.ScrapedAt,
	})
	return history, nil
}

// nilIfEmpty keeps empty strings out of nullable columns. Indexed status
// fields must be omitted rather than stored as empty strings.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
