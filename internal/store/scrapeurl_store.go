package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// ScrapeURL is the canonical per-URL record. Exactly one row exists per URL.
type ScrapeURL struct {
	URL              string             `db:"url"`
	EntityID         string             `db:"entity_id"`
	TournamentID     int                `db:"tournament_id"`
	LastScrapeStatus game.ScrapeStatus  `db:"last_scrape_status"`
	GameStatus       *string            `db:"game_status"`
	DoNotScrape      bool               `db:"do_not_scrape"`
	TimesScraped     int                `db:"times_scraped"`
	TimesSuccessful  int                `db:"times_successful"`
	TimesFailed      int                `db:"times_failed"`
	FirstScrapedAt   *time.Time         `db:"first_scraped_at"`
	LastScrapedAt    *time.Time         `db:"last_scraped_at"`
	LatestBlobKey    *string            `db:"latest_blob_key"`
	GameID           *string            `db:"game_id"`
	Version          int                `db:"version"`
}

// ScrapeURLStore persists ScrapeURL records.
type ScrapeURLStore struct {
	db *sqlx.DB
}

func NewScrapeURLStore(db *sqlx.DB) *ScrapeURLStore {
	return &ScrapeURLStore{db: db}
}

// Get returns the record for a URL, or ErrNotFound.
func (s *ScrapeURLStore) Get(ctx context.Context, url string) (*ScrapeURL, error) {
	var rec ScrapeURL
	err := s.db.GetContext(ctx, &rec, "SELECT * FROM scrape_urls WHERE url = ?", url)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting scrape url: %w", err)
	}
	return &rec, nil
}

// Range returns all records for an entity with tournament ids in
// [startID, endID], ordered ascending. Used by the skip-cache prefetch.
func (s *ScrapeURLStore) Range(ctx context.Context, entityID string, startID, endID int) ([]ScrapeURL, error) {
	var recs []ScrapeURL
	err := s.db.SelectContext(ctx, &recs,
		`SELECT * FROM scrape_urls
		 WHERE entity_id = ? AND tournament_id BETWEEN ? AND ?
		 ORDER BY tournament_id ASC`,
		entityID, startID, endID)
	if err != nil {
		return nil, fmt.Errorf("ranging scrape urls: %w", err)
	}
	return recs, nil
}

// RecordOutcome creates or updates the record for a URL after a scrape
// attempt, maintaining the attempt counters and timestamps. gameStatus may
// be empty when no tournament status was extracted.
func (s *ScrapeURLStore) RecordOutcome(ctx context.Context, entityID string, tournamentID int, url string, status game.ScrapeStatus, gameStatus string) error {
	now := time.Now().UTC()
	success := 0
	failed := 0
	if status == game.ScrapeSuccess {
		success = 1
	} else if status.Retryable() {
		failed = 1
	}

	var gs *string
	if gameStatus != "" {
		gs = &gameStatus
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_urls SET
			last_scrape_status = ?,
			game_status = COALESCE(?, game_status),
			times_scraped = times_scraped + 1,
			times_successful = times_successful + ?,
			times_failed = times_failed + ?,
			last_scraped_at = ?,
			version = version + 1
		 WHERE url = ?`,
		status, gs, success, failed, now, url)
	if err != nil {
		return fmt.Errorf("updating scrape url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating scrape url: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scrape_urls
			(url, entity_id, tournament_id, last_scrape_status, game_status,
			 times_scraped, times_successful, times_failed,
			 first_scraped_at, last_scraped_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		url, entityID, tournamentID, status, gs, success, failed, now, now)
	if err != nil {
		return fmt.Errorf("inserting scrape url: %w", err)
	}
	return nil
}

// LinkGame points the URL at its committed game and latest blob key.
func (s *ScrapeURLStore) LinkGame(ctx context.Context, url, gameID, blobKey string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scrape_urls SET game_id = ?, latest_blob_key = ?, version = version + 1 WHERE url = ?`,
		gameID, blobKey, url)
	if err != nil {
		return fmt.Errorf("linking game to scrape url: %w", err)
	}
	return nil
}

// SetDoNotScrape flips the do-not-scrape flag for a URL.
func (s *ScrapeURLStore) SetDoNotScrape(ctx context.Context, url string, value bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scrape_urls SET do_not_scrape = ?, version = version + 1 WHERE url = ?`,
		value, url)
	if err != nil {
		return fmt.Errorf("setting do_not_scrape: %w", err)
	}
	return nil
}

// Gap is a run of tournament ids with no ScrapeURL record.
type Gap struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Gaps reports missing tournament-id ranges for an entity up to the highest
// recorded id. Used by the status report to spot holes in the crawl.
func (s *ScrapeURLStore) Gaps(ctx context.Context, entityID string) ([]Gap, error) {
	var ids []int
	err := s.db.SelectContext(ctx, &ids,
		`SELECT tournament_id FROM scrape_urls WHERE entity_id = ? ORDER BY tournament_id ASC`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("listing tournament ids: %w", err)
	}

	var gaps []Gap
	prev := 0
	for _, id := range ids {
		if id > prev+1 {
			gaps = append(gaps, Gap{Start: prev + 1, End: id - 1})
		}
		if id > prev {
			prev = id
		}
	}
	return gaps, nil
}
