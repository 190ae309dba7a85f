package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrAlreadyRunning is returned when the per-entity run lock is held.
var ErrAlreadyRunning = errors.New("scraper already running")

// AutoScraperState is the persisted per-entity scraper singleton. The
// is_running flag is the run lock: acquisition is a compare-and-set on the
// stored row, never an in-process mutex.
type AutoScraperState struct {
	EntityID              string    `db:"entity_id" json:"entityId"`
	IsRunning             bool      `db:"is_running" json:"isRunning"`
	Enabled               bool      `db:"enabled" json:"enabled"`
	LastScannedID         int       `db:"last_scanned_id" json:"lastScannedId"`
	ConsecutiveBlankCount int       `db:"consecutive_blank_count" json:"consecutiveBlankCount"`
	TotalScraped          int       `db:"total_scraped" json:"totalScraped"`
	TotalErrors           int       `db:"total_errors" json:"totalErrors"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`
	Version               int       `db:"version" json:"version"`
}

// JobStatus is a scraper job's lifecycle state.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// ScraperJob accumulates per-run accounting.
type ScraperJob struct {
	ID                 string     `db:"id" json:"id"`
	EntityID           string     `db:"entity_id" json:"entityId"`
	Status             JobStatus  `db:"status" json:"status"`
	NewGamesScraped    int        `db:"new_games_scraped" json:"newGamesScraped"`
	GamesUpdated       int        `db:"games_updated" json:"gamesUpdated"`
	GamesSkipped       int        `db:"games_skipped" json:"gamesSkipped"`
	Errors             int        `db:"errors" json:"errors"`
	Blanks             int        `db:"blanks" json:"blanks"`
	TotalURLsProcessed int        `db:"total_urls_processed" json:"totalUrlsProcessed"`
	StartTime          *time.Time `db:"start_time" json:"startTime,omitempty"`
	EndTime            *time.Time `db:"end_time" json:"endTime,omitempty"`
	DurationSeconds    float64    `db:"duration_seconds" json:"durationSeconds"`
	ErrorMessage       *string    `db:"error_message" json:"errorMessage,omitempty"`
}

// ScraperStore persists the auto-scraper state singleton and job records.
type ScraperStore struct {
	db *sqlx.DB
}

func NewScraperStore(db *sqlx.DB) *ScraperStore {
	return &ScraperStore{db: db}
}

// GetState returns the state singleton for an entity, creating a default
// enabled row on first touch.
func (s *ScraperStore) GetState(ctx context.Context, entityID string) (*AutoScraperState, error) {
	var st AutoScraperState
	err := s.db.GetContext(ctx, &st, "SELECT * FROM scraper_state WHERE entity_id = ?", entityID)
	if err == sql.ErrNoRows {
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO scraper_state (entity_id, updated_at) VALUES (?, ?)",
			entityID, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("creating scraper state: %w", err)
		}
		err = s.db.GetContext(ctx, &st, "SELECT * FROM scraper_state WHERE entity_id = ?", entityID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting scraper state: %w", err)
	}
	return &st, nil
}

// TryAcquireRun atomically flips is_running from false to true. Returns
// ErrAlreadyRunning when another invocation holds the lock.
func (s *ScraperStore) TryAcquireRun(ctx context.Context, entityID string) error {
	if _, err := s.GetState(ctx, entityID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scraper_state SET is_running = 1, updated_at = ?, version = version + 1
		 WHERE entity_id = ? AND is_running = 0`,
		time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if n == 0 {
		return ErrAlreadyRunning
	}
	return nil
}

// ReleaseRun clears is_running unconditionally. Safe to call from a
// finally path after a crash-interrupted run.
func (s *ScraperStore) ReleaseRun(ctx context.Context, entityID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_state SET is_running = 0, updated_at = ?, version = version + 1
		 WHERE entity_id = ?`,
		time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled flag.
func (s *ScraperStore) SetEnabled(ctx context.Context, entityID string, enabled bool) error {
	if _, err := s.GetState(ctx, entityID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_state SET enabled = ?, updated_at = ?, version = version + 1
		 WHERE entity_id = ?`,
		enabled, time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("setting enabled: %w", err)
	}
	return nil
}

// SaveProgress persists the walk counters after each processed URL.
func (s *ScraperStore) SaveProgress(ctx context.Context, st *AutoScraperState) error {
	st.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx,
		`UPDATE scraper_state SET
			last_scanned_id = :last_scanned_id,
			consecutive_blank_count = :consecutive_blank_count,
			total_scraped = :total_scraped,
			total_errors = :total_errors,
			updated_at = :updated_at,
			version = version + 1
		 WHERE entity_id = :entity_id`, st)
	if err != nil {
		return fmt.Errorf("saving scraper progress: %w", err)
	}
	return nil
}

// Reset zeroes the walk counters, keeping the enabled flag.
func (s *ScraperStore) Reset(ctx context.Context, entityID string) error {
	if _, err := s.GetState(ctx, entityID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_state SET
			last_scanned_id = 0, consecutive_blank_count = 0,
			total_scraped = 0, total_errors = 0,
			updated_at = ?, version = version + 1
		 WHERE entity_id = ?`,
		time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("resetting scraper state: %w", err)
	}
	return nil
}

// CreateJob inserts a queued job and returns it.
func (s *ScraperStore) CreateJob(ctx context.Context, entityID string) (*ScraperJob, error) {
	job := &ScraperJob{
		ID:       uuid.NewString(),
		EntityID: entityID,
		Status:   JobQueued,
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO scraper_jobs (id, entity_id, status)
		 VALUES (:id, :entity_id, :status)`, job)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return job, nil
}

// SaveJob writes a job's accounting and status back.
func (s *ScraperStore) SaveJob(ctx context.Context, job *ScraperJob) error {
	_, err := s.db.NamedExecContext(ctx,
		`UPDATE scraper_jobs SET
			status = :status,
			new_games_scraped = :new_games_scraped,
			games_updated = :games_updated,
			games_skipped = :games_skipped,
			errors = :errors,
			blanks = :blanks,
			total_urls_processed = :total_urls_processed,
			start_time = :start_time,
			end_time = :end_time,
			duration_seconds = :duration_seconds,
			error_message = :error_message
		 WHERE id = :id`, job)
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob returns a job by id, or ErrNotFound.
func (s *ScraperStore) GetJob(ctx context.Context, id string) (*ScraperJob, error) {
	var job ScraperJob
	err := s.db.GetContext(ctx, &job, "SELECT * FROM scraper_jobs WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &job, nil
}
