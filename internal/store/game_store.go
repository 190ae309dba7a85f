package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// ChangeEvent names a game change-feed record type.
type ChangeEvent string

const (
	ChangeInsert ChangeEvent = "INSERT"
	ChangeModify ChangeEvent = "MODIFY"
	ChangeRemove ChangeEvent = "REMOVE"
)

// ChangeRecord is one game store change-feed record.
type ChangeRecord struct {
	EventName ChangeEvent
	NewImage  *game.Game
}

// GameStore persists games and emits change records to an optional hook.
type GameStore struct {
	db *sqlx.DB

	// OnChange, when set, receives a change record after every committed
	// insert or update. Called synchronously on the writing goroutine.
	OnChange func(ChangeRecord)
}

func NewGameStore(db *sqlx.DB) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) emit(event ChangeEvent, g *game.Game) {
	if s.OnChange != nil {
		s.OnChange(ChangeRecord{EventName: event, NewImage: g})
	}
}

const gameColumns = `id, tournament_id, entity_id, venue_id, name,
	game_start_date_time, game_end_date_time, game_status, registration_status,
	game_type, tournament_type, buy_in, rake, rake_revenue,
	total_buy_ins_collected, total_unique_players, total_entries,
	total_initial_entries, total_rebuys, total_addons, prizepool_paid,
	has_guarantee, guarantee_amount, is_series, is_series_parent,
	parent_game_id, tournament_series_id, series_name, event_number,
	day_number, flight_letter, final_day, consolidation_key, do_not_scrape,
	requires_venue_assignment, venue_assignment_status,
	linked_social_post_count, has_linked_social_posts,
	created_at, updated_at, version`

// Create inserts a new game. The caller supplies the ID (or leaves it empty
// for a fresh UUID); timestamps and version are set here.
func (s *GameStore) Create(ctx context.Context, g *game.Game) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	g.Version = 1

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES
		(:id, :tournament_id, :entity_id, :venue_id, :name,
		 :game_start_date_time, :game_end_date_time, :game_status, :registration_status,
		 :game_type, :tournament_type, :buy_in, :rake, :rake_revenue,
		 :total_buy_ins_collected, :total_unique_players, :total_entries,
		 :total_initial_entries, :total_rebuys, :total_addons, :prizepool_paid,
		 :has_guarantee, :guarantee_amount, :is_series, :is_series_parent,
		 :parent_game_id, :tournament_series_id, :series_name, :event_number,
		 :day_number, :flight_letter, :final_day, :consolidation_key, :do_not_scrape,
		 :requires_venue_assignment, :venue_assignment_status,
		 :linked_social_post_count, :has_linked_social_posts,
		 :created_at, :updated_at, :version)`, g)
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}

	s.emit(ChangeInsert, g)
	return nil
}

// Update writes a game back using optimistic concurrency on the version
// read. On success the in-memory version and updated_at are advanced.
func (s *GameStore) Update(ctx context.Context, g *game.Game) error {
	prev := g.Version
	g.UpdatedAt = time.Now().UTC()
	g.Version = prev + 1

	res, err := s.db.NamedExecContext(ctx,
		`UPDATE games SET
			venue_id = :venue_id, name = :name,
			game_start_date_time = :game_start_date_time,
			game_end_date_time = :game_end_date_time,
			game_status = :game_status, registration_status = :registration_status,
			game_type = :game_type, tournament_type = :tournament_type,
			buy_in = :buy_in, rake = :rake, rake_revenue = :rake_revenue,
			total_buy_ins_collected = :total_buy_ins_collected,
			total_unique_players = :total_unique_players,
			total_entries = :total_entries,
			total_initial_entries = :total_initial_entries,
			total_rebuys = :total_rebuys, total_addons = :total_addons,
			prizepool_paid = :prizepool_paid,
			has_guarantee = :has_guarantee, guarantee_amount = :guarantee_amount,
			is_series = :is_series, is_series_parent = :is_series_parent,
			parent_game_id = :parent_game_id,
			tournament_series_id = :tournament_series_id,
			series_name = :series_name, event_number = :event_number,
			day_number = :day_number, flight_letter = :flight_letter,
			final_day = :final_day, consolidation_key = :consolidation_key,
			do_not_scrape = :do_not_scrape,
			requires_venue_assignment = :requires_venue_assignment,
			venue_assignment_status = :venue_assignment_status,
			linked_social_post_count = :linked_social_post_count,
			has_linked_social_posts = :has_linked_social_posts,
			updated_at = :updated_at, version = :version
		 WHERE id = :id AND version = :version - 1`, g)
	if err != nil {
		g.Version = prev
		return fmt.Errorf("updating game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		g.Version = prev
		return fmt.Errorf("updating game: %w", err)
	}
	if n == 0 {
		g.Version = prev
		return ErrVersionConflict
	}

	s.emit(ChangeModify, g)
	return nil
}

// Get returns a game by id, or ErrNotFound.
func (s *GameStore) Get(ctx context.Context, id string) (*game.Game, error) {
	var g game.Game
	err := s.db.GetContext(ctx, &g, "SELECT * FROM games WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &g, nil
}

// GetByTournamentID returns the game scraped from a given source id for an
// entity, or ErrNotFound.
func (s *GameStore) GetByTournamentID(ctx context.Context, entityID string, tournamentID int) (*game.Game, error) {
	var g game.Game
	err := s.db.GetContext(ctx, &g,
		"SELECT * FROM games WHERE entity_id = ? AND tournament_id = ? ORDER BY created_at ASC LIMIT 1",
		entityID, tournamentID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting game by tournament id: %w", err)
	}
	return &g, nil
}

// HighestTournamentID returns the largest source tournament id recorded for
// an entity, or 0 when none exist.
func (s *GameStore) HighestTournamentID(ctx context.Context, entityID string) (int, error) {
	var max sql.NullInt64
	err := s.db.GetContext(ctx, &max,
		"SELECT MAX(tournament_id) FROM games WHERE entity_id = ?", entityID)
	if err != nil {
		return 0, fmt.Errorf("getting highest tournament id: %w", err)
	}
	return int(max.Int64), nil
}

// FindParents returns all parent games for a consolidation key, oldest
// first. More than one is an integrity fault the consolidation engine
// resolves by preferring the oldest.
func (s *GameStore) FindParents(ctx context.Context, key string) ([]game.Game, error) {
	var games []game.Game
	err := s.db.SelectContext(ctx, &games,
		`SELECT * FROM games
		 WHERE consolidation_key = ? AND parent_game_id IS NULL
		 ORDER BY created_at ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("finding parents: %w", err)
	}
	return games, nil
}

// FindSiblings returns the child games sharing a consolidation key,
// ordered by tournament id.
func (s *GameStore) FindSiblings(ctx context.Context, key string) ([]game.Game, error) {
	var games []game.Game
	err := s.db.SelectContext(ctx, &games,
		`SELECT * FROM games
		 WHERE consolidation_key = ? AND is_series_parent = 0
		 ORDER BY tournament_id ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("finding siblings: %w", err)
	}
	return games, nil
}

// FindCandidates returns an entity's games starting within [from, to],
// optionally restricted to a venue. Used by the social matcher's window
// search.
func (s *GameStore) FindCandidates(ctx context.Context, entityID, venueID string, from, to time.Time) ([]game.Game, error) {
	query := `SELECT * FROM games
		 WHERE entity_id = ?
		   AND game_start_date_time IS NOT NULL
		   AND game_start_date_time BETWEEN ? AND ?`
	args := []interface{}{entityID, from, to}
	if venueID != "" {
		query += " AND venue_id = ?"
		args = append(args, venueID)
	}
	query += " ORDER BY game_start_date_time ASC"

	var games []game.Game
	if err := s.db.SelectContext(ctx, &games, query, args...); err != nil {
		return nil, fmt.Errorf("finding candidate games: %w", err)
	}
	return games, nil
}

// RecountSocialLinks recomputes a game's linked-post counters from the
// links table. Counts are recomputed, never adjusted by delta, so repeated
// processing converges. Rejected links are excluded.
func (s *GameStore) RecountSocialLinks(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET
			linked_social_post_count = (
				SELECT COUNT(*) FROM social_post_game_links
				WHERE game_id = ? AND rejected_at IS NULL),
			has_linked_social_posts = (
				SELECT COUNT(*) > 0 FROM social_post_game_links
				WHERE game_id = ? AND rejected_at IS NULL),
			version = version + 1
		 WHERE id = ?`, gameID, gameID, gameID)
	if err != nil {
		return fmt.Errorf("recounting social links: %w", err)
	}
	return nil
}
