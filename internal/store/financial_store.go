package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// FinancialStore persists game costs and financial snapshots. Both are
// one-per-game upserts: find by game id, update when present, else create.
type FinancialStore struct {
	db *sqlx.DB
}

func NewFinancialStore(db *sqlx.DB) *FinancialStore {
	return &FinancialStore{db: db}
}

// SaveResult reports what an upsert did.
type SaveResult string

const (
	SaveCreated SaveResult = "CREATED"
	SaveUpdated SaveResult = "UPDATED"
)

// GetCost returns the cost record for a game, or ErrNotFound.
func (s *FinancialStore) GetCost(ctx context.Context, gameID string) (*game.GameCost, error) {
	var c game.GameCost
	err := s.db.GetContext(ctx, &c, "SELECT * FROM game_costs WHERE game_id = ?", gameID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting game cost: %w", err)
	}
	return &c, nil
}

// SaveCost upserts the cost record for a game, bumping its version.
func (s *FinancialStore) SaveCost(ctx context.Context, c *game.GameCost) (SaveResult, error) {
	c.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx,
		`UPDATE game_costs SET
			total_dealer_cost = :total_dealer_cost,
			total_tournament_director_cost = :total_tournament_director_cost,
			total_floor_staff_cost = :total_floor_staff_cost,
			total_security_cost = :total_security_cost,
			total_prize_contribution = :total_prize_contribution,
			total_jackpot_contribution = :total_jackpot_contribution,
			total_promotion_cost = :total_promotion_cost,
			total_other_cost = :total_other_cost,
			total_cost = :total_cost,
			updated_at = :updated_at,
			version = version + 1
		 WHERE game_id = :game_id`, c)
	if err != nil {
		return "", fmt.Errorf("updating game cost: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return SaveUpdated, nil
	}

	c.Version = 1
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO game_costs
			(game_id, total_dealer_cost, total_tournament_director_cost,
			 total_floor_staff_cost, total_security_cost, total_prize_contribution,
			 total_jackpot_contribution, total_promotion_cost, total_other_cost,
			 total_cost, updated_at, version)
		 VALUES (:game_id, :total_dealer_cost, :total_tournament_director_cost,
			 :total_floor_staff_cost, :total_security_cost, :total_prize_contribution,
			 :total_jackpot_contribution, :total_promotion_cost, :total_other_cost,
			 :total_cost, :updated_at, :version)`, c)
	if err != nil {
		return "", fmt.Errorf("inserting game cost: %w", err)
	}
	return SaveCreated, nil
}

// GetSnapshot returns the financial snapshot for a game, or ErrNotFound.
func (s *FinancialStore) GetSnapshot(ctx context.Context, gameID string) (*game.FinancialSnapshot, error) {
	var snap game.FinancialSnapshot
	err := s.db.GetContext(ctx, &snap, "SELECT * FROM game_financial_snapshots WHERE game_id = ?", gameID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot upserts the snapshot for a game, bumping its version.
func (s *FinancialStore) SaveSnapshot(ctx context.Context, snap *game.FinancialSnapshot) (SaveResult, error) {
	snap.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx,
		`UPDATE game_financial_snapshots SET
			entries_for_rake = :entries_for_rake,
			rake_revenue = :rake_revenue,
			total_buy_ins_collected = :total_buy_ins_collected,
			prizepool_player_contributions = :prizepool_player_contributions,
			guarantee_overlay_cost = :guarantee_overlay_cost,
			prizepool_added_value = :prizepool_added_value,
			prizepool_surplus = :prizepool_surplus,
			game_profit = :game_profit,
			net_profit = :net_profit,
			venue_fee = :venue_fee,
			guarantee_met = :guarantee_met,
			guarantee_coverage_rate = :guarantee_coverage_rate,
			revenue_per_player = :revenue_per_player,
			rake_per_entry = :rake_per_entry,
			buy_ins_per_player = :buy_ins_per_player,
			game_duration_minutes = :game_duration_minutes,
			dealer_cost_per_hour = :dealer_cost_per_hour,
			is_series = :is_series,
			is_series_parent = :is_series_parent,
			parent_game_id = :parent_game_id,
			entity_series_key = :entity_series_key,
			venue_series_key = :venue_series_key,
			updated_at = :updated_at,
			version = version + 1
		 WHERE game_id = :game_id`, snap)
	if err != nil {
		return "", fmt.Errorf("updating snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return SaveUpdated, nil
	}

	snap.Version = 1
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO game_financial_snapshots
			(game_id, entries_for_rake, rake_revenue, total_buy_ins_collected,
			 prizepool_player_contributions, guarantee_overlay_cost,
			 prizepool_added_value, prizepool_surplus, game_profit, net_profit,
			 venue_fee, guarantee_met, guarantee_coverage_rate,
			 revenue_per_player, rake_per_entry, buy_ins_per_player,
			 game_duration_minutes, dealer_cost_per_hour,
			 is_series, is_series_parent, parent_game_id,
			 entity_series_key, venue_series_key, updated_at, version)
		 VALUES (:game_id, :entries_for_rake, :rake_revenue, :total_buy_ins_collected,
			 :prizepool_player_contributions, :guarantee_overlay_cost,
			 :prizepool_added_value, :prizepool_surplus, :game_profit, :net_profit,
			 :venue_fee, :guarantee_met, :guarantee_coverage_rate,
			 :revenue_per_player, :rake_per_entry, :buy_ins_per_player,
			 :game_duration_minutes, :dealer_cost_per_hour,
			 :is_series, :is_series_parent, :parent_game_id,
			 :entity_series_key, :venue_series_key, :updated_at, :version)`, snap)
	if err != nil {
		return "", fmt.Errorf("inserting snapshot: %w", err)
	}
	return SaveCreated, nil
}
