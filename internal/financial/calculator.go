package financial

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// Store is the persistence slice the calculator needs.
type Store interface {
	GetCost(ctx context.Context, gameID string) (*game.GameCost, error)
	SaveCost(ctx context.Context, c *game.GameCost) (store.SaveResult, error)
	GetSnapshot(ctx context.Context, gameID string) (*game.FinancialSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *game.FinancialSnapshot) (store.SaveResult, error)
}

// GameSource loads games for calculation by id.
type GameSource interface {
	Get(ctx context.Context, id string) (*game.Game, error)
}

// Calculator projects and persists game financials.
type Calculator struct {
	store Store
	games GameSource
	log   *logrus.Logger
}

func NewCalculator(s Store, games GameSource, log *logrus.Logger) *Calculator {
	return &Calculator{store: s, games: games, log: log}
}

// Result is the outcome of one calculation.
type Result struct {
	Success            bool                    `json:"success"`
	Cost               *game.GameCost          `json:"calculatedCost"`
	Snapshot           *game.FinancialSnapshot `json:"calculatedSnapshot"`
	Summary            string                  `json:"summary"`
	CostSaveResult     store.SaveResult        `json:"costSaveResult,omitempty"`
	SnapshotSaveResult store.SaveResult        `json:"snapshotSaveResult,omitempty"`
}

// Options controls a calculation.
type Options struct {
	SaveToDatabase bool
}

// CalculateByID loads the game and runs Calculate.
func (c *Calculator) CalculateByID(ctx context.Context, gameID string, opts Options) (*Result, error) {
	g, err := c.games.Get(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	return c.Calculate(ctx, g, opts)
}

// Calculate projects the cost and snapshot for a game, optionally saving
// them. The cost is committed before the snapshot.
func (c *Calculator) Calculate(ctx context.Context, g *game.Game, opts Options) (*Result, error) {
	prev, err := c.store.GetCost(ctx, g.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading existing cost: %w", err)
	}

	cost, err := ProjectCost(g, prev)
	if err != nil {
		return nil, err
	}
	snap, err := ProjectSnapshot(g, cost)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Success:  true,
		Cost:     cost,
		Snapshot: snap,
		Summary: fmt.Sprintf("rake %.2f, overlay %.2f, net %.2f",
			snap.RakeRevenue, snap.GuaranteeOverlayCost, snap.NetProfit),
	}

	if !opts.SaveToDatabase {
		return res, nil
	}

	res.CostSaveResult, err = c.store.SaveCost(ctx, cost)
	if err != nil {
		return nil, fmt.Errorf("saving cost: %w", err)
	}
	res.SnapshotSaveResult, err = c.store.SaveSnapshot(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"gameId":   g.ID,
		"cost":     res.CostSaveResult,
		"snapshot": res.SnapshotSaveResult,
	}).Debug("financials saved")

	return res, nil
}
