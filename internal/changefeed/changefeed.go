// Package changefeed reacts to game store change records.
//
// The game store calls the consumer synchronously after every committed
// write. Inserts and modifications trigger a financial recompute for the
// changed game; removals and unpublished games are skipped.
package changefeed

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/financial"
	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// FinancialCalculator recomputes financials for one game.
type FinancialCalculator interface {
	Calculate(ctx context.Context, g *game.Game, opts financial.Options) (*financial.Result, error)
}

// Consumer applies change records.
type Consumer struct {
	calc FinancialCalculator
	log  *logrus.Logger
}

func NewConsumer(calc FinancialCalculator, log *logrus.Logger) *Consumer {
	return &Consumer{calc: calc, log: log}
}

// Handle processes one change record. Failures are logged, not returned:
// a financial recompute must never fail the write that triggered it.
func (c *Consumer) Handle(rec store.ChangeRecord) {
	if rec.EventName == store.ChangeRemove || rec.NewImage == nil {
		return
	}
	if rec.NewImage.GameStatus == game.StatusNotPublished {
		return
	}

	_, err := c.calc.Calculate(context.Background(), rec.NewImage, financial.Options{SaveToDatabase: true})
	if err != nil {
		c.log.WithError(err).WithField("gameId", rec.NewImage.ID).
			Error("financial recompute from change feed failed")
	}
}
