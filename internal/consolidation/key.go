package consolidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// Strategy names a consolidation key strategy, ordered by confidence.
type Strategy string

const (
	StrategySeriesEvent       Strategy = "SERIES_EVENT"
	StrategyEntitySeriesEvent Strategy = "ENTITY_SERIES_EVENT"
	StrategyVenueEventDate    Strategy = "VENUE_EVENT_DATE"
	StrategyVenueBuyInDate    Strategy = "VENUE_BUYIN_DATE"
)

// LowConfidenceWarning is attached whenever the fallback strategy fires.
const LowConfidenceWarning = "low-confidence grouping"

// Key is a derived consolidation key.
type Key struct {
	Key        string   `json:"key"`
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
	Warnings   []string `json:"warnings,omitempty"`
}

// BuildKey derives the consolidation key for a candidate, trying strategies
// in confidence order. Returns nil when no strategy applies, meaning the
// candidate stands alone. Date partitions are derived in loc so same-day
// flights never straddle a month or day boundary.
func BuildKey(d *game.GameData, loc *time.Location) *Key {
	if d.TournamentSeriesID != "" && d.EventNumber != nil {
		return &Key{
			Key:        fmt.Sprintf("SERIES_%s_EVT_%d", d.TournamentSeriesID, *d.EventNumber),
			Strategy:   StrategySeriesEvent,
			Confidence: 1.00,
		}
	}

	if d.EntityID != "" && d.SeriesName != "" && d.EventNumber != nil && d.GameStartDateTime != nil {
		return &Key{
			Key: fmt.Sprintf("ENT_%s_SER_%s_EVT_%d_DT_%s",
				d.EntityID, normalizeSeriesName(d.SeriesName), *d.EventNumber,
				d.GameStartDateTime.In(loc).Format("2006-01")),
			Strategy:   StrategyEntitySeriesEvent,
			Confidence: 0.95,
		}
	}

	if d.VenueID != "" && d.EventNumber != nil && d.BuyIn > 0 && d.GameStartDateTime != nil {
		return &Key{
			Key: fmt.Sprintf("VEN_%s_EVT_%d_BI_%s_DT_%s",
				d.VenueID, *d.EventNumber, formatAmount(d.BuyIn),
				d.GameStartDateTime.In(loc).Format("2006-01")),
			Strategy:   StrategyVenueEventDate,
			Confidence: 0.90,
		}
	}

	if d.VenueID != "" && d.BuyIn > 0 && d.GameStartDateTime != nil {
		return &Key{
			Key: fmt.Sprintf("VEN_%s_BI_%s_DT_%s",
				d.VenueID, formatAmount(d.BuyIn),
				d.GameStartDateTime.In(loc).Format("2006-01-02")),
			Strategy:   StrategyVenueBuyInDate,
			Confidence: 0.70,
			Warnings:   []string{LowConfidenceWarning},
		}
	}

	return nil
}

// normalizeSeriesName uppercases and strips non-alphanumerics so spelling
// drift between flights maps to one key.
func normalizeSeriesName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatAmount renders a buy-in without a trailing .00 for whole amounts.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
