package social

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// Match reasons, named after the dominant signal.
const (
	ReasonSeriesEventExact = "SERIES_EVENT_EXACT"
	ReasonTournamentID     = "TOURNAMENT_ID_EXACT"
	ReasonBuyInDateVenue   = "BUYIN_DATE_VENUE"
	ReasonNameDate         = "NAME_DATE"
	ReasonWeakOverlap      = "WEAK_OVERLAP"
)

// Signal weights. The tournament id is near-authoritative; the rest
// combine.
const (
	weightTournamentID = 0.95
	weightSeriesEvent  = 0.50
	weightBuyIn        = 0.25
	weightDate         = 0.20
	weightVenue        = 0.15
	weightName         = 0.20
	weightEntries      = 0.10
)

// Candidate is one ranked game for a post.
type Candidate struct {
	Game            game.Game `json:"game"`
	MatchConfidence float64   `json:"matchConfidence"`
	MatchReason     string    `json:"matchReason"`
	IsPrimaryMatch  bool      `json:"isPrimaryMatch"`
	WouldAutoLink   bool      `json:"wouldAutoLink"`
}

// CandidateSource enumerates games in a window for an entity.
type CandidateSource interface {
	FindCandidates(ctx context.Context, entityID, venueID string, from, to time.Time) ([]game.Game, error)
}

// Ranker scores extracted signals against candidate games.
type Ranker struct {
	games      CandidateSource
	windowDays int
	threshold  float64
}

func NewRanker(games CandidateSource, windowDays int, autoLinkThreshold float64) *Ranker {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Ranker{games: games, windowDays: windowDays, threshold: autoLinkThreshold}
}

// Rank enumerates and scores candidates for a post's signals. anchor is
// the post date; the extracted event date takes precedence when present.
func (r *Ranker) Rank(ctx context.Context, entityID, venueID string, sig Signals, anchor time.Time) ([]Candidate, error) {
	center := anchor
	if sig.Data.EventDate != nil {
		center = *sig.Data.EventDate
	}
	window := time.Duration(r.windowDays) * 24 * time.Hour
	rows, err := r.games.FindCandidates(ctx, entityID, venueID, center.Add(-window), center.Add(window))
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, g := range rows {
		conf, reason := score(&g, sig, center, venueID)
		if conf <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Game:            g,
			MatchConfidence: conf,
			MatchReason:     reason,
			WouldAutoLink:   conf >= r.threshold,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchConfidence > candidates[j].MatchConfidence
	})
	if len(candidates) > 0 {
		candidates[0].IsPrimaryMatch = true
	}
	return candidates, nil
}

// score computes the weighted match confidence for one game against the
// extracted signals and names the dominant signal.
func score(g *game.Game, sig Signals, center time.Time, venueID string) (float64, string) {
	d := sig.Data
	var conf float64
	reason := ReasonWeakOverlap

	if d.TournamentID != nil && *d.TournamentID == g.TournamentID {
		conf += weightTournamentID
		reason = ReasonTournamentID
	}

	seriesHit := d.SeriesName != nil && g.SeriesName != "" &&
		tokenOverlap(*d.SeriesName, g.SeriesName) >= 0.5
	eventHit := d.EventNumber != nil && g.EventNumber != nil && *d.EventNumber == *g.EventNumber
	if seriesHit && eventHit {
		conf += weightSeriesEvent
		if reason == ReasonWeakOverlap {
			reason = ReasonSeriesEventExact
		}
	} else if eventHit {
		conf += weightSeriesEvent / 2
	}

	buyInHit := d.BuyIn != nil && closeAmount(*d.BuyIn, g.BuyIn+g.Rake) || d.BuyIn != nil && closeAmount(*d.BuyIn, g.BuyIn)
	if buyInHit {
		conf += weightBuyIn
	}

	dateHit := g.GameStartDateTime != nil && sameDay(*g.GameStartDateTime, center)
	if dateHit {
		conf += weightDate
	}

	// The caller resolves the venue hint to an id before ranking.
	venueHit := venueID != "" && g.VenueID == venueID
	if venueHit {
		conf += weightVenue
	}
	if buyInHit && dateHit && reason == ReasonWeakOverlap {
		reason = ReasonBuyInDateVenue
	}

	nameHit := d.SeriesName != nil && tokenOverlap(*d.SeriesName, g.Name) >= 0.5
	if nameHit {
		conf += weightName
		if dateHit && reason == ReasonWeakOverlap {
			reason = ReasonNameDate
		}
	}

	if d.TotalEntries != nil && g.TotalEntries > 0 &&
		math.Abs(float64(*d.TotalEntries-g.TotalEntries)) <= float64(g.TotalEntries)/20 {
		conf += weightEntries
	}

	return clamp01(conf), reason
}

// tokenOverlap is the share of a's tokens present in b.
func tokenOverlap(a, b string) float64 {
	at := tokens(a)
	if len(at) == 0 {
		return 0
	}
	bt := make(map[string]bool)
	for _, t := range tokens(b) {
		bt[t] = true
	}
	hits := 0
	for _, t := range at {
		if bt[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(at))
}

func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// closeAmount tolerates small rounding drift between a post's advertised
// amount and the stored one.
func closeAmount(a, b float64) bool {
	if b == 0 {
		return false
	}
	return math.Abs(a-b) <= math.Max(1, b*0.02)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
