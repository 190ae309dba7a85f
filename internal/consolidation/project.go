package consolidation

import (
	"strings"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// Projection is the aggregate view over a candidate and its siblings,
// computed before commit so preview and commit agree.
type Projection struct {
	TotalUniquePlayers  int         `json:"totalUniquePlayers"`
	TotalInitialEntries int         `json:"totalInitialEntries"`
	TotalRebuys         int         `json:"totalRebuys"`
	TotalAddons         int         `json:"totalAddons"`
	TotalEntries        int         `json:"totalEntries"`
	PrizepoolPaid       float64     `json:"prizepoolPaid"`
	EarliestStart       *time.Time  `json:"earliestStart,omitempty"`
	LatestEnd           *time.Time  `json:"latestEnd,omitempty"`
	ProjectedStatus     game.Status `json:"projectedStatus"`
	IsPartialData       bool        `json:"isPartialData"`
	MissingFlightCount  int         `json:"missingFlightCount"`
}

// sibling is a uniform view over the candidate and stored siblings.
type sibling struct {
	uniquePlayers  int
	initialEntries int
	rebuys         int
	addons         int
	entries        int
	prizepoolPaid  float64
	start          *time.Time
	end            *time.Time
	status         game.Status
	finalDay       bool
	flightLetter   string
	playersHint    *int
}

// Project computes the aggregate totals for the group formed by candidate
// plus siblings. The candidate may already exist among the siblings (on
// reprocessing); callers pass siblings excluding the candidate's own row.
func Project(candidate *game.GameData, siblings []game.Game) Projection {
	group := make([]sibling, 0, len(siblings)+1)
	group = append(group, sibling{
		uniquePlayers:  candidate.TotalUniquePlayers,
		initialEntries: candidate.TotalInitialEntries,
		rebuys:         candidate.TotalRebuys,
		addons:         candidate.TotalAddons,
		entries:        candidate.TotalEntries,
		prizepoolPaid:  candidate.PrizepoolPaid,
		start:          candidate.GameStartDateTime,
		end:            candidate.GameEndDateTime,
		status:         candidate.GameStatus,
		finalDay:       candidate.FinalDay,
		flightLetter:   strings.ToUpper(candidate.FlightLetter),
		playersHint:    candidate.UniquePlayersHint,
	})
	for i := range siblings {
		s := &siblings[i]
		group = append(group, sibling{
			uniquePlayers:  s.TotalUniquePlayers,
			initialEntries: s.TotalInitialEntries,
			rebuys:         s.TotalRebuys,
			addons:         s.TotalAddons,
			entries:        s.TotalEntries,
			prizepoolPaid:  s.PrizepoolPaid,
			start:          s.GameStartDateTime,
			end:            s.GameEndDateTime,
			status:         s.GameStatus,
			finalDay:       s.FinalDay,
			flightLetter:   strings.ToUpper(s.FlightLetter),
		})
	}

	var p Projection
	var maxFinalPrizepool float64
	var prizepoolSum float64
	anyFinalPrizepool := false

	for _, s := range group {
		p.TotalUniquePlayers += s.uniquePlayers
		p.TotalInitialEntries += s.initialEntries
		p.TotalRebuys += s.rebuys
		p.TotalAddons += s.addons
		p.TotalEntries += s.entries

		if s.finalDay {
			anyFinalPrizepool = true
			if s.prizepoolPaid > maxFinalPrizepool {
				maxFinalPrizepool = s.prizepoolPaid
			}
		}
		prizepoolSum += s.prizepoolPaid

		if s.start != nil && (p.EarliestStart == nil || s.start.Before(*p.EarliestStart)) {
			t := *s.start
			p.EarliestStart = &t
		}
		if s.end != nil && (p.LatestEnd == nil || s.end.After(*p.LatestEnd)) {
			t := *s.end
			p.LatestEnd = &t
		}
	}

	// A cross-flight dedup hint from the parser beats the sum.
	if hint := candidate.UniquePlayersHint; hint != nil {
		p.TotalUniquePlayers = *hint
	}

	if anyFinalPrizepool {
		p.PrizepoolPaid = maxFinalPrizepool
	} else {
		p.PrizepoolPaid = prizepoolSum
	}

	p.ProjectedStatus = projectStatus(group)
	p.IsPartialData, p.MissingFlightCount = flightGaps(group)

	return p
}

// projectStatus derives the parent status: finished once the final day
// finished, running while any flight is live, scheduled otherwise.
func projectStatus(group []sibling) game.Status {
	for _, s := range group {
		if s.finalDay && s.status == game.StatusFinished {
			return game.StatusFinished
		}
	}
	for _, s := range group {
		if s.status.Active() {
			return game.StatusRunning
		}
	}
	return game.StatusScheduled
}

// flightGaps reports whether the observed flight letters imply missing
// flights. Letters form an ordered set from A; a group with flights A and C
// is missing B.
func flightGaps(group []sibling) (partial bool, missing int) {
	seen := make(map[byte]bool)
	var maxLetter byte
	for _, s := range group {
		if len(s.flightLetter) != 1 {
			continue
		}
		c := s.flightLetter[0]
		if c < 'A' || c > 'Z' {
			continue
		}
		seen[c] = true
		if c > maxLetter {
			maxLetter = c
		}
	}
	if len(seen) == 0 {
		return false, 0
	}

	expected := int(maxLetter-'A') + 1
	missing = expected - len(seen)
	return missing > 0, missing
}

