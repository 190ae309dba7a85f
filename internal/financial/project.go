package financial

import (
	"errors"
	"math"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// DealerRatePerEntry is the flat dealer cost charged per entry.
const DealerRatePerEntry = 15

// ErrMissingGameID is returned when a projection is attempted for a game
// without identity.
var ErrMissingGameID = errors.New("game id is required")

// round2 rounds to two decimal places, the precision all money and ratio
// fields carry.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round2p(v float64) *float64 {
	r := round2(v)
	return &r
}

// ProjectCost derives the cost record for a game. The dealer cost is
// recomputed from entries; every other component is carried over from the
// previous record so manual entries survive recomputes.
func ProjectCost(g *game.Game, prev *game.GameCost) (*game.GameCost, error) {
	if g.ID == "" {
		return nil, ErrMissingGameID
	}

	c := &game.GameCost{GameID: g.ID}
	if prev != nil {
		c.TotalTournamentDirectorCost = prev.TotalTournamentDirectorCost
		c.TotalFloorStaffCost = prev.TotalFloorStaffCost
		c.TotalSecurityCost = prev.TotalSecurityCost
		c.TotalPrizeContribution = prev.TotalPrizeContribution
		c.TotalJackpotContribution = prev.TotalJackpotContribution
		c.TotalPromotionCost = prev.TotalPromotionCost
		c.TotalOtherCost = prev.TotalOtherCost
	}
	c.TotalDealerCost = round2(float64(g.TotalEntries) * DealerRatePerEntry)
	c.TotalCost = round2(c.TotalDealerCost +
		c.TotalTournamentDirectorCost +
		c.TotalFloorStaffCost +
		c.TotalSecurityCost +
		c.TotalPrizeContribution +
		c.TotalJackpotContribution +
		c.TotalPromotionCost +
		c.TotalOtherCost)
	return c, nil
}

// ProjectSnapshot derives the financial snapshot for a game and its cost
// record. Ratio fields are nil, not zero, when their denominator is zero.
func ProjectSnapshot(g *game.Game, cost *game.GameCost) (*game.FinancialSnapshot, error) {
	if g.ID == "" {
		return nil, ErrMissingGameID
	}

	snap := &game.FinancialSnapshot{GameID: g.ID}

	snap.EntriesForRake = g.TotalInitialEntries + g.TotalRebuys
	snap.RakeRevenue = round2(g.Rake * float64(snap.EntriesForRake))
	snap.TotalBuyInsCollected = round2(g.BuyIn * float64(g.TotalEntries))
	snap.PrizepoolPlayerContributions = round2(
		(g.BuyIn-g.Rake)*float64(snap.EntriesForRake) + g.BuyIn*float64(g.TotalAddons))

	switch {
	case g.HasGuarantee && g.GuaranteeAmount > snap.PrizepoolPlayerContributions:
		snap.GuaranteeOverlayCost = round2(g.GuaranteeAmount - snap.PrizepoolPlayerContributions)
		snap.PrizepoolAddedValue = snap.GuaranteeOverlayCost
		snap.PrizepoolSurplus = nil
	case g.HasGuarantee:
		snap.GuaranteeOverlayCost = 0
		snap.PrizepoolAddedValue = 0
		snap.PrizepoolSurplus = round2p(snap.PrizepoolPlayerContributions - g.GuaranteeAmount)
	default:
		snap.GuaranteeOverlayCost = 0
		snap.PrizepoolAddedValue = 0
		snap.PrizepoolSurplus = nil
	}

	snap.GameProfit = round2(snap.RakeRevenue - snap.GuaranteeOverlayCost)
	snap.NetProfit = round2(snap.RakeRevenue + snap.VenueFee - cost.TotalCost - snap.GuaranteeOverlayCost)
	snap.GuaranteeMet = snap.GuaranteeOverlayCost == 0

	if g.GuaranteeAmount > 0 {
		snap.GuaranteeCoverageRate = round2p(snap.PrizepoolPlayerContributions / g.GuaranteeAmount)
	}
	if g.TotalUniquePlayers > 0 {
		snap.RevenuePerPlayer = round2p(snap.RakeRevenue / float64(g.TotalUniquePlayers))
		snap.BuyInsPerPlayer = round2p(snap.TotalBuyInsCollected / float64(g.TotalUniquePlayers))
	}
	if snap.EntriesForRake > 0 {
		snap.RakePerEntry = round2p(snap.RakeRevenue / float64(snap.EntriesForRake))
	}

	if minutes := durationMinutes(g.GameStartDateTime, g.GameEndDateTime); minutes != nil {
		snap.GameDurationMinutes = minutes
		if *minutes > 0 {
			snap.DealerCostPerHour = round2p(cost.TotalDealerCost / (float64(*minutes) / 60))
		}
	}

	snap.IsSeries = g.IsSeries
	snap.IsSeriesParent = g.IsSeriesParent
	snap.ParentGameID = g.ParentGameID
	snap.EntitySeriesKey = g.EntityID + "#" + seriesTag(g.IsSeries)
	snap.VenueSeriesKey = g.VenueID + "#" + seriesTag(g.IsSeries)

	return snap, nil
}

func seriesTag(isSeries bool) string {
	if isSeries {
		return "SERIES"
	}
	return "REGULAR"
}

func durationMinutes(start, end *time.Time) *int {
	if start == nil || end == nil || end.Before(*start) {
		return nil
	}
	m := int(math.Round(end.Sub(*start).Minutes()))
	return &m
}
