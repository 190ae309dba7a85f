package financial

import (
	"testing"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

func TestProjectCost(t *testing.T) {
	g := &game.Game{ID: "g1", TotalEntries: 45}

	t.Run("dealer cost always recomputed", func(t *testing.T) {
		prev := &game.GameCost{
			GameID:                      "g1",
			TotalDealerCost:             999,
			TotalTournamentDirectorCost: 200,
			TotalFloorStaffCost:         150,
			TotalPromotionCost:          50,
		}
		c, err := ProjectCost(g, prev)
		if err != nil {
			t.Fatal(err)
		}
		if c.TotalDealerCost != 675 {
			t.Errorf("TotalDealerCost = %v, want 45*15 = 675", c.TotalDealerCost)
		}
		if c.TotalTournamentDirectorCost != 200 || c.TotalFloorStaffCost != 150 || c.TotalPromotionCost != 50 {
			t.Error("manual cost components not carried over")
		}
		if c.TotalCost != 1075 {
			t.Errorf("TotalCost = %v, want 1075", c.TotalCost)
		}
	})

	t.Run("no previous record", func(t *testing.T) {
		c, err := ProjectCost(g, nil)
		if err != nil {
			t.Fatal(err)
		}
		if c.TotalCost != 675 {
			t.Errorf("TotalCost = %v, want dealer cost only", c.TotalCost)
		}
	})

	t.Run("missing game id", func(t *testing.T) {
		if _, err := ProjectCost(&game.Game{}, nil); err != ErrMissingGameID {
			t.Errorf("err = %v, want ErrMissingGameID", err)
		}
	})
}

func TestProjectSnapshotOverlay(t *testing.T) {
	g := &game.Game{
		ID:                  "g1",
		EntityID:            "E1",
		BuyIn:               100,
		Rake:                15,
		TotalInitialEntries: 30,
		TotalRebuys:         10,
		TotalAddons:         5,
		TotalEntries:        45,
		HasGuarantee:        true,
		GuaranteeAmount:     5000,
	}
	cost, err := ProjectCost(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := ProjectSnapshot(g, cost)
	if err != nil {
		t.Fatal(err)
	}

	if snap.EntriesForRake != 40 {
		t.Errorf("EntriesForRake = %d, want 40 (addons bypass rake)", snap.EntriesForRake)
	}
	if snap.RakeRevenue != 600 {
		t.Errorf("RakeRevenue = %v, want 600", snap.RakeRevenue)
	}
	if snap.PrizepoolPlayerContributions != 3900 {
		t.Errorf("PrizepoolPlayerContributions = %v, want 3900", snap.PrizepoolPlayerContributions)
	}
	if snap.GuaranteeOverlayCost != 1100 {
		t.Errorf("GuaranteeOverlayCost = %v, want 1100", snap.GuaranteeOverlayCost)
	}
	if snap.PrizepoolAddedValue != 1100 {
		t.Errorf("PrizepoolAddedValue = %v, want 1100", snap.PrizepoolAddedValue)
	}
	if snap.PrizepoolSurplus != nil {
		t.Errorf("PrizepoolSurplus = %v, want nil during overlay", *snap.PrizepoolSurplus)
	}
	if snap.GameProfit != -500 {
		t.Errorf("GameProfit = %v, want -500", snap.GameProfit)
	}
	if snap.GuaranteeMet {
		t.Error("GuaranteeMet = true, want false")
	}
	if snap.GuaranteeCoverageRate == nil || *snap.GuaranteeCoverageRate != 0.78 {
		t.Errorf("GuaranteeCoverageRate = %v, want 0.78", snap.GuaranteeCoverageRate)
	}
	if snap.TotalBuyInsCollected != 4500 {
		t.Errorf("TotalBuyInsCollected = %v, want 4500", snap.TotalBuyInsCollected)
	}
}

func TestProjectSnapshotGuaranteeExactlyMet(t *testing.T) {
	// Contributions: (100-10)*50 = 4500, equal to the guarantee.
	g := &game.Game{
		ID:                  "g1",
		BuyIn:               100,
		Rake:                10,
		TotalInitialEntries: 50,
		TotalEntries:        50,
		HasGuarantee:        true,
		GuaranteeAmount:     4500,
	}
	cost, _ := ProjectCost(g, nil)
	snap, err := ProjectSnapshot(g, cost)
	if err != nil {
		t.Fatal(err)
	}

	if snap.GuaranteeOverlayCost != 0 {
		t.Errorf("GuaranteeOverlayCost = %v, want 0", snap.GuaranteeOverlayCost)
	}
	if snap.PrizepoolSurplus == nil {
		t.Fatal("PrizepoolSurplus = nil, want 0 when guarantee exactly met")
	}
	if *snap.PrizepoolSurplus != 0 {
		t.Errorf("PrizepoolSurplus = %v, want 0", *snap.PrizepoolSurplus)
	}
	if !snap.GuaranteeMet {
		t.Error("GuaranteeMet = false, want true")
	}
}

func TestProjectSnapshotZeroEntries(t *testing.T) {
	g := &game.Game{ID: "g1", BuyIn: 100, Rake: 15}
	cost, _ := ProjectCost(g, nil)
	snap, err := ProjectSnapshot(g, cost)
	if err != nil {
		t.Fatal(err)
	}

	if snap.RevenuePerPlayer != nil {
		t.Errorf("RevenuePerPlayer = %v, want nil", *snap.RevenuePerPlayer)
	}
	if snap.BuyInsPerPlayer != nil {
		t.Errorf("BuyInsPerPlayer = %v, want nil", *snap.BuyInsPerPlayer)
	}
	if snap.RakePerEntry != nil {
		t.Errorf("RakePerEntry = %v, want nil", *snap.RakePerEntry)
	}
	if snap.GuaranteeCoverageRate != nil {
		t.Errorf("GuaranteeCoverageRate = %v, want nil without guarantee", *snap.GuaranteeCoverageRate)
	}
}

func TestProjectSnapshotDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(5*time.Hour + 30*time.Minute)

	g := &game.Game{
		ID:                  "g1",
		TotalInitialEntries: 44,
		TotalEntries:        44,
		GameStartDateTime:   &start,
		GameEndDateTime:     &end,
	}
	cost, _ := ProjectCost(g, nil)
	snap, err := ProjectSnapshot(g, cost)
	if err != nil {
		t.Fatal(err)
	}

	if snap.GameDurationMinutes == nil || *snap.GameDurationMinutes != 330 {
		t.Errorf("GameDurationMinutes = %v, want 330", snap.GameDurationMinutes)
	}
	// 44*15 = 660 dealer cost over 5.5 hours.
	if snap.DealerCostPerHour == nil || *snap.DealerCostPerHour != 120 {
		t.Errorf("DealerCostPerHour = %v, want 120", snap.DealerCostPerHour)
	}

	t.Run("missing end time", func(t *testing.T) {
		g2 := &game.Game{ID: "g1", GameStartDateTime: &start}
		snap2, _ := ProjectSnapshot(g2, cost)
		if snap2.GameDurationMinutes != nil {
			t.Errorf("GameDurationMinutes = %v, want nil", *snap2.GameDurationMinutes)
		}
	})
}

func TestProjectSnapshotSeriesKeys(t *testing.T) {
	parentID := "p1"
	g := &game.Game{
		ID:             "g1",
		EntityID:       "E1",
		VenueID:        "V1",
		IsSeries:       true,
		IsSeriesParent: false,
		ParentGameID:   &parentID,
	}
	cost, _ := ProjectCost(g, nil)
	snap, err := ProjectSnapshot(g, cost)
	if err != nil {
		t.Fatal(err)
	}

	if snap.EntitySeriesKey != "E1#SERIES" {
		t.Errorf("EntitySeriesKey = %q, want E1#SERIES", snap.EntitySeriesKey)
	}
	if snap.VenueSeriesKey != "V1#SERIES" {
		t.Errorf("VenueSeriesKey = %q, want V1#SERIES", snap.VenueSeriesKey)
	}
	if snap.ParentGameID == nil || *snap.ParentGameID != "p1" {
		t.Error("ParentGameID not carried onto snapshot")
	}

	t.Run("regular game", func(t *testing.T) {
		g2 := &game.Game{ID: "g2", EntityID: "E1", VenueID: "V1"}
		snap2, _ := ProjectSnapshot(g2, cost)
		if snap2.EntitySeriesKey != "E1#REGULAR" {
			t.Errorf("EntitySeriesKey = %q, want E1#REGULAR", snap2.EntitySeriesKey)
		}
	})
}
