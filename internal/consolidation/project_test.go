package consolidation

import (
	"testing"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

func TestProjectSums(t *testing.T) {
	loc := sydney(t)
	d1Start := time.Date(2024, 3, 1, 18, 0, 0, 0, loc)
	d2Start := time.Date(2024, 3, 2, 12, 0, 0, 0, loc)
	d2End := time.Date(2024, 3, 2, 23, 30, 0, 0, loc)

	candidate := &game.GameData{
		Name:                "Main Event Day 2",
		GameStartDateTime:   &d2Start,
		GameEndDateTime:     &d2End,
		GameStatus:          game.StatusRunning,
		TotalUniquePlayers:  40,
		TotalInitialEntries: 40,
		TotalRebuys:         5,
		TotalAddons:         10,
		TotalEntries:        45,
	}
	siblings := []game.Game{
		{
			Name:                "Main Event Day 1",
			GameStartDateTime:   &d1Start,
			GameStatus:          game.StatusFinished,
			TotalUniquePlayers:  60,
			TotalInitialEntries: 60,
			TotalRebuys:         12,
			TotalAddons:         20,
			TotalEntries:        72,
			PrizepoolPaid:       5000,
		},
	}

	p := Project(candidate, siblings)

	if p.TotalUniquePlayers != 100 {
		t.Errorf("TotalUniquePlayers = %d, want 100", p.TotalUniquePlayers)
	}
	if p.TotalInitialEntries != 100 {
		t.Errorf("TotalInitialEntries = %d, want 100", p.TotalInitialEntries)
	}
	if p.TotalRebuys != 17 {
		t.Errorf("TotalRebuys = %d, want 17", p.TotalRebuys)
	}
	if p.TotalAddons != 30 {
		t.Errorf("TotalAddons = %d, want 30", p.TotalAddons)
	}
	if p.TotalEntries != 117 {
		t.Errorf("TotalEntries = %d, want 117", p.TotalEntries)
	}
	if p.EarliestStart == nil || !p.EarliestStart.Equal(d1Start) {
		t.Errorf("EarliestStart = %v, want %v", p.EarliestStart, d1Start)
	}
	if p.LatestEnd == nil || !p.LatestEnd.Equal(d2End) {
		t.Errorf("LatestEnd = %v, want %v", p.LatestEnd, d2End)
	}
	if p.ProjectedStatus != game.StatusRunning {
		t.Errorf("ProjectedStatus = %q, want RUNNING", p.ProjectedStatus)
	}
}

func TestProjectPlayersHintWins(t *testing.T) {
	candidate := &game.GameData{
		Name:               "Main Event Day 2",
		TotalUniquePlayers: 40,
		UniquePlayersHint:  intp(85),
	}
	siblings := []game.Game{{TotalUniquePlayers: 60}}

	p := Project(candidate, siblings)
	if p.TotalUniquePlayers != 85 {
		t.Errorf("TotalUniquePlayers = %d, want hint value 85", p.TotalUniquePlayers)
	}
}

func TestProjectPrizepool(t *testing.T) {
	t.Run("max of final day when present", func(t *testing.T) {
		candidate := &game.GameData{Name: "Final Day", FinalDay: true, PrizepoolPaid: 25000}
		siblings := []game.Game{
			{PrizepoolPaid: 5000},
			{PrizepoolPaid: 6000},
		}
		p := Project(candidate, siblings)
		if p.PrizepoolPaid != 25000 {
			t.Errorf("PrizepoolPaid = %v, want 25000", p.PrizepoolPaid)
		}
	})

	t.Run("sum when no final day yet", func(t *testing.T) {
		candidate := &game.GameData{Name: "Day 2", PrizepoolPaid: 6000}
		siblings := []game.Game{{PrizepoolPaid: 5000}}
		p := Project(candidate, siblings)
		if p.PrizepoolPaid != 11000 {
			t.Errorf("PrizepoolPaid = %v, want 11000", p.PrizepoolPaid)
		}
	})
}

func TestProjectStatus(t *testing.T) {
	tests := []struct {
		name      string
		candidate game.GameData
		siblings  []game.Game
		want      game.Status
	}{
		{
			name:      "final day finished trumps live flights",
			candidate: game.GameData{FinalDay: true, GameStatus: game.StatusFinished},
			siblings:  []game.Game{{GameStatus: game.StatusRunning}},
			want:      game.StatusFinished,
		},
		{
			name:      "any active flight means running",
			candidate: game.GameData{GameStatus: game.StatusScheduled},
			siblings:  []game.Game{{GameStatus: game.StatusRegistering}},
			want:      game.StatusRunning,
		},
		{
			name:      "non-final finished does not finish the parent",
			candidate: game.GameData{GameStatus: game.StatusFinished},
			siblings:  []game.Game{{GameStatus: game.StatusFinished}},
			want:      game.StatusScheduled,
		},
		{
			name:      "all scheduled",
			candidate: game.GameData{GameStatus: game.StatusScheduled},
			siblings:  nil,
			want:      game.StatusScheduled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project(&tt.candidate, tt.siblings)
			if p.ProjectedStatus != tt.want {
				t.Errorf("ProjectedStatus = %q, want %q", p.ProjectedStatus, tt.want)
			}
		})
	}
}

func TestProjectFlightGaps(t *testing.T) {
	t.Run("missing middle flight", func(t *testing.T) {
		candidate := &game.GameData{FlightLetter: "C"}
		siblings := []game.Game{{FlightLetter: "A"}}
		p := Project(candidate, siblings)
		if !p.IsPartialData {
			t.Error("IsPartialData = false, want true")
		}
		if p.MissingFlightCount != 1 {
			t.Errorf("MissingFlightCount = %d, want 1", p.MissingFlightCount)
		}
	})

	t.Run("contiguous flights", func(t *testing.T) {
		candidate := &game.GameData{FlightLetter: "B"}
		siblings := []game.Game{{FlightLetter: "A"}}
		p := Project(candidate, siblings)
		if p.IsPartialData {
			t.Error("IsPartialData = true, want false")
		}
	})

	t.Run("no flight letters", func(t *testing.T) {
		candidate := &game.GameData{}
		p := Project(candidate, nil)
		if p.IsPartialData || p.MissingFlightCount != 0 {
			t.Errorf("gap detection fired with no flights: partial=%v missing=%d",
				p.IsPartialData, p.MissingFlightCount)
		}
	})
}
