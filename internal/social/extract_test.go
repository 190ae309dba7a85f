package social

import (
	"testing"
	"time"
)

func sydney(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("loading location: %v", err)
	}
	return loc
}

func TestExtractResultPost(t *testing.T) {
	e := NewExtractor(sydney(t))
	posted := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	text := `Congratulations to Alice Nguyen who takes home $12,500 in the Spring Series Event #8!
142 entries smashed the $50,000 GTD.
1st: Alice Nguyen - $12,500
2nd: Bob Tran - $8,200`

	sig := e.Extract(text, posted)

	if sig.ContentType != ContentResult {
		t.Errorf("ContentType = %q, want RESULT", sig.ContentType)
	}
	if sig.Data.WinnerName == nil || *sig.Data.WinnerName != "Alice Nguyen" {
		t.Errorf("WinnerName = %v, want Alice Nguyen", sig.Data.WinnerName)
	}
	if sig.Data.EventNumber == nil || *sig.Data.EventNumber != 8 {
		t.Errorf("EventNumber = %v, want 8", sig.Data.EventNumber)
	}
	if sig.Data.TotalEntries == nil || *sig.Data.TotalEntries != 142 {
		t.Errorf("TotalEntries = %v, want 142", sig.Data.TotalEntries)
	}
	if sig.Data.GuaranteeAmount == nil || *sig.Data.GuaranteeAmount != 50000 {
		t.Errorf("GuaranteeAmount = %v, want 50000", sig.Data.GuaranteeAmount)
	}
	if sig.Data.SeriesName == nil {
		t.Error("SeriesName not extracted")
	}
	if sig.Data.Placements == "" {
		t.Error("Placements not extracted")
	}
	if sig.ResultScore <= sig.PromoScore {
		t.Errorf("ResultScore %v not above PromoScore %v", sig.ResultScore, sig.PromoScore)
	}
}

func TestExtractPromotionalPost(t *testing.T) {
	e := NewExtractor(sydney(t))

	text := `Tonight! $550 buy-in deepstack, $20,000 GTD. Register now, late rego until 8pm. Don't miss it!`
	sig := e.Extract(text, time.Now())

	if sig.ContentType != ContentPromotional {
		t.Errorf("ContentType = %q, want PROMOTIONAL", sig.ContentType)
	}
	if sig.Data.BuyIn == nil || *sig.Data.BuyIn != 550 {
		t.Errorf("BuyIn = %v, want 550", sig.Data.BuyIn)
	}
	if sig.Data.GuaranteeAmount == nil || *sig.Data.GuaranteeAmount != 20000 {
		t.Errorf("GuaranteeAmount = %v, want 20000", sig.Data.GuaranteeAmount)
	}
}

func TestExtractGeneralPost(t *testing.T) {
	e := NewExtractor(sydney(t))

	sig := e.Extract("Great vibes in the room today. See you all soon!", time.Now())

	if sig.ContentType != ContentGeneral {
		t.Errorf("ContentType = %q, want GENERAL", sig.ContentType)
	}
	if sig.HasSignals() {
		t.Error("HasSignals = true for chatter with no tournament content")
	}
}

func TestExtractTournamentURL(t *testing.T) {
	e := NewExtractor(sydney(t))

	sig := e.Extract("Full results: https://example.com/tournament/4512", time.Now())

	if sig.Data.TournamentID == nil || *sig.Data.TournamentID != 4512 {
		t.Errorf("TournamentID = %v, want 4512", sig.Data.TournamentID)
	}
	if sig.Data.TournamentURL == nil {
		t.Error("TournamentURL not extracted")
	}
}

func TestExtractDate(t *testing.T) {
	loc := sydney(t)
	e := NewExtractor(loc)
	posted := time.Date(2024, 3, 2, 9, 0, 0, 0, loc)

	t.Run("day month without year uses post year", func(t *testing.T) {
		sig := e.Extract("Main Event kicks off 15/3, $200 buy-in", posted)
		if sig.Data.EventDate == nil {
			t.Fatal("EventDate not extracted")
		}
		want := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)
		if !sig.Data.EventDate.Equal(want) {
			t.Errorf("EventDate = %v, want %v", sig.Data.EventDate, want)
		}
	})

	t.Run("two digit year expands", func(t *testing.T) {
		sig := e.Extract("Save the date: 15/3/25. Buy-in $200.", posted)
		if sig.Data.EventDate == nil {
			t.Fatal("EventDate not extracted")
		}
		if sig.Data.EventDate.Year() != 2025 {
			t.Errorf("year = %d, want 2025", sig.Data.EventDate.Year())
		}
	})

	t.Run("invalid month rejected", func(t *testing.T) {
		sig := e.Extract("Score was 40-19 tonight", posted)
		if sig.Data.EventDate != nil {
			t.Errorf("EventDate = %v, want nil", sig.Data.EventDate)
		}
	})
}

func TestExtractVenueHint(t *testing.T) {
	e := NewExtractor(sydney(t))

	sig := e.Extract("Action kicks off at the Kings Cross Club, $100 buy-in", time.Now())
	if sig.Data.VenueHint == nil || *sig.Data.VenueHint != "Kings Cross Club" {
		t.Errorf("VenueHint = %v, want Kings Cross Club", sig.Data.VenueHint)
	}
}
