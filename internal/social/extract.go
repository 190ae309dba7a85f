package social

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// ContentType classifies what a post is about.
const (
	ContentResult      = "RESULT"
	ContentPromotional = "PROMOTIONAL"
	ContentGeneral     = "GENERAL"
)

var (
	postBuyInPattern     = regexp.MustCompile(`(?i)\$\s*([\d,]+(?:\.\d+)?)\s*(?:buy[\s-]?in|\+\s*\$?[\d,]+)|buy[\s-]?in:?\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	postGuaranteePattern = regexp.MustCompile(`(?i)\$\s*([\d,]+(?:\.\d+)?)[km]?\s*(?:guarantee[d]?|gtd)|(?:guarantee[d]?|gtd):?\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	postPrizepoolPattern = regexp.MustCompile(`(?i)prize\s*pool(?:\s+of)?:?\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	postEntriesPattern   = regexp.MustCompile(`(?i)([\d,]+)\s*(?:total\s+)?(?:entries|entrants|runners)`)
	postEventPattern     = regexp.MustCompile(`(?i)event\s*#?\s*(\d+)`)
	postDayPattern       = regexp.MustCompile(`(?i)\bday\s+(\d+)\b`)
	postFlightPattern    = regexp.MustCompile(`(?i)\bflight\s+([A-Z])\b`)
	postSeriesPattern    = regexp.MustCompile(`(?i)\b([A-Z][\w'&. ]{2,40}(?:series|championship|classic|festival))\b`)
	postWinnerPattern    = regexp.MustCompile(`(?i)(?:congrat(?:s|ulations)?(?:\s+to)?|winner:?|champion:?)\s+@?([A-Z][\w.' -]{1,40}?)(?:\s+(?:who|for|on|taking|takes|wins|won)|[!,.]|$)`)
	postFirstPrizePatt   = regexp.MustCompile(`(?i)(?:1st|first)(?:\s+place)?(?:\s+prize)?[:\s]+\$\s*([\d,]+(?:\.\d+)?)|tak(?:es|ing)\s+(?:home\s+)?\$\s*([\d,]+(?:\.\d+)?)`)
	postPlacementPattern = regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)[:\s]+@?([A-Z][\w.' -]{1,40}?)\s*[-–]?\s*\$\s*([\d,]+(?:\.\d+)?)`)
	postURLPattern       = regexp.MustCompile(`https?://\S+/(?:tournament|t)/(\d+)`)
	postVenuePattern     = regexp.MustCompile(`(?i)(?:at|@)\s+(?:the\s+)?([A-Z][\w'& ]{2,40}?(?:casino|club|room|lounge|hotel))\b`)
	postDatePattern      = regexp.MustCompile(`(?i)\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?\b`)

	resultCues = []string{"congrat", "winner", "champion", "took down", "takes down",
		"1st place", "first place", "final table", "results", "won", "chopped"}
	promoCues = []string{"tonight", "tomorrow", "this week", "register", "join us",
		"don't miss", "dont miss", "starts at", "seats", "satellite", "late rego",
		"late reg", "book now", "coming up"}
)

// Signals is the extraction output for one post.
type Signals struct {
	Data              store.PostGameData
	ContentType       string
	ContentConfidence float64
	ResultScore       float64
	PromoScore        float64
}

// Extractor pulls tournament signals from post text.
type Extractor struct {
	loc *time.Location
}

func NewExtractor(loc *time.Location) *Extractor {
	return &Extractor{loc: loc}
}

// Extract parses a post's text. postedAt anchors relative date resolution
// for day/month mentions without a year.
func (e *Extractor) Extract(text string, postedAt time.Time) Signals {
	var sig Signals

	if m := postBuyInPattern.FindStringSubmatch(text); m != nil {
		sig.Data.BuyIn = moneyp(firstGroup(m))
	}
	if m := postGuaranteePattern.FindStringSubmatch(text); m != nil {
		sig.Data.GuaranteeAmount = moneyp(firstGroup(m))
	}
	if m := postPrizepoolPattern.FindStringSubmatch(text); m != nil {
		sig.Data.PrizePool = moneyp(m[1])
	}
	if m := postEntriesPattern.FindStringSubmatch(text); m != nil {
		sig.Data.TotalEntries = countp(m[1])
	}
	if m := postEventPattern.FindStringSubmatch(text); m != nil {
		sig.Data.EventNumber = countp(m[1])
	}
	if m := postDayPattern.FindStringSubmatch(text); m != nil {
		sig.Data.DayNumber = countp(m[1])
	}
	if m := postFlightPattern.FindStringSubmatch(text); m != nil {
		letter := strings.ToUpper(m[1])
		sig.Data.FlightLetter = &letter
	}
	if m := postSeriesPattern.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		sig.Data.SeriesName = &name
	}
	if m := postWinnerPattern.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		sig.Data.WinnerName = &name
	}
	if m := postFirstPrizePatt.FindStringSubmatch(text); m != nil {
		sig.Data.FirstPlacePrize = moneyp(firstGroup(m))
		sig.Data.WinnerPrize = sig.Data.FirstPlacePrize
	}
	if m := postURLPattern.FindStringSubmatch(text); m != nil {
		url := m[0]
		sig.Data.TournamentURL = &url
		sig.Data.TournamentID = countp(m[1])
	}
	if m := postVenuePattern.FindStringSubmatch(text); m != nil {
		hint := strings.TrimSpace(m[1])
		sig.Data.VenueHint = &hint
	}
	if d := e.extractDate(text, postedAt); d != nil {
		sig.Data.EventDate = d
	}
	sig.Data.Placements = extractPlacements(text)

	sig.ResultScore, sig.PromoScore = scoreContent(text, &sig)
	sig.ContentType, sig.ContentConfidence = classify(sig.ResultScore, sig.PromoScore)

	sig.Data.ContentType = sig.ContentType
	sig.Data.ContentConfidence = sig.ContentConfidence
	sig.Data.ResultScore = sig.ResultScore
	sig.Data.PromoScore = sig.PromoScore

	return sig
}

// HasSignals reports whether extraction produced anything a ranker can
// use. A post with no signals fails extraction.
func (s Signals) HasSignals() bool {
	d := s.Data
	return d.BuyIn != nil || d.GuaranteeAmount != nil || d.EventNumber != nil ||
		d.SeriesName != nil || d.TournamentID != nil || d.WinnerName != nil ||
		d.EventDate != nil || d.VenueHint != nil || d.TotalEntries != nil
}

func (e *Extractor) extractDate(text string, postedAt time.Time) *time.Time {
	m := postDatePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return nil
	}
	year := postedAt.In(e.loc).Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, e.loc)
	return &t
}

// extractPlacements renders "1st Alice $5000" style lines as a compact
// "place:name:prize" list.
func extractPlacements(text string) string {
	var parts []string
	for _, m := range postPlacementPattern.FindAllStringSubmatch(text, 10) {
		parts = append(parts, m[1]+":"+strings.TrimSpace(m[2])+":"+strings.ReplaceAll(m[3], ",", ""))
	}
	return strings.Join(parts, ";")
}

func scoreContent(text string, sig *Signals) (result, promo float64) {
	lower := strings.ToLower(text)
	for _, cue := range resultCues {
		if strings.Contains(lower, cue) {
			result += 0.2
		}
	}
	for _, cue := range promoCues {
		if strings.Contains(lower, cue) {
			promo += 0.2
		}
	}
	if sig.Data.WinnerName != nil {
		result += 0.3
	}
	if sig.Data.Placements != "" {
		result += 0.3
	}
	if sig.Data.TotalEntries != nil {
		result += 0.1
	}
	if sig.Data.GuaranteeAmount != nil {
		promo += 0.15
	}
	if sig.Data.BuyIn != nil {
		promo += 0.1
	}
	return clamp01(result), clamp01(promo)
}

func classify(resultScore, promoScore float64) (string, float64) {
	switch {
	case resultScore >= 0.3 && resultScore >= promoScore:
		return ContentResult, resultScore
	case promoScore >= 0.3:
		return ContentPromotional, promoScore
	default:
		conf := 1 - clamp01(resultScore+promoScore)
		return ContentGeneral, conf
	}
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// firstGroup returns the first non-empty capture of an alternation match.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func moneyp(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

func countp(raw string) *int {
	v, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return nil
	}
	return &v
}
