package parser

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// Extractor parses tournament detail pages into normalized records. The
// host renders field rows as label/value pairs, but markup drifts between
// templates, so extraction works from labeled text lines with selector
// hints rather than a fixed DOM shape.
type Extractor struct {
	loc *time.Location
}

// NewExtractor creates an extractor that parses dates in the given zone.
func NewExtractor(loc *time.Location) *Extractor {
	return &Extractor{loc: loc}
}

var (
	notPublishedPattern = regexp.MustCompile(`(?i)(not\s+published|not\s+yet\s+available|coming\s+soon)`)
	buyInPattern        = regexp.MustCompile(`(?i)buy[\s-]?in:?\s*\$?\s*([\d,]+(?:\.\d+)?)(?:\s*\+\s*\$?\s*([\d,]+(?:\.\d+)?))?`)
	guaranteePattern    = regexp.MustCompile(`(?i)(?:guarantee[d]?|gtd):?\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	entriesPattern      = regexp.MustCompile(`(?i)(?:total\s+)?entries:?\s*([\d,]+)`)
	initialPattern      = regexp.MustCompile(`(?i)(?:initial|first)\s+entries:?\s*([\d,]+)`)
	rebuysPattern       = regexp.MustCompile(`(?i)(?:re-?buys?|re-?entries):?\s*([\d,]+)`)
	addonsPattern       = regexp.MustCompile(`(?i)add-?ons?:?\s*([\d,]+)`)
	playersPattern      = regexp.MustCompile(`(?i)(?:unique\s+)?players:?\s*([\d,]+)`)
	prizepoolPattern    = regexp.MustCompile(`(?i)prize\s*pool(?:\s+paid)?:?\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	eventNumberPattern  = regexp.MustCompile(`(?i)event\s*#?\s*(\d+)`)
	seriesPattern       = regexp.MustCompile(`(?i)\bseries\s*:\s*(.+)`)
	statusPattern       = regexp.MustCompile(`(?i)\bstatus\s*:\s*([A-Za-z _-]+)`)
	startPattern        = regexp.MustCompile(`(?i)\bstart(?:s|ed)?\s*:\s*(.+)`)
	endPattern          = regexp.MustCompile(`(?i)\bend(?:s|ed)?\s*:\s*(.+)`)
	dayPattern          = regexp.MustCompile(`(?i)\bday\s+(\d+)\b`)
	flightPattern       = regexp.MustCompile(`(?i)\bflight\s+([A-Z])\b`)
	finalDayPattern     = regexp.MustCompile(`(?i)\bfinal\s+day\b`)
)

// PeekStatus pulls the page's tournament status without a full extraction,
// for recording on the blob version. Returns "" when no status is visible.
func (e *Extractor) PeekStatus(content []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	if m := statusPattern.FindStringSubmatch(doc.Text()); m != nil {
		status := game.NormalizeStatus(m[1])
		if status != game.StatusUnknown {
			return string(status)
		}
	}
	return ""
}

// Extract parses a page into a GameData. The returned status is BLANK when
// the page carries no tournament data, NOT_PUBLISHED when the host shows
// its placeholder, and SUCCESS otherwise.
func (e *Extractor) Extract(content []byte, entityID string, tournamentID int) (*game.GameData, game.ScrapeStatus) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, game.ScrapeError
	}

	text := doc.Text()
	if notPublishedPattern.MatchString(text) {
		return nil, game.ScrapeNotPublished
	}

	name := extractName(doc)
	if name == "" {
		return nil, game.ScrapeBlank
	}

	data := &game.GameData{
		TournamentID: tournamentID,
		EntityID:     entityID,
		Name:         name,
		GameStatus:   game.StatusUnknown,
	}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := buyInPattern.FindStringSubmatch(line); m != nil && data.BuyIn == 0 {
			data.BuyIn = parseMoney(m[1])
			if m[2] != "" {
				data.Rake = parseMoney(m[2])
			}
		}
		if m := guaranteePattern.FindStringSubmatch(line); m != nil && data.GuaranteeAmount == 0 {
			data.GuaranteeAmount = parseMoney(m[1])
			data.HasGuarantee = data.GuaranteeAmount > 0
		}
		// Entry labels overlap ("Re-entries" also matches the bare
		// entries pattern), so the specific labels win the line.
		switch {
		case initialPattern.MatchString(line):
			if data.TotalInitialEntries == 0 {
				data.TotalInitialEntries = parseCount(initialPattern.FindStringSubmatch(line)[1])
			}
		case rebuysPattern.MatchString(line):
			if data.TotalRebuys == 0 {
				data.TotalRebuys = parseCount(rebuysPattern.FindStringSubmatch(line)[1])
			}
		case addonsPattern.MatchString(line):
			if data.TotalAddons == 0 {
				data.TotalAddons = parseCount(addonsPattern.FindStringSubmatch(line)[1])
			}
		case entriesPattern.MatchString(line):
			if data.TotalEntries == 0 {
				data.TotalEntries = parseCount(entriesPattern.FindStringSubmatch(line)[1])
			}
		}
		if m := playersPattern.FindStringSubmatch(line); m != nil && data.TotalUniquePlayers == 0 {
			data.TotalUniquePlayers = parseCount(m[1])
		}
		if m := prizepoolPattern.FindStringSubmatch(line); m != nil && data.PrizepoolPaid == 0 {
			data.PrizepoolPaid = parseMoney(m[1])
		}
		if m := statusPattern.FindStringSubmatch(line); m != nil && data.GameStatus == game.StatusUnknown {
			data.GameStatus = game.NormalizeStatus(m[1])
		}
		if m := seriesPattern.FindStringSubmatch(line); m != nil && data.SeriesName == "" {
			data.SeriesName = strings.TrimSpace(m[1])
		}
		if m := startPattern.FindStringSubmatch(line); m != nil && data.GameStartDateTime == nil {
			if t := e.parseDateTime(m[1]); t != nil {
				data.GameStartDateTime = t
			}
		}
		if m := endPattern.FindStringSubmatch(line); m != nil && data.GameEndDateTime == nil {
			if t := e.parseDateTime(m[1]); t != nil {
				data.GameEndDateTime = t
			}
		}
	}

	if m := eventNumberPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			data.EventNumber = &n
		}
	}
	if m := dayPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			data.DayNumber = &n
		}
	}
	if m := flightPattern.FindStringSubmatch(name); m != nil {
		data.FlightLetter = strings.ToUpper(m[1])
	}
	if finalDayPattern.MatchString(name) {
		data.FinalDay = true
	}

	// Derive the total when the page lists only the components.
	if data.TotalEntries == 0 && (data.TotalInitialEntries > 0 || data.TotalRebuys > 0 || data.TotalAddons > 0) {
		data.TotalEntries = data.TotalInitialEntries + data.TotalRebuys + data.TotalAddons
	}
	// Pages without a breakdown report only the total.
	if data.TotalInitialEntries == 0 && data.TotalEntries > 0 && data.TotalRebuys == 0 && data.TotalAddons == 0 {
		data.TotalInitialEntries = data.TotalEntries
	}

	return data, game.ScrapeSuccess
}

// extractName tries the title selectors in order of specificity.
func extractName(doc *goquery.Document) string {
	for _, sel := range []string{".tournament-title", ".tournament-name", "h1", "h2"} {
		name := strings.TrimSpace(doc.Find(sel).First().Text())
		if name != "" {
			return name
		}
	}
	return ""
}

// parseDateTime tries the timestamp formats the host has used.
func (e *Extractor) parseDateTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"02/01/2006 3:04 PM",
		"2 Jan 2006 3:04 PM",
		"2 January 2006 3:04 PM",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, raw, e.loc); err == nil {
			return &t
		}
	}
	return nil
}

func parseMoney(raw string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseCount(raw string) int {
	v, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0
	}
	return v
}
