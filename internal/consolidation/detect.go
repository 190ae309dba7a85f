package consolidation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// DetectionSource says which signal identified the multi-day pattern.
type DetectionSource string

const (
	SourceDayNumber    DetectionSource = "dayNumber"
	SourceFlightLetter DetectionSource = "flightLetter"
	SourceFinalDay     DetectionSource = "finalDay"
	SourceNamePattern  DetectionSource = "namePattern"
	SourceNone         DetectionSource = ""
)

// Detection is the outcome of multi-day pattern detection for a candidate.
type Detection struct {
	IsMultiDay         bool            `json:"isMultiDay"`
	DetectionSource    DetectionSource `json:"detectionSource"`
	ParsedDayNumber    *int            `json:"parsedDayNumber,omitempty"`
	ParsedFlightLetter string          `json:"parsedFlightLetter,omitempty"`
	IsFinalDay         bool            `json:"isFinalDay"`
	DerivedParentName  string          `json:"derivedParentName"`
}

var (
	nameDayPattern    = regexp.MustCompile(`(?i)[\s\-–—:,]*\bday\s+(\d+)\s*$`)
	nameFlightPattern = regexp.MustCompile(`(?i)[\s\-–—:,]*\bflight\s+([A-Z])\s*$`)
	nameFinalPattern  = regexp.MustCompile(`(?i)[\s\-–—:,]*\bfinal\s+day\s*$`)
)

// Detect identifies the multi-day pattern of a candidate. Explicit parser
// fields take priority over the final-day flag, which takes priority over
// name suffix matching.
func Detect(d *game.GameData) Detection {
	det := Detection{DerivedParentName: stripDaySuffixes(d.Name)}

	switch {
	case d.DayNumber != nil:
		det.IsMultiDay = true
		det.DetectionSource = SourceDayNumber
		det.ParsedDayNumber = d.DayNumber
		det.ParsedFlightLetter = d.FlightLetter
		det.IsFinalDay = d.FinalDay
	case d.FlightLetter != "":
		det.IsMultiDay = true
		det.DetectionSource = SourceFlightLetter
		det.ParsedFlightLetter = d.FlightLetter
		det.IsFinalDay = d.FinalDay
	case d.FinalDay:
		det.IsMultiDay = true
		det.DetectionSource = SourceFinalDay
		det.IsFinalDay = true
	default:
		if m := nameDayPattern.FindStringSubmatch(d.Name); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				det.IsMultiDay = true
				det.DetectionSource = SourceNamePattern
				det.ParsedDayNumber = &n
			}
		} else if m := nameFlightPattern.FindStringSubmatch(d.Name); m != nil {
			det.IsMultiDay = true
			det.DetectionSource = SourceNamePattern
			det.ParsedFlightLetter = strings.ToUpper(m[1])
		} else if nameFinalPattern.MatchString(d.Name) {
			det.IsMultiDay = true
			det.DetectionSource = SourceNamePattern
			det.IsFinalDay = true
		}
	}

	return det
}

// stripDaySuffixes removes trailing day/flight markers from a tournament
// name, yielding the parent's name. Applied repeatedly so "Main Event Day 2
// Flight B" reduces fully.
func stripDaySuffixes(name string) string {
	out := strings.TrimSpace(name)
	for {
		next := nameDayPattern.ReplaceAllString(out, "")
		next = nameFlightPattern.ReplaceAllString(next, "")
		next = nameFinalPattern.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == out || next == "" {
			if next != "" {
				out = next
			}
			return out
		}
		out = next
	}
}
