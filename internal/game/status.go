package game

import (
	"strings"
)

// statusAliases maps upstream spellings to the canonical Status. Upstream
// sources disagree on separators and wording (CLOCKSTOPPED vs CLOCK_STOPPED,
// IN_PROGRESS vs RUNNING), so all comparisons happen on a squashed form
// with separators removed.
var statusAliases = map[string]Status{
	"RUNNING":        StatusRunning,
	"INPROGRESS":     StatusRunning,
	"LIVE":           StatusRunning,
	"SCHEDULED":      StatusScheduled,
	"UPCOMING":       StatusScheduled,
	"PENDING":        StatusScheduled,
	"REGISTERING":    StatusRegistering,
	"REGISTRATION":   StatusRegistering,
	"REGOPEN":        StatusRegistering,
	"LATEREG":        StatusRegistering,
	"CLOCKSTOPPED":   StatusClockStopped,
	"PAUSED":         StatusClockStopped,
	"ONBREAK":        StatusClockStopped,
	"FINISHED":       StatusFinished,
	"COMPLETE":       StatusFinished,
	"COMPLETED":      StatusFinished,
	"ENDED":          StatusFinished,
	"CANCELLED":      StatusCancelled,
	"CANCELED":       StatusCancelled,
	"ABANDONED":      StatusCancelled,
	"NOTPUBLISHED":   StatusNotPublished,
	"UNPUBLISHED":    StatusNotPublished,
	"NOTFOUND":       StatusNotFound,
}

// NormalizeStatus maps any upstream status spelling to the canonical enum.
// Unrecognized or empty input yields StatusUnknown.
func NormalizeStatus(raw string) Status {
	squashed := squash(raw)
	if squashed == "" {
		return StatusUnknown
	}
	if s, ok := statusAliases[squashed]; ok {
		return s
	}
	return StatusUnknown
}

// Active reports whether a status means play or registration is underway.
func (s Status) Active() bool {
	switch s {
	case StatusRunning, StatusClockStopped, StatusRegistering:
		return true
	}
	return false
}

// squash uppercases and strips every non-alphanumeric rune.
func squash(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
