package monitor

import (
	"fmt"
	"time"
)

// resetSanityWindow caps how far ahead a parsed reset time may land. Quota
// windows run in five-hour blocks, so anything at or beyond that is a
// misparse and the session falls back to plain availability polling.
const resetSanityWindow = 5 * time.Hour

// nextOccurrence returns the next wall-clock instant at hour:minute in now's
// location, rolling to tomorrow when that time has already passed today.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextDaily returns tomorrow's instant at hour:minute, even when today's has
// not happened yet. Daily quota runs always advance a full day after firing.
func nextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return next.AddDate(0, 0, 1)
}

// validResetDeadline reports whether at is a plausible reset instant: in the
// future but within the sanity window. Both bounds are exclusive.
func validResetDeadline(now, at time.Time) bool {
	d := at.Sub(now)
	return d > 0 && d < resetSanityWindow
}

// formatClock renders hour:minute the way session transcripts print reset
// times, e.g. "4am" and "3:45pm".
func formatClock(hour, minute int) string {
	meridiem := "am"
	h := hour
	switch {
	case h == 0:
		h = 12
	case h == 12:
		meridiem = "pm"
	case h > 12:
		h -= 12
		meridiem = "pm"
	}
	if minute == 0 {
		return fmt.Sprintf("%d%s", h, meridiem)
	}
	return fmt.Sprintf("%d:%02d%s", h, minute, meridiem)
}
