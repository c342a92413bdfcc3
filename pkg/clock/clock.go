package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Midnight is the default daily reset boundary.
var Midnight = TimeOfDay{}

// ParseTimeOfDay parses an "HH:MM" string into a TimeOfDay.
// Hours must be 0-23 and minutes 0-59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// String returns the canonical "HH:MM" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// LogicalDay maps a timestamp to its logical-day key (YYYY-MM-DD) given a
// daily reset boundary. A timestamp before the boundary still belongs to the
// previous calendar date's accounting day, so the counters roll over at the
// configured reset time rather than at midnight.
func LogicalDay(ts time.Time, reset TimeOfDay) string {
	if minutesOfDay(ts) < reset.Minutes() {
		ts = ts.AddDate(0, 0, -1)
	}
	return ts.Format("2006-01-02")
}

// NextBoundary returns the first instant strictly after ts at which the
// logical day rolls over. Counter TTLs are set to expire at this instant.
func NextBoundary(ts time.Time, reset TimeOfDay) time.Time {
	boundary := time.Date(ts.Year(), ts.Month(), ts.Day(), reset.Hour, reset.Minute, 0, 0, ts.Location())
	if !boundary.After(ts) {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

// UntilBoundary returns the duration from ts to the next logical-day
// boundary. Always positive.
func UntilBoundary(ts time.Time, reset TimeOfDay) time.Duration {
	return NextBoundary(ts, reset).Sub(ts)
}

// Window is a daily recurring time window. End is exclusive. A window whose
// Start is after its End wraps past midnight (e.g. 22:00-02:00 covers late
// evening and early morning of the following calendar day).
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ParseWindow parses a pair of "HH:MM" strings into a Window.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether the timestamp's time of day falls inside the
// window.
func (w Window) Contains(ts time.Time) bool {
	m := minutesOfDay(ts)
	s := w.Start.Minutes()
	e := w.End.Minutes()

	if s <= e {
		return m >= s && m < e
	}
	// Wrapping window spans two calendar days.
	return m >= s || m < e
}

// String returns the "HH:MM-HH:MM" form.
func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

func minutesOfDay(ts time.Time) int {
	return ts.Hour()*60 + ts.Minute()
}
