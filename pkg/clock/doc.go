// Package clock converts wall-clock timestamps into logical accounting days
// and daily recurring time windows.
//
// A logical day is a 24-hour period whose boundary is a configurable
// time-of-day rather than midnight. With a reset time of 06:00, a request at
// 05:59 is charged to the previous day's counters and a request at 06:01 to
// the new day's. Windows support midnight wrap (22:00-02:00).
//
// All parsing is done at configuration-load time; malformed values are
// reported then, not at decision time.
package clock
