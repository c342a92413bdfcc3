package history

import (
	"context"
	"time"

	"silverline-hq/portcullis/pkg/engine"
)

// DayStat is a per-calendar-day aggregate of admission attempts.
type DayStat struct {
	// Day is the calendar date in YYYY-MM-DD form (UTC).
	Day string `json:"day"`

	// Total is the number of admission attempts.
	Total int64 `json:"total"`

	// Allowed is the number of admitted calls.
	Allowed int64 `json:"allowed"`

	// Denied is the number of rejected calls.
	Denied int64 `json:"denied"`
}

// TopEntry is one row of a usage leaderboard.
type TopEntry struct {
	// ID is the user or group identifier.
	ID string `json:"id"`

	// Count is the number of admitted calls in the query window.
	Count int64 `json:"count"`
}

// Distribution buckets users by admitted call volume.
type Distribution struct {
	// Low is the number of users with 1-5 admitted calls.
	Low int64 `json:"low"`

	// Mid is the number of users with 6-20 admitted calls.
	Mid int64 `json:"mid"`

	// High is the number of users with 21 or more admitted calls.
	High int64 `json:"high"`
}

// Analytics is a summary of usage over a query window.
type Analytics struct {
	// From and To bound the window.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// Total, Allowed, Denied count admission attempts in the window.
	Total   int64 `json:"total"`
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`

	// ActiveUsers is the number of distinct users with at least one
	// admitted call.
	ActiveUsers int64 `json:"active_users"`

	// Distribution buckets active users by volume.
	Distribution Distribution `json:"distribution"`
}

// Storage is the usage-record archive. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Insert appends one usage record.
	Insert(ctx context.Context, rec engine.UsageRecord) error

	// UserRecords returns a user's records since the given time, newest
	// first.
	UserRecords(ctx context.Context, userID string, since time.Time) ([]engine.UsageRecord, error)

	// DailyStats returns per-day aggregates for records in [from, to),
	// oldest day first.
	DailyStats(ctx context.Context, from, to time.Time) ([]DayStat, error)

	// TopUsers returns the users with the most admitted calls since the
	// given time.
	TopUsers(ctx context.Context, since time.Time, n int) ([]TopEntry, error)

	// TopGroups returns the groups with the most admitted calls since
	// the given time.
	TopGroups(ctx context.Context, since time.Time, n int) ([]TopEntry, error)

	// UserTotals returns admitted-call counts per user for records in
	// [from, to).
	UserTotals(ctx context.Context, from, to time.Time) (map[string]int64, error)

	// DeleteBefore removes records older than the cutoff, returning how
	// many were deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// Close releases storage resources.
	Close() error
}
