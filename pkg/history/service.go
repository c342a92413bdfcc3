package history

import (
	"context"
	"fmt"
	"time"

	"silverline-hq/portcullis/pkg/engine"
)

// TrendGranularity selects the bucket size for trend queries.
type TrendGranularity string

const (
	// TrendDaily buckets by calendar day.
	TrendDaily TrendGranularity = "day"

	// TrendWeekly buckets by ISO week starting Monday.
	TrendWeekly TrendGranularity = "week"

	// TrendMonthly buckets by calendar month.
	TrendMonthly TrendGranularity = "month"
)

// TrendPoint is one bucket of a trend query.
type TrendPoint struct {
	// Bucket labels the period: the day, the week's Monday, or the
	// month's first day, all in YYYY-MM-DD form.
	Bucket string `json:"bucket"`

	// Total, Allowed, Denied count admission attempts in the bucket.
	Total   int64 `json:"total"`
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// Service exposes read-only projections over the usage-record archive:
// per-user history, daily analytics, leaderboards, and trends.
type Service struct {
	storage Storage
}

// NewService creates a query service over the given archive.
func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// UserHistory returns a user's records over the last N days, newest
// first.
func (s *Service) UserHistory(ctx context.Context, userID string, days int) ([]engine.UsageRecord, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.storage.UserRecords(ctx, userID, since)
}

// Analytics summarizes usage over the last N days, including the active
// user count and the volume distribution (1-5, 6-20, 21+ admitted calls).
func (s *Service) Analytics(ctx context.Context, days int) (Analytics, error) {
	if days <= 0 {
		days = 1
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	stats, err := s.storage.DailyStats(ctx, from, to)
	if err != nil {
		return Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	totals, err := s.storage.UserTotals(ctx, from, to)
	if err != nil {
		return Analytics{}, fmt.Errorf("analytics: %w", err)
	}

	out := Analytics{From: from, To: to, ActiveUsers: int64(len(totals))}
	for _, stat := range stats {
		out.Total += stat.Total
		out.Allowed += stat.Allowed
		out.Denied += stat.Denied
	}
	for _, count := range totals {
		switch {
		case count <= 5:
			out.Distribution.Low++
		case count <= 20:
			out.Distribution.Mid++
		default:
			out.Distribution.High++
		}
	}
	return out, nil
}

// TopUsers returns the heaviest users over the last N days.
func (s *Service) TopUsers(ctx context.Context, days, n int) ([]TopEntry, error) {
	if days <= 0 {
		days = 7
	}
	if n <= 0 {
		n = 10
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.storage.TopUsers(ctx, since, n)
}

// TopGroups returns the heaviest groups over the last N days.
func (s *Service) TopGroups(ctx context.Context, days, n int) ([]TopEntry, error) {
	if days <= 0 {
		days = 7
	}
	if n <= 0 {
		n = 10
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.storage.TopGroups(ctx, since, n)
}

// Trends aggregates daily stats over the last N days into the requested
// granularity, oldest bucket first.
func (s *Service) Trends(ctx context.Context, days int, granularity TrendGranularity) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	stats, err := s.storage.DailyStats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}

	byBucket := make(map[string]*TrendPoint)
	var order []string
	for _, stat := range stats {
		day, err := time.Parse("2006-01-02", stat.Day)
		if err != nil {
			continue
		}
		bucket := bucketFor(day, granularity)
		point, ok := byBucket[bucket]
		if !ok {
			point = &TrendPoint{Bucket: bucket}
			byBucket[bucket] = point
			order = append(order, bucket)
		}
		point.Total += stat.Total
		point.Allowed += stat.Allowed
		point.Denied += stat.Denied
	}

	out := make([]TrendPoint, 0, len(order))
	for _, bucket := range order {
		out = append(out, *byBucket[bucket])
	}
	return out, nil
}

func bucketFor(day time.Time, granularity TrendGranularity) string {
	switch granularity {
	case TrendWeekly:
		// Monday of the day's week.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset).Format("2006-01-02")
	case TrendMonthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	default:
		return day.Format("2006-01-02")
	}
}
