package history

import (
	"context"
	"testing"
	"time"
)

// lastNoon returns the most recent noon UTC, a stable in-window anchor
// whose same-day neighborhood cannot straddle a date boundary.
func lastNoon() time.Time {
	n := time.Now().UTC()
	anchor := time.Date(n.Year(), n.Month(), n.Day(), 12, 0, 0, 0, time.UTC)
	if anchor.After(n) {
		anchor = anchor.AddDate(0, 0, -1)
	}
	return anchor
}

func TestService_Analytics(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	anchor := lastNoon()

	// One low-volume user, one mid-volume, one high-volume, plus a few
	// denials that must not count toward distribution.
	for i := 0; i < 2; i++ {
		s.Insert(ctx, record("low", "", anchor.Add(-time.Duration(i)*time.Minute), true))
	}
	for i := 0; i < 10; i++ {
		s.Insert(ctx, record("mid", "", anchor.Add(-time.Duration(i)*time.Minute), true))
	}
	for i := 0; i < 25; i++ {
		s.Insert(ctx, record("high", "", anchor.Add(-time.Duration(i)*time.Minute), true))
	}
	for i := 0; i < 3; i++ {
		s.Insert(ctx, record("low", "", anchor.Add(-time.Duration(i)*time.Second), false))
	}

	a, err := NewService(s).Analytics(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}

	if a.Total != 40 || a.Allowed != 37 || a.Denied != 3 {
		t.Errorf("totals = %d/%d/%d", a.Total, a.Allowed, a.Denied)
	}
	if a.ActiveUsers != 3 {
		t.Errorf("ActiveUsers = %d, want 3", a.ActiveUsers)
	}
	if a.Distribution.Low != 1 || a.Distribution.Mid != 1 || a.Distribution.High != 1 {
		t.Errorf("distribution = %+v", a.Distribution)
	}
}

func TestService_Trends(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	anchor := lastNoon()

	// Spread records over three consecutive days.
	for day := 0; day < 3; day++ {
		for i := 0; i <= day; i++ {
			s.Insert(ctx, record("u1", "", anchor.AddDate(0, 0, -day).Add(-time.Duration(i)*time.Minute), true))
		}
	}

	svc := NewService(s)

	daily, err := svc.Trends(ctx, 7, TrendDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) != 3 {
		t.Fatalf("got %d daily buckets, want 3: %+v", len(daily), daily)
	}
	// Oldest first: 3 calls three days ago, then 2, then 1.
	if daily[0].Total != 3 || daily[2].Total != 1 {
		t.Errorf("daily buckets = %+v", daily)
	}

	monthly, err := svc.Trends(ctx, 7, TrendMonthly)
	if err != nil {
		t.Fatal(err)
	}
	var monthlyTotal int64
	for _, point := range monthly {
		monthlyTotal += point.Total
	}
	if monthlyTotal != 6 {
		t.Errorf("monthly total = %d, want 6", monthlyTotal)
	}
}

func TestService_WeeklyBucketIsMonday(t *testing.T) {
	// 2025-03-12 is a Wednesday; its week bucket is Monday 2025-03-10.
	wed := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	if got := bucketFor(wed, TrendWeekly); got != "2025-03-10" {
		t.Errorf("bucketFor(wednesday) = %q, want 2025-03-10", got)
	}
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := bucketFor(mon, TrendWeekly); got != "2025-03-10" {
		t.Errorf("bucketFor(monday) = %q, want itself", got)
	}
	sun := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	if got := bucketFor(sun, TrendWeekly); got != "2025-03-10" {
		t.Errorf("bucketFor(sunday) = %q, want 2025-03-10", got)
	}
}

func TestRecorder_FlushesOnClose(t *testing.T) {
	s := NewMemoryStorage()
	r := NewRecorder(s, 16)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		r.Record(ctx, record("u1", "", time.Now().UTC(), true))
	}
	r.Close()

	if n, _ := s.Count(ctx); n != 10 {
		t.Errorf("archived %d records, want 10", n)
	}

	// Records after Close are discarded, not panics.
	r.Record(ctx, record("u1", "", time.Now().UTC(), true))
}

func TestPruner_Prune(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	s.Insert(ctx, record("old", "", now.AddDate(0, 0, -40), true))
	s.Insert(ctx, record("new", "", now, true))

	p := NewPruner(s, RetentionConfig{RetentionDays: 30})
	deleted, err := p.Prune(ctx)
	if err != nil || deleted != 1 {
		t.Fatalf("Prune = %d, %v", deleted, err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	// RetentionDays 0 disables pruning.
	p = NewPruner(s, RetentionConfig{})
	if deleted, err := p.Prune(ctx); err != nil || deleted != 0 {
		t.Errorf("disabled Prune = %d, %v", deleted, err)
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	p := NewPruner(NewMemoryStorage(), RetentionConfig{RetentionDays: 30})
	s := NewScheduler(p)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := NewPruner(NewMemoryStorage(), RetentionConfig{RetentionDays: 30, PruneSchedule: "not cron"})
	s := NewScheduler(p)
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
