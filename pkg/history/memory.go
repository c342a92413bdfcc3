package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"silverline-hq/portcullis/pkg/engine"
)

// MemoryStorage is an in-process Storage for tests and deployments that
// do not need a durable archive.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []engine.UsageRecord
}

// NewMemoryStorage creates an empty in-memory archive.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Insert implements Storage.
func (s *MemoryStorage) Insert(ctx context.Context, rec engine.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// UserRecords implements Storage.
func (s *MemoryStorage) UserRecords(ctx context.Context, userID string, since time.Time) ([]engine.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.UsageRecord
	for _, rec := range s.records {
		if rec.UserID == userID && !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// DailyStats implements Storage.
func (s *MemoryStorage) DailyStats(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]*DayStat)
	for _, rec := range s.records {
		if rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
			continue
		}
		day := rec.Timestamp.UTC().Format("2006-01-02")
		stat, ok := byDay[day]
		if !ok {
			stat = &DayStat{Day: day}
			byDay[day] = stat
		}
		stat.Total++
		if rec.Allowed {
			stat.Allowed++
		} else {
			stat.Denied++
		}
	}

	out := make([]DayStat, 0, len(byDay))
	for _, stat := range byDay {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// TopUsers implements Storage.
func (s *MemoryStorage) TopUsers(ctx context.Context, since time.Time, n int) ([]TopEntry, error) {
	return s.topBy(since, n, func(rec engine.UsageRecord) string { return rec.UserID })
}

// TopGroups implements Storage.
func (s *MemoryStorage) TopGroups(ctx context.Context, since time.Time, n int) ([]TopEntry, error) {
	return s.topBy(since, n, func(rec engine.UsageRecord) string { return rec.GroupID })
}

func (s *MemoryStorage) topBy(since time.Time, n int, key func(engine.UsageRecord) string) ([]TopEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, rec := range s.records {
		id := key(rec)
		if id == "" || !rec.Allowed || rec.Timestamp.Before(since) {
			continue
		}
		counts[id]++
	}

	out := make([]TopEntry, 0, len(counts))
	for id, count := range counts {
		out = append(out, TopEntry{ID: id, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// UserTotals implements Storage.
func (s *MemoryStorage) UserTotals(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64)
	for _, rec := range s.records {
		if !rec.Allowed || rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
			continue
		}
		out[rec.UserID]++
	}
	return out, nil
}

// DeleteBefore implements Storage.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, rec := range s.records {
		if rec.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

// Count implements Storage.
func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close implements Storage.
func (s *MemoryStorage) Close() error { return nil }
