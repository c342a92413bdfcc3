package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"silverline-hq/portcullis/pkg/engine"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func record(userID, groupID string, at time.Time, allowed bool) engine.UsageRecord {
	return engine.UsageRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		GroupID:   groupID,
		Timestamp: at,
		ScopeKey:  "scope:user:" + userID + ":" + at.Format("2006-01-02"),
		Allowed:   allowed,
	}
}

func seedStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()
	seed := []engine.UsageRecord{
		record("alice", "", base, true),
		record("alice", "", base.Add(time.Hour), true),
		record("alice", "", base.Add(2*time.Hour), false),
		record("bob", "g1", base.Add(time.Hour), true),
		record("bob", "g1", base.AddDate(0, 0, 1), true),
		record("carol", "g2", base.AddDate(0, 0, 1), true),
	}
	for _, rec := range seed {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

// testStorageBehavior exercises one Storage implementation end to end.
func testStorageBehavior(t *testing.T, s Storage) {
	ctx := context.Background()
	seedStorage(t, s)

	t.Run("UserRecords", func(t *testing.T) {
		recs, err := s.UserRecords(ctx, "alice", base.Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 3 {
			t.Fatalf("got %d records, want 3", len(recs))
		}
		// Newest first.
		if !recs[0].Timestamp.After(recs[1].Timestamp) {
			t.Error("records not in newest-first order")
		}
		if recs[0].Allowed {
			t.Error("newest alice record should be the denied one")
		}

		// Since-filter excludes older records.
		recs, err = s.UserRecords(ctx, "alice", base.Add(90*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Errorf("got %d records since 13:30, want 1", len(recs))
		}
	})

	t.Run("DailyStats", func(t *testing.T) {
		stats, err := s.DailyStats(ctx, base.Add(-time.Hour), base.AddDate(0, 0, 2))
		if err != nil {
			t.Fatal(err)
		}
		if len(stats) != 2 {
			t.Fatalf("got %d days, want 2: %+v", len(stats), stats)
		}
		day1, day2 := stats[0], stats[1]
		if day1.Day != "2025-03-10" || day1.Total != 4 || day1.Allowed != 3 || day1.Denied != 1 {
			t.Errorf("day1 = %+v", day1)
		}
		if day2.Day != "2025-03-11" || day2.Total != 2 || day2.Allowed != 2 {
			t.Errorf("day2 = %+v", day2)
		}
	})

	t.Run("TopUsers", func(t *testing.T) {
		top, err := s.TopUsers(ctx, base.Add(-time.Hour), 2)
		if err != nil {
			t.Fatal(err)
		}
		// alice and bob both have 2 admitted calls; ties break by id.
		if len(top) != 2 || top[0].ID != "alice" || top[0].Count != 2 || top[1].ID != "bob" {
			t.Errorf("top users = %+v", top)
		}
	})

	t.Run("TopGroups", func(t *testing.T) {
		top, err := s.TopGroups(ctx, base.Add(-time.Hour), 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(top) != 2 || top[0].ID != "g1" || top[0].Count != 2 {
			t.Errorf("top groups = %+v", top)
		}
	})

	t.Run("UserTotals", func(t *testing.T) {
		totals, err := s.UserTotals(ctx, base.Add(-time.Hour), base.AddDate(0, 0, 2))
		if err != nil {
			t.Fatal(err)
		}
		if totals["alice"] != 2 || totals["bob"] != 2 || totals["carol"] != 1 {
			t.Errorf("totals = %v", totals)
		}
	})

	t.Run("DeleteBefore", func(t *testing.T) {
		deleted, err := s.DeleteBefore(ctx, base.AddDate(0, 0, 1))
		if err != nil {
			t.Fatal(err)
		}
		if deleted != 4 {
			t.Errorf("deleted %d records, want 4", deleted)
		}
		n, err := s.Count(ctx)
		if err != nil || n != 2 {
			t.Errorf("Count = %d, %v", n, err)
		}
	})
}

func TestMemoryStorage(t *testing.T) {
	testStorageBehavior(t, NewMemoryStorage())
}

func TestSQLiteStorage(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer s.Close()

	testStorageBehavior(t, s)
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s1, err := NewSQLiteStorage(&SQLiteConfig{Path: path, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Insert(ctx, record("alice", "", base, true)); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewSQLiteStorage(&SQLiteConfig{Path: path, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if n, _ := s2.Count(ctx); n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}
