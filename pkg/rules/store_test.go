package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/store"
)

func newTestStore(t *testing.T) (*Store, *store.MemoryBackend) {
	t.Helper()
	backend := store.NewMemoryBackend()
	return NewStore(backend, Config{}), backend
}

// ============================================================================
// Exemption Tests
// ============================================================================

func TestStore_Exemptions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	added, err := s.ExemptAdd(ctx, "alice")
	if err != nil || !added {
		t.Fatalf("ExemptAdd = %v, %v", added, err)
	}

	// Idempotent re-add.
	added, err = s.ExemptAdd(ctx, "alice")
	if err != nil || added {
		t.Fatalf("second ExemptAdd = %v, %v, want no-op", added, err)
	}

	if !s.IsExempt(ctx, "alice") {
		t.Error("alice should be exempt")
	}
	if s.IsExempt(ctx, "bob") {
		t.Error("bob should not be exempt")
	}

	removed, err := s.ExemptRemove(ctx, "alice")
	if err != nil || !removed {
		t.Fatalf("ExemptRemove = %v, %v", removed, err)
	}
	if s.IsExempt(ctx, "alice") {
		t.Error("alice should no longer be exempt")
	}

	if _, err := s.ExemptAdd(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty id: got %v, want ErrInvalidArgument", err)
	}
}

// ============================================================================
// Override Tests
// ============================================================================

func TestStore_UserLimits(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, existed, err := s.SetUserLimit(ctx, "u1", 5); err != nil || existed {
		t.Fatalf("SetUserLimit = existed=%v err=%v", existed, err)
	}

	// Overwrite returns the prior value.
	prev, existed, err := s.SetUserLimit(ctx, "u1", 10)
	if err != nil || !existed || prev != 5 {
		t.Fatalf("overwrite: prev=%d existed=%v err=%v, want prev=5", prev, existed, err)
	}

	limit, ok := s.UserLimit(ctx, "u1")
	if !ok || limit != 10 {
		t.Fatalf("UserLimit = %d, %v", limit, ok)
	}

	prev, err = s.RemoveUserLimit(ctx, "u1")
	if err != nil || prev != 10 {
		t.Fatalf("RemoveUserLimit = %d, %v", prev, err)
	}

	if _, err := s.RemoveUserLimit(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove missing: got %v, want ErrNotFound", err)
	}

	if _, _, err := s.SetUserLimit(ctx, "u1", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative limit: got %v, want ErrInvalidArgument", err)
	}
}

func TestStore_ListOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if _, _, err := s.SetUserLimit(ctx, id, 1); err != nil {
			t.Fatal(err)
		}
	}

	list := s.UserLimits(ctx)
	if len(list) != 3 || list[0].ID != "c" || list[1].ID != "a" || list[2].ID != "b" {
		t.Errorf("insertion order not preserved: %v", list)
	}

	// Overwriting must not change position.
	s.SetUserLimit(ctx, "a", 9)
	list = s.UserLimits(ctx)
	if list[1].ID != "a" || list[1].Limit != 9 {
		t.Errorf("overwrite moved entry: %v", list)
	}
}

// ============================================================================
// Group Mode Tests
// ============================================================================

func TestStore_GroupModes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Default is shared.
	if mode := s.GroupModeFor(ctx, "g1"); mode != ModeShared {
		t.Errorf("default mode = %v, want shared", mode)
	}

	prev, err := s.SetGroupMode(ctx, "g1", ModeIndividual)
	if err != nil || prev != ModeShared {
		t.Fatalf("SetGroupMode = %v, %v", prev, err)
	}
	if mode := s.GroupModeFor(ctx, "g1"); mode != ModeIndividual {
		t.Errorf("mode = %v, want individual", mode)
	}

	if _, err := s.SetGroupMode(ctx, "g1", "pooled"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad mode: got %v, want ErrInvalidArgument", err)
	}
}

// ============================================================================
// Time Period Tests
// ============================================================================

func TestStore_Periods(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	idx, err := s.AddPeriod(ctx, TimePeriodRule{Start: "09:00", End: "17:00", Limit: 5, Enabled: true})
	if err != nil || idx != 0 {
		t.Fatalf("AddPeriod = %d, %v", idx, err)
	}
	idx, err = s.AddPeriod(ctx, TimePeriodRule{Start: "22:00", End: "02:00", Limit: 2, Enabled: true})
	if err != nil || idx != 1 {
		t.Fatalf("AddPeriod = %d, %v", idx, err)
	}

	noon := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
	i, rule, ok := s.ActivePeriod(ctx, noon)
	if !ok || i != 0 || rule.Limit != 5 {
		t.Errorf("ActivePeriod(noon) = %d, %+v, %v", i, rule, ok)
	}

	lateNight := time.Date(2025, 3, 16, 23, 30, 0, 0, time.UTC)
	i, rule, ok = s.ActivePeriod(ctx, lateNight)
	if !ok || i != 1 || rule.Limit != 2 {
		t.Errorf("ActivePeriod(23:30) = %d, %+v, %v", i, rule, ok)
	}

	// Disabled rules never match.
	if err := s.SetPeriodEnabled(ctx, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := s.ActivePeriod(ctx, lateNight); ok {
		t.Error("disabled rule matched")
	}

	// Removing shifts later indexes down.
	removed, err := s.RemovePeriod(ctx, 0)
	if err != nil || removed.Limit != 5 {
		t.Fatalf("RemovePeriod = %+v, %v", removed, err)
	}
	periods := s.Periods(ctx)
	if len(periods) != 1 || periods[0].Start != "22:00" {
		t.Errorf("Periods after remove = %v", periods)
	}

	if _, err := s.RemovePeriod(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove bad index: got %v, want ErrNotFound", err)
	}
	if _, err := s.AddPeriod(ctx, TimePeriodRule{Start: "33:00", End: "17:00"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("malformed window: got %v, want ErrInvalidArgument", err)
	}
}

func TestStore_OverlappingPeriods_FirstWins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.AddPeriod(ctx, TimePeriodRule{Start: "08:00", End: "18:00", Limit: 10, Enabled: true})
	s.AddPeriod(ctx, TimePeriodRule{Start: "11:00", End: "13:00", Limit: 3, Enabled: true})

	// Both contain noon; configuration order wins, not the narrower window.
	noon := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
	i, rule, ok := s.ActivePeriod(ctx, noon)
	if !ok || i != 0 || rule.Limit != 10 {
		t.Errorf("overlap: got index %d limit %d, want first configured rule", i, rule.Limit)
	}
}

// ============================================================================
// Persistence Tests
// ============================================================================

func TestStore_PersistsAcrossInstances(t *testing.T) {
	backend := store.NewMemoryBackend()
	ctx := context.Background()

	s1 := NewStore(backend, Config{})
	s1.SetUserLimit(ctx, "u1", 7)
	s1.ExemptAdd(ctx, "root")
	s1.AddPeriod(ctx, TimePeriodRule{Start: "09:00", End: "17:00", Limit: 5, Enabled: true})
	s1.SetResetTime(ctx, clock.TimeOfDay{Hour: 6})

	// A second instance sharing the backend sees the same rules.
	s2 := NewStore(backend, Config{})
	if limit, ok := s2.UserLimit(ctx, "u1"); !ok || limit != 7 {
		t.Errorf("UserLimit across instances = %d, %v", limit, ok)
	}
	if !s2.IsExempt(ctx, "root") {
		t.Error("exemption not shared across instances")
	}
	if len(s2.Periods(ctx)) != 1 {
		t.Error("periods not shared across instances")
	}
	if rt := s2.ResetTime(ctx); rt.Hour != 6 {
		t.Errorf("reset time across instances = %v", rt)
	}
}

func TestStore_MalformedStoredPeriodDisabled(t *testing.T) {
	backend := store.NewMemoryBackend()
	ctx := context.Background()

	// Simulate a corrupted stored rule.
	backend.Set(ctx, "rules:periods", `[{"start":"99:99","end":"17:00","limit":5,"enabled":true}]`, 0)

	s := NewStore(backend, Config{})
	noon := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
	if _, _, ok := s.ActivePeriod(ctx, noon); ok {
		t.Error("malformed stored rule must never be active")
	}
	if len(s.Periods(ctx)) != 1 {
		t.Error("malformed rule should still be listed (as disabled)")
	}
}

func TestStore_Seed(t *testing.T) {
	backend := store.NewMemoryBackend()
	ctx := context.Background()

	s := NewStore(backend, Config{})
	s.SetUserLimit(ctx, "u1", 3) // persisted before seeding

	err := s.Seed(ctx, Snapshot{
		Exempt:     []string{"root"},
		UserLimits: []LimitOverride{{ID: "u1", Limit: 99}, {ID: "u2", Limit: 4}},
		ResetTime:  "06:30",
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	// Persisted state wins over seeded state.
	if limit, _ := s.UserLimit(ctx, "u1"); limit != 3 {
		t.Errorf("seed overwrote persisted override: %d", limit)
	}
	if limit, ok := s.UserLimit(ctx, "u2"); !ok || limit != 4 {
		t.Errorf("seeded override missing: %d, %v", limit, ok)
	}
	if rt := s.ResetTime(ctx); rt.String() != "06:30" {
		t.Errorf("seeded reset time = %v", rt)
	}
}
