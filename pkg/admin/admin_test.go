package admin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/engine"
	"silverline-hq/portcullis/pkg/history"
	"silverline-hq/portcullis/pkg/rules"
	"silverline-hq/portcullis/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryBackend, *history.MemoryStorage) {
	t.Helper()

	backend := store.NewMemoryBackend()
	ruleStore := rules.NewStore(backend, rules.Config{})
	ledger := engine.NewLedger(backend, nil)
	detector := engine.NewDetector(backend, engine.AbuseConfig{
		Enabled:              true,
		FastWindow:           10 * time.Second,
		FastThreshold:        5,
		SustainedWindow:      60 * time.Second,
		SustainedThreshold:   15,
		BlockDuration:        10 * time.Minute,
		NotificationCooldown: 5 * time.Minute,
	}, nil)
	archive := history.NewMemoryStorage()
	queries := history.NewService(archive)

	svc := New(ruleStore, ledger, detector, queries, archive, backend, clock.TimeOfDay{})
	return svc, backend, archive
}

// ============================================================================
// Rule Management
// ============================================================================

func TestService_LimitManagement(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	prev, existed, err := svc.SetUserLimit(ctx, "alice", 50)
	if err != nil {
		t.Fatalf("SetUserLimit: %v", err)
	}
	if existed || prev != 0 {
		t.Errorf("first set reported prior value %d (existed=%v)", prev, existed)
	}

	prev, existed, err = svc.SetUserLimit(ctx, "alice", 75)
	if err != nil {
		t.Fatalf("SetUserLimit update: %v", err)
	}
	if !existed || prev != 50 {
		t.Errorf("update: prev = %d, existed = %v, want 50, true", prev, existed)
	}

	if limit, ok := svc.UserLimit(ctx, "alice"); !ok || limit != 75 {
		t.Errorf("UserLimit = %d, %v, want 75, true", limit, ok)
	}

	if _, _, err := svc.SetGroupLimit(ctx, "ops", 100); err != nil {
		t.Fatalf("SetGroupLimit: %v", err)
	}
	if limits := svc.GroupLimits(ctx); len(limits) != 1 || limits[0].ID != "ops" {
		t.Errorf("GroupLimits = %+v, want single ops entry", limits)
	}

	if _, err := svc.RemoveUserLimit(ctx, "alice"); err != nil {
		t.Fatalf("RemoveUserLimit: %v", err)
	}
	if _, err := svc.RemoveUserLimit(ctx, "alice"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("second removal error = %v, want ErrNotFound", err)
	}
}

func TestService_GroupMode(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if mode := svc.GroupMode(ctx, "ops"); mode != rules.ModeShared {
		t.Errorf("default mode = %q, want shared", mode)
	}
	prev, err := svc.SetGroupMode(ctx, "ops", rules.ModeIndividual)
	if err != nil {
		t.Fatalf("SetGroupMode: %v", err)
	}
	if prev != rules.ModeShared {
		t.Errorf("prev mode = %q, want shared", prev)
	}
	if mode := svc.GroupMode(ctx, "ops"); mode != rules.ModeIndividual {
		t.Errorf("mode after set = %q, want individual", mode)
	}
}

func TestService_Exemptions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	added, err := svc.ExemptAdd(ctx, "root")
	if err != nil || !added {
		t.Fatalf("ExemptAdd = %v, %v", added, err)
	}
	if added, _ := svc.ExemptAdd(ctx, "root"); added {
		t.Error("duplicate ExemptAdd reported added")
	}
	if list := svc.ExemptList(ctx); len(list) != 1 || list[0] != "root" {
		t.Errorf("ExemptList = %v", list)
	}
	if removed, _ := svc.ExemptRemove(ctx, "root"); !removed {
		t.Error("ExemptRemove reported not found")
	}
}

func TestService_Periods(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	idx, err := svc.AddPeriod(ctx, rules.TimePeriodRule{
		Start:   "09:00",
		End:     "17:00",
		Limit:   5,
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("AddPeriod: %v", err)
	}
	if idx != 0 {
		t.Errorf("index = %d, want 0", idx)
	}

	if err := svc.SetPeriodEnabled(ctx, 0, false); err != nil {
		t.Fatalf("SetPeriodEnabled: %v", err)
	}
	if periods := svc.Periods(ctx); len(periods) != 1 || periods[0].Enabled {
		t.Errorf("Periods = %+v, want one disabled rule", periods)
	}

	if _, err := svc.RemovePeriod(ctx, 5); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("RemovePeriod out of range error = %v, want ErrNotFound", err)
	}
	if _, err := svc.RemovePeriod(ctx, 0); err != nil {
		t.Fatalf("RemovePeriod: %v", err)
	}
}

// ============================================================================
// Counter Resets
// ============================================================================

func TestService_Resets(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	seed := map[string]string{
		"scope:user:alice:2025-03-16":   "4",
		"scope:user:alice:2025-03-16:0": "2",
		"scope:user:bob:2025-03-16":     "1",
		"scope:group:ops:2025-03-16":    "9",
	}
	for k, v := range seed {
		if err := backend.Set(ctx, k, v, 0); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}

	n, err := svc.ResetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ResetUser: %v", err)
	}
	if n != 2 {
		t.Errorf("ResetUser cleared %d keys, want 2", n)
	}

	if _, err := svc.ResetUser(ctx, ""); !errors.Is(err, rules.ErrInvalidArgument) {
		t.Errorf("empty user error = %v, want ErrInvalidArgument", err)
	}

	if n, _ := svc.ResetGroup(ctx, "ops"); n != 1 {
		t.Errorf("ResetGroup cleared %d keys, want 1", n)
	}
	if n, _ := svc.ResetAll(ctx); n != 1 {
		t.Errorf("ResetAll cleared %d keys, want 1 remaining", n)
	}
}

// ============================================================================
// Reset Time
// ============================================================================

func TestService_ResetTime(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if got := svc.ResetTime(ctx); got.String() != "00:00" {
		t.Errorf("initial reset time = %s, want 00:00", got)
	}

	prev, err := svc.SetResetTime(ctx, "06:30")
	if err != nil {
		t.Fatalf("SetResetTime: %v", err)
	}
	if prev.String() != "00:00" {
		t.Errorf("prev = %s, want 00:00", prev)
	}
	if got := svc.ResetTime(ctx); got.String() != "06:30" {
		t.Errorf("reset time = %s, want 06:30", got)
	}

	if _, err := svc.SetResetTime(ctx, "25:00"); !errors.Is(err, rules.ErrInvalidArgument) {
		t.Errorf("invalid value error = %v, want ErrInvalidArgument", err)
	}

	if _, err := svc.RestoreResetTime(ctx); err != nil {
		t.Fatalf("RestoreResetTime: %v", err)
	}
	if got := svc.ResetTime(ctx); got.String() != "00:00" {
		t.Errorf("restored reset time = %s, want 00:00", got)
	}
}

// ============================================================================
// Security
// ============================================================================

func TestService_Security(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cfg := svc.SecurityConfig()
	if !cfg.Enabled || cfg.FastThreshold != 5 || cfg.BlockDuration != 10*time.Minute {
		t.Errorf("SecurityConfig = %+v", cfg)
	}

	svc.SetAbuseDetection(false)
	if svc.SecurityConfig().Enabled {
		t.Error("detector still reported enabled after disable")
	}
	svc.SetAbuseDetection(true)

	if found, err := svc.Unblock(ctx, "nobody"); err != nil || found {
		t.Errorf("Unblock(nobody) = %v, %v, want false, nil", found, err)
	}
	blocked, err := svc.Blocklist(ctx)
	if err != nil {
		t.Fatalf("Blocklist: %v", err)
	}
	if len(blocked) != 0 {
		t.Errorf("Blocklist = %+v, want empty", blocked)
	}
}

func TestService_InspectUser(t *testing.T) {
	backend := store.NewMemoryBackend()
	ruleStore := rules.NewStore(backend, rules.Config{})
	detector := engine.NewDetector(backend, engine.AbuseConfig{
		Enabled:              true,
		FastWindow:           10 * time.Second,
		FastThreshold:        5,
		SustainedWindow:      60 * time.Second,
		SustainedThreshold:   15,
		BlockDuration:        10 * time.Minute,
		NotificationCooldown: 5 * time.Minute,
	}, nil)
	svc := New(ruleStore, engine.NewLedger(backend, nil), detector, nil, nil, backend, clock.TimeOfDay{})
	ctx := context.Background()

	// A little traffic, under every threshold.
	now := time.Now()
	for i := 3; i > 0; i-- {
		detector.Check(ctx, "mallory", now.Add(-time.Duration(i)*time.Second))
	}

	info, err := svc.InspectUser(ctx, "mallory")
	if err != nil {
		t.Fatalf("InspectUser: %v", err)
	}
	if info.Blocked {
		t.Errorf("InspectUser = %+v, want unblocked", info)
	}
	if info.FastCount != 3 || info.SustainedCount != 3 {
		t.Errorf("counts = %d/%d, want 3/3", info.FastCount, info.SustainedCount)
	}

	// Push past the fast threshold and inspect again.
	for i := 0; i < 4; i++ {
		detector.Check(ctx, "mallory", now.Add(time.Duration(i)*time.Millisecond))
	}
	info, err = svc.InspectUser(ctx, "mallory")
	if err != nil {
		t.Fatalf("InspectUser after block: %v", err)
	}
	if !info.Blocked || info.TriggeredBy != "fast" {
		t.Errorf("InspectUser = %+v, want an active fast block", info)
	}

	if _, err := svc.InspectUser(ctx, ""); !errors.Is(err, rules.ErrInvalidArgument) {
		t.Errorf("InspectUser(\"\") error = %v, want ErrInvalidArgument", err)
	}
}

// ============================================================================
// Usage Queries and Status
// ============================================================================

func TestService_UsageQueries(t *testing.T) {
	svc, _, archive := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := engine.UsageRecord{
			ID:        fmt.Sprintf("rec-%d", i),
			UserID:    "alice",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			ScopeKey:  "scope:user:alice:test",
			Allowed:   true,
		}
		if err := archive.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	records, err := svc.UserHistory(ctx, "alice", 7)
	if err != nil {
		t.Fatalf("UserHistory: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("UserHistory returned %d records, want 3", len(records))
	}

	stats, err := svc.Analytics(ctx, 2)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if stats.Total != 3 || stats.Allowed != 3 {
		t.Errorf("Analytics = %+v, want 3 total / 3 allowed", stats)
	}

	top, err := svc.TopUsers(ctx, 7, 10)
	if err != nil {
		t.Fatalf("TopUsers: %v", err)
	}
	if len(top) != 1 || top[0].ID != "alice" || top[0].Count != 3 {
		t.Errorf("TopUsers = %+v", top)
	}
}

func TestService_ArchiveDisabled(t *testing.T) {
	backend := store.NewMemoryBackend()
	ruleStore := rules.NewStore(backend, rules.Config{})
	ledger := engine.NewLedger(backend, nil)
	detector := engine.NewDetector(backend, engine.AbuseConfig{Enabled: true}, nil)
	svc := New(ruleStore, ledger, detector, nil, nil, backend, clock.TimeOfDay{})

	ctx := context.Background()
	if _, err := svc.Analytics(ctx, 7); !errors.Is(err, ErrArchiveDisabled) {
		t.Errorf("Analytics error = %v, want ErrArchiveDisabled", err)
	}
	if _, err := svc.UserHistory(ctx, "alice", 7); !errors.Is(err, ErrArchiveDisabled) {
		t.Errorf("UserHistory error = %v, want ErrArchiveDisabled", err)
	}

	status := svc.Status(ctx)
	if status.ArchivedRecords != -1 {
		t.Errorf("ArchivedRecords = %d, want -1 when archive disabled", status.ArchivedRecords)
	}
}

func TestService_Status(t *testing.T) {
	svc, _, archive := newTestService(t)
	ctx := context.Background()

	if err := archive.Insert(ctx, engine.UsageRecord{
		ID: "r1", UserID: "alice", Timestamp: time.Now(), Allowed: true,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	status := svc.Status(ctx)
	if !status.Healthy || !status.StoreOK {
		t.Errorf("status unhealthy: %+v", status)
	}
	if !status.AbuseDetection {
		t.Error("abuse detection not reported enabled")
	}
	if status.ResetTime != "00:00" {
		t.Errorf("ResetTime = %q, want 00:00", status.ResetTime)
	}
	if status.ArchivedRecords != 1 {
		t.Errorf("ArchivedRecords = %d, want 1", status.ArchivedRecords)
	}
}
