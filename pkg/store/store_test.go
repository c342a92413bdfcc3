package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Backend Conformance Tests (run against MemoryBackend; RedisBackend runs
// the same suite in redis_test.go when a server is available)
// ============================================================================

func testBackendConformance(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("GetSet", func(t *testing.T) {
		if _, ok, err := b.Get(ctx, "conf:missing"); err != nil || ok {
			t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
		}

		if err := b.Set(ctx, "conf:k", "v1", 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
		val, ok, err := b.Get(ctx, "conf:k")
		if err != nil || !ok || val != "v1" {
			t.Fatalf("Get = %q ok=%v err=%v, want v1", val, ok, err)
		}

		if err := b.Delete(ctx, "conf:k"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, _ := b.Get(ctx, "conf:k"); ok {
			t.Fatal("key survived Delete")
		}
	})

	t.Run("IncrWithLimit", func(t *testing.T) {
		key := "conf:counter"
		defer b.Delete(ctx, key)

		for i := int64(1); i <= 3; i++ {
			res, err := b.IncrWithLimit(ctx, key, 3, time.Minute)
			if err != nil {
				t.Fatalf("IncrWithLimit: %v", err)
			}
			if !res.Allowed || res.Used != i {
				t.Fatalf("attempt %d: got %+v", i, res)
			}
		}

		res, err := b.IncrWithLimit(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("IncrWithLimit over limit: %v", err)
		}
		if res.Allowed || res.Used != 3 {
			t.Fatalf("over limit: got %+v, want denied at 3", res)
		}
	})

	t.Run("Window", func(t *testing.T) {
		key := "conf:window"
		defer b.Delete(ctx, key)

		now := time.Now()
		for i := 0; i < 5; i++ {
			ts := now.Add(time.Duration(i) * time.Millisecond)
			if _, err := b.WindowAdd(ctx, key, ts, time.Minute); err != nil {
				t.Fatalf("WindowAdd: %v", err)
			}
		}

		counts, err := b.WindowAdd(ctx, key, now.Add(5*time.Millisecond), time.Minute, now.Add(-time.Second))
		if err != nil {
			t.Fatalf("WindowAdd with cutoff: %v", err)
		}
		if len(counts) != 1 || counts[0] != 6 {
			t.Fatalf("cutoff counts = %v, want [6]", counts)
		}

		n, err := b.WindowCount(ctx, key, now.Add(-time.Second))
		if err != nil || n != 6 {
			t.Fatalf("WindowCount = %d err=%v, want 6", n, err)
		}
	})

	t.Run("CompareAndSet", func(t *testing.T) {
		key := "conf:cas"
		defer b.Delete(ctx, key)

		// Create-if-absent.
		swapped, current, err := b.CompareAndSet(ctx, key, "", "v1", time.Minute)
		if err != nil || !swapped || current != "v1" {
			t.Fatalf("CompareAndSet(absent) = %v %q err=%v", swapped, current, err)
		}

		// A stale expectation loses and reports the winner's value.
		swapped, current, err = b.CompareAndSet(ctx, key, "", "v2", time.Minute)
		if err != nil || swapped || current != "v1" {
			t.Fatalf("CompareAndSet(stale) = %v %q err=%v", swapped, current, err)
		}

		// A matching expectation swaps.
		swapped, current, err = b.CompareAndSet(ctx, key, "v1", "v2", time.Minute)
		if err != nil || !swapped || current != "v2" {
			t.Fatalf("CompareAndSet(match) = %v %q err=%v", swapped, current, err)
		}

		val, ok, err := b.Get(ctx, key)
		if err != nil || !ok || val != "v2" {
			t.Fatalf("Get after swap = %q ok=%v err=%v", val, ok, err)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		b.Set(ctx, "conf:pat:1", "x", 0)
		b.Set(ctx, "conf:pat:2", "x", 0)
		defer b.Delete(ctx, "conf:pat:1", "conf:pat:2")

		keys, err := b.Keys(ctx, "conf:pat:*")
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(keys) != 2 {
			t.Fatalf("Keys = %v, want 2 entries", keys)
		}
	})
}

func TestMemoryBackend_Conformance(t *testing.T) {
	testBackendConformance(t, NewMemoryBackend())
}

// ============================================================================
// Race-Freedom Tests
// ============================================================================

func TestMemoryBackend_IncrWithLimit_Concurrent(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	const limit = 10
	const callers = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.IncrWithLimit(ctx, "race:counter", limit, time.Minute)
			if err != nil {
				t.Errorf("IncrWithLimit: %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("allowed %d of %d concurrent callers, want exactly %d", allowed, callers, limit)
	}
}

func TestMemoryBackend_CompareAndSet_SingleWinner(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	const callers = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			swapped, _, err := b.CompareAndSet(ctx, "race:record", "", fmt.Sprintf("w%d", i), time.Minute)
			if err != nil {
				t.Errorf("CompareAndSet: %v", err)
				return
			}
			if swapped {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("%d of %d concurrent creators won, want exactly 1", winners, callers)
	}
}

// ============================================================================
// Expiry Tests
// ============================================================================

func TestMemoryBackend_Expiry(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	current := time.Now()
	b.SetClock(func() time.Time { return current })

	if _, err := b.IncrWithLimit(ctx, "exp:counter", 5, time.Hour); err != nil {
		t.Fatalf("IncrWithLimit: %v", err)
	}

	// Advance past the TTL: the counter restarts from zero.
	current = current.Add(2 * time.Hour)

	res, err := b.IncrWithLimit(ctx, "exp:counter", 5, time.Hour)
	if err != nil {
		t.Fatalf("IncrWithLimit after expiry: %v", err)
	}
	if res.Used != 1 {
		t.Errorf("Used = %d after expiry, want 1", res.Used)
	}
}

// ============================================================================
// Error Wrapping Tests
// ============================================================================

func TestOpError_MatchesUnavailable(t *testing.T) {
	inner := errors.New("connection refused")
	err := &OpError{Op: "get", Key: "k", Err: inner}

	if !errors.Is(err, ErrUnavailable) {
		t.Error("OpError should match ErrUnavailable")
	}
	if !errors.Is(err, inner) {
		t.Error("OpError should unwrap to the inner error")
	}
}
