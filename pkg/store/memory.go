package store

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend with the same semantics as the
// Redis backend, including per-key expiry. It is intended for tests and
// single-instance deployments; state is not shared across processes.
type MemoryBackend struct {
	mu      sync.Mutex
	values  map[string]memoryValue
	windows map[string]memoryWindow
	now     func() time.Time
}

type memoryValue struct {
	value    string
	deadline time.Time
}

type memoryWindow struct {
	entries  []time.Time
	deadline time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:  make(map[string]memoryValue),
		windows: make(map[string]memoryWindow),
		now:     time.Now,
	}
}

// Get implements Backend.
func (b *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.getLocked(key)
	if !ok {
		return "", false, nil
	}
	return v.value, true, nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = memoryValue{value: value, deadline: b.deadline(ttl)}
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		delete(b.values, key)
		delete(b.windows, key)
	}
	return nil
}

// IncrWithLimit implements Backend. The mutex makes the check-and-increment
// indivisible within the process.
func (b *MemoryBackend) IncrWithLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (IncrResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var used int64
	v, ok := b.getLocked(key)
	if ok {
		used, _ = strconv.ParseInt(v.value, 10, 64)
	}

	if used >= limit {
		return IncrResult{Allowed: false, Used: used}, nil
	}

	used++
	deadline := v.deadline
	if !ok {
		deadline = b.deadline(ttl)
	}
	b.values[key] = memoryValue{value: strconv.FormatInt(used, 10), deadline: deadline}

	return IncrResult{Allowed: true, Used: used}, nil
}

// CompareAndSet implements Backend. The mutex makes the compare and the
// write indivisible within the process.
func (b *MemoryBackend) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var current string
	if v, ok := b.getLocked(key); ok {
		current = v.value
	}
	if current != expected {
		return false, current, nil
	}

	b.values[key] = memoryValue{value: value, deadline: b.deadline(ttl)}
	return true, value, nil
}

// WindowAdd implements Backend.
func (b *MemoryBackend) WindowAdd(ctx context.Context, key string, ts time.Time, keep time.Duration, cutoffs ...time.Time) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.windowLocked(key)
	w.entries = append(w.entries, ts)

	oldest := ts.Add(-keep)
	kept := w.entries[:0]
	for _, entry := range w.entries {
		if !entry.Before(oldest) {
			kept = append(kept, entry)
		}
	}
	w.entries = kept
	w.deadline = b.deadline(keep)
	b.windows[key] = w

	counts := make([]int64, len(cutoffs))
	for i, cutoff := range cutoffs {
		for _, entry := range w.entries {
			if !entry.Before(cutoff) {
				counts[i]++
			}
		}
	}
	return counts, nil
}

// WindowCount implements Backend.
func (b *MemoryBackend) WindowCount(ctx context.Context, key string, since time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.windowLocked(key)
	var n int64
	for _, entry := range w.entries {
		if !entry.Before(since) {
			n++
		}
	}
	return n, nil
}

// Keys implements Backend using glob-style matching.
func (b *MemoryBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]struct{})
	for key := range b.values {
		if _, ok := b.getLocked(key); ok {
			seen[key] = struct{}{}
		}
	}
	for key := range b.windows {
		seen[key] = struct{}{}
	}

	var keys []string
	for key := range seen {
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping implements Backend.
func (b *MemoryBackend) Ping(ctx context.Context) error { return nil }

// Close implements Backend.
func (b *MemoryBackend) Close() error { return nil }

// SetClock overrides the time source. Test hook.
func (b *MemoryBackend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *MemoryBackend) getLocked(key string) (memoryValue, bool) {
	v, ok := b.values[key]
	if !ok {
		return memoryValue{}, false
	}
	if !v.deadline.IsZero() && b.now().After(v.deadline) {
		delete(b.values, key)
		return memoryValue{}, false
	}
	return v, true
}

func (b *MemoryBackend) windowLocked(key string) memoryWindow {
	w, ok := b.windows[key]
	if !ok {
		return memoryWindow{}
	}
	if !w.deadline.IsZero() && b.now().After(w.deadline) {
		delete(b.windows, key)
		return memoryWindow{}
	}
	return w
}

func (b *MemoryBackend) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return b.now().Add(ttl)
}
