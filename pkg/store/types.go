package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is reported when the backing store could not complete an
// operation. Callers treat the request as not yet counted and fail closed.
var ErrUnavailable = errors.New("store unavailable")

// OpError wraps a failed store operation with its context.
// errors.Is(err, ErrUnavailable) matches every OpError.
type OpError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error { return e.Err }

// Is reports ErrUnavailable for any operation failure.
func (e *OpError) Is(target error) bool { return target == ErrUnavailable }

// IncrResult is the outcome of an atomic check-and-increment.
type IncrResult struct {
	// Allowed reports whether the counter was under the limit and was
	// incremented.
	Allowed bool

	// Used is the counter value after the operation. When Allowed is false
	// this is the unchanged current value.
	Used int64
}

// Backend is the uniform interface to the shared atomic key-value store.
//
// Every mutation that participates in an admission decision is a single
// round-trip atomic operation on the backend; no method performs a
// client-side read-modify-write across separate calls. Implementations must
// be safe for concurrent use from multiple goroutines and, for shared
// backends, from multiple process instances.
type Backend interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// IncrWithLimit atomically increments the counter at key if and only if
	// its current value is below limit. On first creation the key expires
	// after ttl. The compare and the increment are indivisible: N concurrent
	// callers can never push the counter above limit.
	IncrWithLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (IncrResult, error)

	// CompareAndSet stores value under key only when the key's current value
	// equals expected; an empty expected means the key must be absent. The
	// compare and the write are indivisible. Returns whether the write
	// happened and the value at the key afterwards.
	CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (swapped bool, current string, err error)

	// WindowAdd appends ts to the sorted timestamp log at key, prunes
	// entries older than keep, refreshes the key's expiry to keep, and
	// returns the number of remaining entries at or after each cutoff, in
	// order. The whole sequence is one atomic round trip.
	WindowAdd(ctx context.Context, key string, ts time.Time, keep time.Duration, cutoffs ...time.Time) ([]int64, error)

	// WindowCount returns the number of logged timestamps at or after since,
	// without recording anything.
	WindowCount(ctx context.Context, key string, since time.Time) (int64, error)

	// Keys returns the keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
