package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"silverline-hq/portcullis/pkg/store"
)

// Ledger performs atomic check-and-increment admissions against the shared
// store and emits per-call usage records.
//
// Admission is atomic end-to-end: the read, the limit comparison, and the
// increment happen as one indivisible store operation, so concurrent
// callers against one counter can never push it above the limit.
type Ledger struct {
	backend store.Backend
	sink    RecordSink
	logger  *slog.Logger
}

// NewLedger creates a ledger. sink may be nil to disable usage records.
func NewLedger(backend store.Backend, sink RecordSink) *Ledger {
	return &Ledger{
		backend: backend,
		sink:    sink,
		logger:  slog.Default().With("component", "ledger"),
	}
}

// Admit charges one call against the resolved counter. Returns the counter
// value after the attempt and whether the call was admitted. The counter
// expires at the logical-day boundary.
//
// A usage record is emitted best-effort for both outcomes; record failures
// never affect the decision.
func (l *Ledger) Admit(ctx context.Context, res Resolution, req Request, at time.Time) (store.IncrResult, error) {
	result, err := l.backend.IncrWithLimit(ctx, res.ScopeKey, res.Limit, res.BoundaryTTL)
	if err != nil {
		return store.IncrResult{}, fmt.Errorf("admit %s: %w", res.ScopeKey, err)
	}

	l.record(ctx, UsageRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		GroupID:   req.GroupID,
		Timestamp: at,
		ScopeKey:  res.ScopeKey,
		Allowed:   result.Allowed,
	})

	return result, nil
}

// Usage returns the current counter value for a scope key, zero when the
// counter does not exist.
func (l *Ledger) Usage(ctx context.Context, scopeKey string) (int64, error) {
	raw, ok, err := l.backend.Get(ctx, scopeKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		l.logger.Warn("counter holds a non-numeric value", "key", scopeKey, "value", raw)
		return 0, nil
	}
	return n, nil
}

// ResetUser clears all counters charged to the user's own scope, across
// days and period buckets. Idempotent.
func (l *Ledger) ResetUser(ctx context.Context, userID string) (int, error) {
	return l.resetPattern(ctx, fmt.Sprintf("scope:user:%s:*", userID))
}

// ResetGroup clears all counters charged to the group scope. Idempotent.
func (l *Ledger) ResetGroup(ctx context.Context, groupID string) (int, error) {
	return l.resetPattern(ctx, fmt.Sprintf("scope:group:%s:*", groupID))
}

// ResetAll clears every usage counter. Idempotent.
func (l *Ledger) ResetAll(ctx context.Context) (int, error) {
	return l.resetPattern(ctx, "scope:*")
}

func (l *Ledger) resetPattern(ctx context.Context, pattern string) (int, error) {
	keys, err := l.backend.Keys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("list counters %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := l.backend.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("clear counters %s: %w", pattern, err)
	}
	l.logger.Info("counters reset", "pattern", pattern, "count", len(keys))
	return len(keys), nil
}

func (l *Ledger) record(ctx context.Context, rec UsageRecord) {
	if l.sink == nil {
		return
	}
	l.sink.Record(ctx, rec)
}
