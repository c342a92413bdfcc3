package engine

import (
	"context"
	"fmt"
	"time"

	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/rules"
)

// Resolution is the outcome of rule-priority resolution: which counter a
// request is charged against, under which limit, and which tier decided.
type Resolution struct {
	// ScopeKey is the counter key, empty for exempt callers.
	ScopeKey string

	// Limit is the effective limit (-1 for exempt callers).
	Limit int64

	// Tier is the priority rule that supplied the limit.
	Tier Tier

	// PeriodIndex is the matched time-period rule index, -1 when no
	// period is active.
	PeriodIndex int

	// Day is the logical day key the counter belongs to.
	Day string

	// BoundaryTTL is how long until the counter's logical day ends, used
	// as the counter expiry.
	BoundaryTTL time.Duration
}

// Resolver applies priority rules to a request context and selects the
// effective limit and counting scope.
//
// Tier precedence is strict: exempt, then the first enabled matching
// time-period rule, then user override, then group override, then the
// global default. Scope selection is independent of tier: a shared-mode
// group is charged on the group counter even when a user or time-period
// rule supplied the limit.
type Resolver struct {
	rules        *rules.Store
	defaultLimit int64
}

// NewResolver creates a resolver over the given rule store.
func NewResolver(ruleStore *rules.Store, defaultLimit int64) *Resolver {
	return &Resolver{rules: ruleStore, defaultLimit: defaultLimit}
}

// Resolve selects the scope and limit for a request at the given time.
func (r *Resolver) Resolve(ctx context.Context, req Request, at time.Time) Resolution {
	resetTime := r.rules.ResetTime(ctx)
	day := clock.LogicalDay(at, resetTime)
	ttl := clock.UntilBoundary(at, resetTime)

	if r.rules.IsExempt(ctx, req.UserID) {
		return Resolution{Limit: -1, Tier: TierExempt, PeriodIndex: -1, Day: day, BoundaryTTL: ttl}
	}

	// Scope: user counter for private chats and individual-mode groups,
	// group counter for shared-mode groups.
	kind, id := "user", req.UserID
	if req.GroupID != "" && r.rules.GroupModeFor(ctx, req.GroupID) == rules.ModeShared {
		kind, id = "group", req.GroupID
	}

	res := Resolution{PeriodIndex: -1, Day: day, BoundaryTTL: ttl}

	if index, rule, ok := r.rules.ActivePeriod(ctx, at); ok {
		res.Tier = TierTimePeriod
		res.Limit = int64(rule.Limit)
		res.PeriodIndex = index
		// Period usage is bucketed separately from the plain daily
		// counter so the two are tracked independently.
		res.ScopeKey = fmt.Sprintf("scope:%s:%s:%s:%d", kind, id, day, index)
		return res
	}

	res.ScopeKey = fmt.Sprintf("scope:%s:%s:%s", kind, id, day)

	if limit, ok := r.rules.UserLimit(ctx, req.UserID); ok {
		res.Tier = TierUser
		res.Limit = int64(limit)
		return res
	}
	if req.GroupID != "" {
		if limit, ok := r.rules.GroupLimit(ctx, req.GroupID); ok {
			res.Tier = TierGroup
			res.Limit = int64(limit)
			return res
		}
	}

	res.Tier = TierDefault
	res.Limit = r.defaultLimit
	return res
}
