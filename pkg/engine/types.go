package engine

import (
	"context"
	"time"
)

// Tier identifies which priority rule supplied the effective limit for a
// request.
type Tier string

const (
	// TierExempt means the caller is on the exemption list; no limit
	// applies.
	TierExempt Tier = "exempt"

	// TierTimePeriod means an enabled time-period rule covered the
	// request timestamp.
	TierTimePeriod Tier = "time_period"

	// TierUser means a per-user limit override applied.
	TierUser Tier = "user"

	// TierGroup means a per-group limit override applied.
	TierGroup Tier = "group"

	// TierDefault means the global default limit applied.
	TierDefault Tier = "default"
)

// Reason explains an admission verdict.
type Reason string

const (
	// ReasonExempt: the caller is exempt from all quota checks.
	ReasonExempt Reason = "exempt"

	// ReasonQuotaOK: the call was admitted and charged to a counter.
	ReasonQuotaOK Reason = "quota_ok"

	// ReasonQuotaExceeded: the effective limit is exhausted for the
	// current logical day or period.
	ReasonQuotaExceeded Reason = "quota_exceeded"

	// ReasonAbuseBlocked: the caller is blocked by the abuse detector.
	ReasonAbuseBlocked Reason = "abuse_blocked"
)

// Request is the context of a single admission attempt.
type Request struct {
	// UserID identifies the caller. Required.
	UserID string `json:"user_id"`

	// GroupID identifies the group the request arrived in. Empty for
	// private chats.
	GroupID string `json:"group_id,omitempty"`

	// At is the request timestamp. The zero value means "now".
	At time.Time `json:"at,omitempty"`
}

// Verdict is the admission decision returned to the host. The host is
// responsible for turning it into a user-facing reply.
type Verdict struct {
	// Allowed reports whether the call is admitted.
	Allowed bool `json:"allowed"`

	// Reason explains the decision.
	Reason Reason `json:"reason"`

	// ScopeKey is the counter charged (empty for exempt and blocked
	// verdicts).
	ScopeKey string `json:"scope_key,omitempty"`

	// Tier is the priority rule that supplied the effective limit.
	Tier Tier `json:"tier,omitempty"`

	// Used is the counter value after this request.
	Used int64 `json:"used"`

	// Remaining is how many calls are left today (0 when exhausted;
	// -1 for exempt callers).
	Remaining int64 `json:"remaining"`

	// Limit is the effective limit (-1 for exempt callers).
	Limit int64 `json:"limit"`

	// BlockedUntil is set on abuse-blocked verdicts.
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`

	// Remind is set when Remaining hit a configured reminder threshold,
	// so the host can warn the caller before exhaustion.
	Remind bool `json:"remind,omitempty"`
}

// UsageRecord is an append-only per-call log entry emitted by the ledger
// for history and analytics queries.
type UsageRecord struct {
	// ID is a unique record identifier.
	ID string `json:"id"`

	// UserID is the caller.
	UserID string `json:"user_id"`

	// GroupID is the group, if any.
	GroupID string `json:"group_id,omitempty"`

	// Timestamp is when the admission attempt happened.
	Timestamp time.Time `json:"timestamp"`

	// ScopeKey is the counter the attempt was charged against.
	ScopeKey string `json:"scope_key"`

	// Allowed is the admission outcome.
	Allowed bool `json:"allowed"`
}

// RecordSink receives usage records. Implementations must not block; a
// failed write must never affect an admission decision already made.
type RecordSink interface {
	Record(ctx context.Context, rec UsageRecord)
}
