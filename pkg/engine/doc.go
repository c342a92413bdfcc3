// Package engine implements the admission decision pipeline: per-request
// abuse detection, rule-priority quota resolution, and atomic ledger
// admission against a shared store.
//
// # Decision Pipeline
//
// Evaluate runs three stages in order:
//
//  1. Abuse check: the request timestamp is pushed into the caller's
//     sliding window and the fast-burst and sustained-rate thresholds are
//     evaluated. A blocked caller is rejected immediately with
//     reason=abuse_blocked, without consulting the ledger.
//  2. Resolution: priority rules select the effective limit and counting
//     scope. Tier precedence is exempt > time_period > user > group >
//     default; exempt is terminal and always admits. Scope selection is
//     independent of tier: shared-mode groups charge the group counter,
//     private chats and individual-mode groups charge the user counter.
//  3. Admission: the chosen counter is checked and incremented as one
//     atomic store operation, so concurrent callers can never push usage
//     above the limit.
//
// # Logical Days
//
// Counters are bucketed by logical day, whose boundary is the configured
// reset time rather than calendar midnight. Counter keys follow
//
//	scope:<kind>:<id>:<day>[:<periodIndex>]
//
// and expire at the next boundary via the store's native TTL, so no
// background sweep is required. When a time-period rule is active its
// usage lands in a separate per-period bucket, tracked independently of
// the plain daily counter.
//
// # Failure Policy
//
// The engine fails closed: when the shared store is unavailable the
// verdict is a denial and the error is surfaced to the host. Granting
// unlimited access during an outage would make every outage a quota
// bypass.
package engine
