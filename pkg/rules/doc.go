// Package rules holds the administrative rule state that drives quota
// resolution: the exemption set, per-user and per-group limit overrides,
// group accounting modes, ordered time-period rules, and the daily reset
// time.
//
// Rules are persisted in the shared store under fixed well-known keys and
// cached locally with a short validity window. Reads never block an
// admission decision on the backend: a stale rule may apply to requests in
// flight, which is acceptable - the engine provides best-effort rule
// freshness, not linearizable rule consistency.
//
// List operations return stable, deterministic order (insertion order for
// overrides, configured order for time periods) so index-based admin
// commands are well-defined across repeated reads.
package rules
