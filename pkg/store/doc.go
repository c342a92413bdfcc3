// Package store provides the uniform adapter over the shared atomic
// key-value store that backs quota counters, abuse window logs, block state,
// and rule persistence.
//
// # Backends
//
// Two implementations share the Backend interface:
//
//   - RedisBackend: the production backend. Check-and-increment runs as a
//     server-side Lua script and window-log maintenance as a transactional
//     pipeline, so decisions stay race-free even across multiple engine
//     processes sharing one Redis.
//
//   - MemoryBackend: a process-local backend with matching semantics,
//     including key expiry. Used in tests and single-instance deployments.
//
// # Atomicity
//
// The contract deliberately exposes compound primitives (IncrWithLimit,
// WindowAdd, CompareAndSet) instead of plain get/set pairs: neither an
// admission decision nor a block-record transition may be assembled from
// two separate round trips, which would race under concurrent load.
//
// # Error Policy
//
// Every failure is wrapped in an *OpError that matches ErrUnavailable via
// errors.Is. Operations carry a bounded timeout; nothing here blocks
// indefinitely.
package store
