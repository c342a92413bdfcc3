// Package history archives per-call usage records and serves read-only
// projections over them: per-user history, daily analytics with volume
// distribution buckets, leaderboards, and trends.
//
// The archive is decoupled from the admission path: the Recorder buffers
// writes and flushes them from a background worker, so a slow or failing
// archive never delays or fails an admission decision.
//
// Two Storage implementations are provided: SQLite (durable, the
// default) and an in-memory archive for tests. Retention is enforced by
// a cron-scheduled Pruner, since the archive has no native TTLs.
package history
