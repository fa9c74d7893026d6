// Package store implements kvault's domain layer: the authentication table,
// the key/value table, per-user quotas, the shared MRU cache, and the
// incremental persistence hook that ties a successful mutation to a durable
// log record before it is acknowledged.
//
// Store composes internal/shardmap (the two tables), internal/quota (three
// trackers per user), internal/mru (one shared cache) and internal/persist
// (the log) behind small, individually locked methods rather than one
// class-wide lock: every exported method here takes exactly the lock(s)
// its operation needs and returns a typed result plus a sentinel error,
// leaving wire-token translation to internal/session.
package store
