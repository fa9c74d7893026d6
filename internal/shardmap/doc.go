// Package shardmap implements the fixed-bucket, per-bucket-locked
// associative container both the auth table and the KV table are built on.
//
// Keys are FNV-hashed and routed to a fixed set of owning buckets, each
// guarded by its own mutex rather than one lock for the whole table. It is
// one generic type that:
//
//   - fixes its bucket count at construction (no resizing),
//   - takes exactly one bucket's mutex for any single-key operation, and
//   - supports two-phase locking across every bucket for the handful of
//     operations that need a cross-shard consistent view (snapshotting and
//     clearing).
//
// # Callback-under-lock
//
// Insert, Upsert, and Remove all accept an optional callback invoked while
// the bucket's mutex is still held. internal/store uses this to append a
// durable internal/persist log record as part of the same critical section
// that performs the in-memory mutation, so a concurrent reader can never
// observe a state that the log doesn't agree happened. Callbacks must not
// block on network I/O — disk I/O is fine (and required, for durability).
package shardmap
