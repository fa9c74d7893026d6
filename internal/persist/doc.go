// Package persist implements kvault's hybrid durability layer: a
// full-snapshot writer, an append-only incremental record log sharing the
// same file, and the sequential replay loader that reconstructs in-memory
// state from either.
//
// # On-disk format
//
// Every record starts with an 8-byte ASCII magic identifying its kind,
// followed by little-endian u32-length-prefixed fields (see internal/wire's
// PutString/TakeString, which this package builds records on top of):
//
//	AUTHAUTH  u32 len(user) | user | u32 len(pwfield) | pwfield | u32 len(content) | content
//	KVKVKVKV  u32 len(key)  | key  | u32 len(value)   | value
//	AUTHDIFF  u32 len(user) | user | u32 len(content) | content
//	KVUPDATE  u32 len(key)  | key  | u32 len(value)   | value
//	KVDELETE  u32 len(key)  | key
//
// AUTHAUTH and KVKVKVKV are "create a record" regardless of where in the
// file they appear: Store.Persist emits them while building a full
// snapshot, but Store.AddUser also appends a lone AUTHAUTH record
// incrementally the moment a user registers, so a registration durably
// survives a crash before the next snapshot without needing a distinct
// "new user" incremental record type. KV inserts and upserts both use
// KVUPDATE — replaying it is an idempotent map write either way.
//
// # Replay
//
// Replay reads the file once, front to back, dispatching purely on the
// magic it finds — it does not care whether a given record was written as
// part of a snapshot or appended incrementally later, so a file is simply
// "whatever sequence of create/diff/delete operations accumulated," with
// persist() only ever being the thing that compacts that sequence back
// down to a single pass of creates.
package persist
