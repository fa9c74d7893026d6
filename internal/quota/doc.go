// Package quota implements the sliding-window resource counters each user
// has one of per resource class (uploads, downloads, requests).
//
// A Tracker is a single mutex guarding one list of timestamped events;
// spreading lock contention across users happens a level up, where
// internal/store keeps one tracker triple per user, so a hot user never
// serializes anyone else's accounting.
//
// Tracker never prunes on its own schedule — only opportunistically, at
// Check/Add time — avoiding a background goroutine for something callers
// amortize for free.
package quota
