// Package mru implements the bounded, most-recently-touched key window
// kv_top reports: container/list for the ordering, a side index map for
// O(1) touch-to-front and removal.
package mru
