package shardmap

import (
	"hash/fnv"
	"sort"
	"sync"
)

// entry is one stored key/value pair within a bucket.
type entry[V any] struct {
	Key   string
	Value V
}

// bucket is one shard: a mutex plus an ordered slice of entries. A slice
// rather than a nested map keeps iteration order stable for ALL/KVA-style
// listings without needing a second index.
type bucket[V any] struct {
	mu      sync.Mutex
	entries []entry[V]
}

func (b *bucket[V]) find(key string) int {
	for i := range b.entries {
		if b.entries[i].Key == key {
			return i
		}
	}
	return -1
}

// Map is a fixed-bucket, concurrent associative container keyed by string.
// The number of buckets is fixed at construction by New; Map never resizes.
type Map[V any] struct {
	buckets []*bucket[V]
}

// New constructs a Map with the given fixed bucket count. numBuckets must
// be at least 1.
func New[V any](numBuckets int) *Map[V] {
	if numBuckets < 1 {
		numBuckets = 1
	}
	m := &Map[V]{buckets: make([]*bucket[V], numBuckets)}
	for i := range m.buckets {
		m.buckets[i] = &bucket[V]{}
	}
	return m
}

// NumBuckets returns the fixed bucket count this Map was constructed with.
func (m *Map[V]) NumBuckets() int {
	return len(m.buckets)
}

func (m *Map[V]) bucketFor(key string) *bucket[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.buckets[h.Sum32()%uint32(len(m.buckets))]
}

// Insert adds key/value only if key is not already present, returning true
// on success. If onSuccess is non-nil, it runs while the bucket lock is
// still held.
func (m *Map[V]) Insert(key string, value V, onSuccess func()) bool {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.find(key) >= 0 {
		return false
	}
	b.entries = append(b.entries, entry[V]{Key: key, Value: value})
	if onSuccess != nil {
		onSuccess()
	}
	return true
}

// Upsert inserts key/value if absent or replaces the existing value if
// present, returning true if this call performed an insert (false if it was
// an update). onInsert/onUpdate, whichever applies, runs under the bucket
// lock.
func (m *Map[V]) Upsert(key string, value V, onInsert, onUpdate func()) (inserted bool) {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx := b.find(key); idx >= 0 {
		b.entries[idx].Value = value
		if onUpdate != nil {
			onUpdate()
		}
		return false
	}
	b.entries = append(b.entries, entry[V]{Key: key, Value: value})
	if onInsert != nil {
		onInsert()
	}
	return true
}

// Remove deletes key if present, returning true on success. onSuccess runs
// under the bucket lock.
func (m *Map[V]) Remove(key string, onSuccess func()) bool {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.find(key)
	if idx < 0 {
		return false
	}
	b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
	if onSuccess != nil {
		onSuccess()
	}
	return true
}

// DoWith runs fn with a pointer to key's stored value under the bucket
// lock, allowing in-place mutation, and reports whether key existed. fn is
// not called at all if the key is absent.
func (m *Map[V]) DoWith(key string, fn func(value *V)) bool {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.find(key)
	if idx < 0 {
		return false
	}
	fn(&b.entries[idx].Value)
	return true
}

// DoWithReadOnly runs fn with a copy of key's stored value under the bucket
// lock and reports whether key existed.
func (m *Map[V]) DoWithReadOnly(key string, fn func(value V)) bool {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.find(key)
	if idx < 0 {
		return false
	}
	fn(b.entries[idx].Value)
	return true
}

// DoAllReadOnly acquires every bucket's lock in ascending index order
// (two-phase locking), invokes perEntry for every stored key/value while
// all locks are held, then invokes finalize — still under all the locks —
// before releasing them. finalize is the hook the snapshot writer uses to
// swap the data file while guaranteed that no bucket can mutate
// underneath it.
func (m *Map[V]) DoAllReadOnly(perEntry func(key string, value V), finalize func()) {
	for _, b := range m.buckets {
		b.mu.Lock()
	}
	defer func() {
		for _, b := range m.buckets {
			b.mu.Unlock()
		}
	}()

	if perEntry != nil {
		for _, b := range m.buckets {
			for _, e := range b.entries {
				perEntry(e.Key, e.Value)
			}
		}
	}
	if finalize != nil {
		finalize()
	}
}

// Clear removes every entry from every bucket under two-phase locking.
func (m *Map[V]) Clear() {
	for _, b := range m.buckets {
		b.mu.Lock()
	}
	defer func() {
		for _, b := range m.buckets {
			b.mu.Unlock()
		}
	}()
	for _, b := range m.buckets {
		b.entries = nil
	}
}

// Keys returns every key currently stored, sorted in ascending
// lexicographic order. It takes each bucket's lock in turn rather than holding
// all of them, so it is not a point-in-time snapshot across buckets — use
// DoAllReadOnly when cross-shard consistency matters.
func (m *Map[V]) Keys() []string {
	var keys []string
	for _, b := range m.buckets {
		b.mu.Lock()
		for _, e := range b.entries {
			keys = append(keys, e.Key)
		}
		b.mu.Unlock()
	}
	sort.Strings(keys)
	return keys
}

// Len returns the total number of stored entries across every bucket.
func (m *Map[V]) Len() int {
	n := 0
	for _, b := range m.buckets {
		b.mu.Lock()
		n += len(b.entries)
		b.mu.Unlock()
	}
	return n
}
