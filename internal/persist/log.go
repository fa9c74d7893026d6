package persist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	natomic "github.com/natefinch/atomic"
)

// Log owns the on-disk file: it accepts incremental record appends during
// normal operation and can be asked to rewrite itself as a compacted
// snapshot via Snapshot.
//
// Append serializes writers with an internal mutex rather than relying on
// O_APPEND write atomicity — simpler to reason about across platforms than
// depending on every OS's append-mode write semantics.
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Open opens (creating if necessary) the log file at path in append mode,
// ready to receive incremental records. A nonexistent file is not an error.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("persist: opening log file: %w", err)
	}
	return &Log{file: f, path: path}, nil
}

// Append writes one complete record and fsyncs before returning — the
// record is durable by the time Append returns nil, so a mutation is never
// acknowledged to a client before it would survive a crash.
func (l *Log) Append(record []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(record); err != nil {
		return fmt.Errorf("persist: writing record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("persist: fsyncing record: %w", err)
	}
	return nil
}

// Snapshot atomically replaces the log file's contents with data — a
// compacted sequence of EncodeAuthSnapshot/EncodeKVSnapshot records — then
// reopens the file in append mode so subsequent Append calls resume
// incremental logging.
//
// The caller must hold whatever cross-shard locks guarantee data is a
// consistent point-in-time view AND that no mutator is mid-flight toward
// an Append (internal/shardmap's two-phase locking gives both: every
// Append happens under a bucket lock, so holding all bucket locks means
// nothing can race the rewrite). Lock order is therefore always bucket
// locks first, Log's mutex second.
func (l *Log) Snapshot(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("persist: closing log before snapshot: %w", err)
	}

	if err := natomic.WriteFile(l.path, bytes.NewReader(data)); err != nil {
		// Best-effort: reopen the old file so the server can keep running
		// even though the snapshot attempt failed.
		l.file, _ = os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		return fmt.Errorf("persist: writing snapshot: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("persist: reopening log after snapshot: %w", err)
	}
	l.file = f
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the log's backing file path, mostly for tests.
func (l *Log) Path() string {
	return l.path
}

// EnsureDir creates the parent directory of path if it doesn't already
// exist, so a freshly configured data file location doesn't need a
// pre-existing directory.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
