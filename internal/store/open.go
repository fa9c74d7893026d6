package store

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dreamware/kvault/internal/persist"
)

// Open opens (creating if necessary) the log file at dataFile, replays it
// into a fresh Store, and returns the Store ready to serve connections. It
// is the one-call startup path cmd/kvaultd uses, wiring every dependency
// once in main before the accept loop starts.
func Open(dataFile string, cfg Config, mr MRFacility, logger zerolog.Logger) (*Store, error) {
	if err := persist.EnsureDir(dataFile); err != nil {
		return nil, fmt.Errorf("store: preparing data directory: %w", err)
	}

	s := New(cfg, nil, mr, logger)

	if err := persist.Replay(dataFile, s); err != nil {
		return nil, fmt.Errorf("store: replaying data file: %w", err)
	}

	log, err := persist.Open(dataFile)
	if err != nil {
		return nil, fmt.Errorf("store: opening data file: %w", err)
	}
	s.log = log
	return s, nil
}

// Close flushes and closes the underlying log file.
func (s *Store) Close() error {
	return s.log.Close()
}
