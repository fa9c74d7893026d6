package mapreduce

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dreamware/kvault/internal/store"
)

// childRunner is the subset of Executor that Table depends on, broken out
// as an interface so tests can substitute a fake subprocess runner rather
// than actually building and execing a plugin binary.
type childRunner interface {
	Validate(path string) error
	Run(path string, pairs []store.KVPair) ([]byte, error)
}

// Table is the registry of named (map, reduce) plugins. It satisfies
// store.MRFacility. Names are unique and registration is append-only for
// the process lifetime — there is no unregister.
type Table struct {
	mu        sync.RWMutex
	funcs     map[string]string // name -> path of validated .so
	pluginDir string
	exec      childRunner
}

// NewTable constructs a Table that writes uploaded plugin bytes under
// pluginDir and validates/invokes them via childPath (the kvault-mr-child
// binary).
func NewTable(pluginDir, childPath string) (*Table, error) {
	if err := os.MkdirAll(pluginDir, 0o700); err != nil {
		return nil, fmt.Errorf("mapreduce: preparing plugin directory: %w", err)
	}
	return &Table{
		funcs:     make(map[string]string),
		pluginDir: pluginDir,
		exec:      &Executor{childPath: childPath},
	}, nil
}

// Register validates soBytes as a plugin and, on success, records it under
// name. A name collision is reported as store.ErrFuncExists; a plugin that
// fails to load or is missing Map/Reduce is store.ErrSOLoad.
func (t *Table) Register(name string, soBytes []byte) error {
	t.mu.RLock()
	_, exists := t.funcs[name]
	t.mu.RUnlock()
	if exists {
		return store.ErrFuncExists
	}

	path := filepath.Join(t.pluginDir, name+".so")
	if err := os.WriteFile(path, soBytes, 0o600); err != nil {
		return fmt.Errorf("mapreduce: writing plugin %q: %w", name, err)
	}

	if err := t.exec.Validate(path); err != nil {
		_ = os.Remove(path)
		return store.ErrSOLoad
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.funcs[name]; exists {
		// A concurrent Register won the race; its staged file is at the
		// same path, so leave it in place.
		return store.ErrFuncExists
	}
	t.funcs[name] = path
	return nil
}

// Invoke runs name's registered plugin over pairs inside a fresh
// kvault-mr-child subprocess and returns the reduced result.
func (t *Table) Invoke(name string, pairs []store.KVPair) ([]byte, error) {
	t.mu.RLock()
	path, ok := t.funcs[name]
	t.mu.RUnlock()
	if !ok {
		return nil, store.ErrFuncMissing
	}

	out, err := t.exec.Run(path, pairs)
	if err != nil {
		return nil, store.ErrServer
	}
	return out, nil
}
