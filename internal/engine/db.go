package engine

import (
	"fmt"
)

// Engine owns every named database for one process (spec.md §6.2:
// create_database/drop_database). Scheduling is single-threaded
// cooperative per spec.md §5 — Engine does not add its own locking; a host
// bridging it across a thread boundary serializes calls itself.
type Engine struct {
	cfg       Config
	databases map[string]*Database
}

// New constructs an Engine with no databases yet.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, databases: make(map[string]*Database)}
}

// CreateDatabase registers a new, empty database namespace.
func (e *Engine) CreateDatabase(name string) (*Database, error) {
	if _, exists := e.databases[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDatabaseConflict, name)
	}
	d, err := newDatabase(name, e.cfg)
	if err != nil {
		return nil, err
	}
	e.databases[name] = d
	return d, nil
}

// DropDatabase removes a database and everything it holds.
func (e *Engine) DropDatabase(name string) error {
	if _, ok := e.databases[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDatabase, name)
	}
	delete(e.databases, name)
	return nil
}

// Database resolves a named database.
func (e *Engine) Database(name string) (*Database, error) {
	d, ok := e.databases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, name)
	}
	return d, nil
}

// DatabaseNames lists every registered database.
func (e *Engine) DatabaseNames() []string {
	names := make([]string, 0, len(e.databases))
	for n := range e.databases {
		names = append(names, n)
	}
	return names
}
