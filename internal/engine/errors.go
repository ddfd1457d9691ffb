package engine

import "errors"

var (
	// ErrDatabaseConflict mirrors catalog.ErrSchemaConflict at the
	// database-namespace level (spec.md §7: SchemaConflict).
	ErrDatabaseConflict = errors.New("engine: database already exists")
	// ErrUnknownDatabase is returned by any call naming a database that
	// was never created, or already dropped.
	ErrUnknownDatabase = errors.New("engine: unknown database")
	// ErrReentrantWrite is returned when a write is attempted from inside
	// a subscriber callback running as part of an in-flight write batch's
	// notification phase (spec.md §5: "re-entrancy is forbidden and must
	// be detected and fail with ReentrantWrite").
	ErrReentrantWrite = errors.New("engine: reentrant write during notification")
)
