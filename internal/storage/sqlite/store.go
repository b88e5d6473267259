// Package sqlite is the Storage Engine (§4.1): relational persistence of
// threads and their comment trees, with recursive cascade-delete cleanup.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = fmt.Errorf("not found")

// Store wraps a connection pool to a SQLite database holding threads and
// comments. All write paths run inside a transaction so a SQL error aborts
// cleanly (§7: "any SQL error aborts the transaction").
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Options configures the connection pool size and the timeout for Open's
// ping and schema migration. The WAL/NORMAL/foreign-keys pragmas are fixed
// in the DSN that Open builds and are not set through Options.
type Options struct {
	MaxOpenConns int
	QueryTimeout time.Duration
}

// DefaultOptions returns sensible pool defaults.
func DefaultOptions() Options {
	return Options{MaxOpenConns: 10, QueryTimeout: 30 * time.Second}
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema idempotently.
func Open(path string, opts Options) (*Store, error) {
	if opts.MaxOpenConns == 0 {
		opts = DefaultOptions()
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), opts.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// nowUnix returns the current time as seconds since epoch, via the
// injectable clock (tests override this for deterministic TTL checks).
func (s *Store) nowUnix() int64 {
	return s.now().Unix()
}
