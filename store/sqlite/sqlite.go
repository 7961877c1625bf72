/*
Package sqlite provides a SQLite-backed implementation of library.Store.

KEY TABLES:
  categories:  catalog categories (unique name)
  books:       titles with total/available copy counters
  users:       directory entries with bcrypt secret hashes
  loans:       the loan ledger (never deleted)
  sweep_runs:  history of overdue sweeps

INVARIANTS IN THE SCHEMA:
  - CHECK (available_copies BETWEEN 0 AND total_copies)
  - CHECK (status IN ('ACTIVE','RETURNED','OVERDUE'))
  - UNIQUE isbn, email, category name
  The conditional UPDATEs in catalog.go and loans.go never trip the
  CHECKs in normal operation; the CHECKs catch anything that bypasses them.

DATES:
  Calendar days are stored as YYYY-MM-DD text, timestamps as RFC3339
  text. Lexical order equals chronological order for both, so range
  filters compare strings. "Today" is always passed in by the caller.

CONCURRENCY:
  sync.RWMutex serializes writers in-process; SQLite runs in WAL mode with
  a busy timeout for other processes. WithTx holds the write lock for the
  whole transaction and hands fn a store bound to the *sqlx.Tx.

USAGE:
  store, err := sqlite.New("./library.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - library/store.go: interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/library-engine/library"
)

var dialect = goqu.Dialect("sqlite3")

// Store implements library.Store using SQLite.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	mu *sync.RWMutex
	tx bool
}

var _ library.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: db, mu: &sync.RWMutex{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		isbn TEXT NOT NULL UNIQUE,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		total_copies INTEGER NOT NULL CHECK (total_copies >= 1),
		available_copies INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (available_copies BETWEEN 0 AND total_copies)
	);

	CREATE INDEX IF NOT EXISTS idx_books_category ON books(category_id);
	CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		secret_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('STUDENT','FACULTY','ADMINISTRATOR')),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		book_id INTEGER NOT NULL REFERENCES books(id),
		loan_date TEXT NOT NULL,
		expected_return_date TEXT NOT NULL,
		actual_return_date TEXT,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE','RETURNED','OVERDUE')),
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Sweep and overdue listing filter on status + due date
	CREATE INDEX IF NOT EXISTS idx_loans_status_due ON loans(status, expected_return_date);
	CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);
	CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id);

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		overdue_count INTEGER NOT NULL DEFAULT 0,
		due_soon_count INTEGER NOT NULL DEFAULT 0,
		transitioned INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_started ON sweep_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction. fn's error rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(store library.Store) error) error {
	if s.tx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, mu: s.mu, tx: true}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// lock takes the write lock unless the store is bound to a transaction
// (WithTx already holds it).
func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, s.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, query, args...)
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.q, &n, query, args...)
	return n, err
}

// exec runs a write and reports whether any row changed.
func (s *Store) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// selectDataset runs a goqu dataset and scans every row into dest.
func (s *Store) selectDataset(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return sqlx.SelectContext(ctx, s.q, dest, query, args...)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDate(s string) library.Date {
	d, _ := library.ParseDate(s)
	return d
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// uniqueViolation maps a UNIQUE constraint failure on column to target.
func uniqueViolation(err error, column string, target error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(err.Error(), column) {
		return target
	}
	return err
}
