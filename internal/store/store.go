// Package store provides SQL persistence for Kaneboard. SQLite is the
// default embedded backend; Postgres is available for shared deployments.
// Both run the same queries through a small dialect layer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrConflict marks a transaction that failed because of lock contention
// or a concurrent write. The caller may retry the whole operation
// unchanged.
var ErrConflict = errors.New("store: concurrent write conflict")

// Store provides access to the Kaneboard database.
type Store struct {
	Queries
	db *sql.DB
	d  dialect
}

// New opens (or creates) the SQLite database at dbPath and runs
// migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(sqliteDialect.driver, sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection also
	// serializes every transaction, including timer arbitration.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return open(db, sqliteDialect)
}

// OpenPostgres connects to a Postgres database through pgx and runs
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(postgresConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return open(db, postgresDialect)
}

func open(db *sql.DB, d dialect) (*Store, error) {
	s := &Store{
		Queries: Queries{q: db, d: d},
		db:      db,
		d:       d,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the name of the backing database ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.d.name
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	start_date TEXT,
	end_date TEXT,
	baseline_start_date TEXT,
	baseline_end_date TEXT,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS tickets (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	created_by TEXT NOT NULL,
	assignee_id TEXT,
	deadline TEXT,
	priority TEXT NOT NULL DEFAULT 'low',
	type TEXT NOT NULL,
	estimate INTEGER,
	started_at BIGINT,
	completed_at BIGINT,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS time_logs (
	id TEXT PRIMARY KEY,
	ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	started_at BIGINT NOT NULL,
	ended_at BIGINT,
	duration_seconds BIGINT,
	note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS activity (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	message TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	ticket_id TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tickets_column ON tickets(project_id, status, position);
CREATE INDEX IF NOT EXISTS idx_time_logs_ticket_user ON time_logs(ticket_id, user_id);
CREATE INDEX IF NOT EXISTS idx_time_logs_user_ended ON time_logs(user_id, ended_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_time_logs_one_running ON time_logs(user_id) WHERE ended_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id);
CREATE INDEX IF NOT EXISTS idx_activity_project ON activity(project_id, created_at)
`

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Tx is a running transaction. All reads and writes made through it
// commit or roll back together.
type Tx struct {
	Queries
	tx *sql.Tx
	d  dialect
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Lock contention and concurrent
// write races are reported as ErrConflict.
//
// fn must only use tx: on SQLite the pool has a single connection, so a
// query through the Store while fn runs would block forever.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	tx := &Tx{
		Queries: Queries{q: sqlTx, d: s.d, inTx: true},
		tx:      sqlTx,
		d:       s.d,
	}
	if err := fn(tx); err != nil {
		return s.classify(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return s.classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *Store) classify(err error) error {
	if s.d.retryable(err) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// LockUser serializes timer arbitration for userID until the transaction
// ends. Concurrent transactions locking the same user wait; other users
// are unaffected.
func (tx *Tx) LockUser(ctx context.Context, userID string) error {
	if tx.d.lockUser == "" {
		return nil
	}
	if _, err := tx.tx.ExecContext(ctx, tx.d.rebind(tx.d.lockUser), userID); err != nil {
		return fmt.Errorf("lock user timers: %w", err)
	}
	return nil
}
