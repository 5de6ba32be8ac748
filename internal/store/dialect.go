package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const postgresConnMaxLifetime = 30 * time.Minute

// dialect captures the differences between the supported databases.
// Queries are written with '?' placeholders and rebound per dialect.
type dialect struct {
	name   string
	driver string
	// dollar placeholders ($1, $2, ...) instead of '?'.
	dollar bool
	// lockUser, when set, takes a transaction-scoped lock keyed by user id.
	lockUser string
	// forUpdate is appended to reads of rows about to be modified.
	forUpdate string
	retryable func(error) bool
}

var sqliteDialect = dialect{
	name:      "sqlite",
	driver:    "sqlite",
	retryable: sqliteRetryable,
}

var postgresDialect = dialect{
	name:      "postgres",
	driver:    "pgx",
	dollar:    true,
	lockUser:  `SELECT pg_advisory_xact_lock(hashtext(?))`,
	forUpdate: " FOR UPDATE",
	retryable: postgresRetryable,
}

// sqliteDSN builds a modernc.org/sqlite DSN. Transactions begin
// IMMEDIATE so the write lock is taken before the first read.
func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_txlock=immediate"
}

func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func sqliteRetryable(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func postgresRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03", // lock_not_available
		"23505": // unique_violation (second running timer)
		return true
	}
	return false
}
