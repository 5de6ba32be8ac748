package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every read and write shared by Store and Tx. Through a
// Store each call runs on its own; through a Tx it joins the transaction.
type Queries struct {
	q querier
	d dialect
	// inTx enables row locks on reads of rows about to be modified.
	inTx bool
}

func (qs Queries) lockSuffix() string {
	if !qs.inTx {
		return ""
	}
	return qs.d.forUpdate
}

func (qs Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qs.q.ExecContext(ctx, qs.d.rebind(query), args...)
}

func (qs Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qs.q.QueryContext(ctx, qs.d.rebind(query), args...)
}

func (qs Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qs.q.QueryRowContext(ctx, qs.d.rebind(query), args...)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Instants are stored as unix seconds, dates as YYYY-MM-DD text.

func unix(t time.Time) int64 {
	return t.Unix()
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func fromUnix(secs int64) time.Time {
	return time.Unix(secs, 0).UTC()
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return models.Day(*t).Format(models.DateLayout)
}

func fromNullDate(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := models.ParseDate(v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
