// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the pipeline's SQL against a database or transaction.
type Queries struct {
	db      DBTX
	root    *sql.DB // nil inside a transaction
	dialect Dialect
	now     func() time.Time
}

// New creates Queries bound to db.
func New(db *DB) *Queries {
	return &Queries{
		db:      db.DB,
		root:    db.DB,
		dialect: db.Dialect,
		now:     utcNow,
	}
}

// Dialect returns the SQL dialect the queries are written for.
func (q *Queries) Dialect() Dialect {
	return q.dialect
}

// WithTx returns Queries that run inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db:      tx,
		dialect: q.dialect,
		now:     q.now,
	}
}

// InTx runs fn inside a transaction, committing when fn returns nil.
// Calls made on already transactional Queries run fn directly.
func (q *Queries) InTx(ctx context.Context, fn func(*Queries) error) error {
	if q.root == nil {
		return fn(q)
	}

	tx, err := q.root.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(q.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// utcNow returns the current time at second precision so stored timestamps
// compare consistently as text in SQLite.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func newID() string {
	return uuid.NewString()
}

// rebind converts ? placeholders to the dialect's positional form.
func (q *Queries) rebind(query string) string {
	if q.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

// execOne runs an update expected to touch a single row and reports whether it did.
func (q *Queries) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
