// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlprep

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
)

var ErrNoRows = sql.ErrNoRows
var ErrTXDone = sql.ErrTxDone

// DB pairs a database handle with a [Resolver]. Statements are resolved to
// fully literal SQL before they reach the driver, so the driver sees no
// parameters at all.
type DB struct {
	// sqldb is the underlying database/sql DB object.
	sqldb      *sql.DB
	resolver   *Resolver
	middleware []Middleware
}

// NewDB creates a [DB] that resolves statements with r before executing
// them on sqldb.
func NewDB(sqldb *sql.DB, r *Resolver) *DB {
	if sqldb == nil {
		return nil
	}
	return &DB{sqldb: sqldb, resolver: r}
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Resolver returns the resolver that prepares the DB's statements.
func (db *DB) Resolver() *Resolver {
	return db.resolver
}

// Close closes the underlying database.
func (db *DB) Close() error {
	return db.sqldb.Close()
}

// retryable reports whether err indicates a dropped connection worth one
// reconnect and resubmit.
func retryable(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, io.EOF)
}

// submit executes fn through the middleware chain. If the connection
// dropped, the statement is resubmitted once after the connection is
// re-established.
func (db *DB) submit(ctx context.Context, event *QueryEvent, fn func(ctx context.Context) error) error {
	return db.run(ctx, event, func(ctx context.Context) error {
		event.Attempts = 1
		err := fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if perr := db.sqldb.PingContext(ctx); perr != nil {
			return err
		}
		event.Attempts = 2
		return fn(ctx)
	})
}

// Exec resolves the template against values and executes the resulting
// literal statement. values takes the same forms as in [Resolver.Resolve].
func (db *DB) Exec(ctx context.Context, template string, values any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	stmt, err := db.resolver.Resolve(template, values)
	if err != nil {
		return nil, err
	}
	var result sql.Result
	err = db.submit(ctx, &QueryEvent{SQL: stmt}, func(ctx context.Context) error {
		var err error
		result, err = db.sqldb.ExecContext(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Query resolves the template against values and runs the resulting literal
// query, returning its rows.
func (db *DB) Query(ctx context.Context, template string, values any) (*sql.Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	stmt, err := db.resolver.Resolve(template, values)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	err = db.submit(ctx, &QueryEvent{SQL: stmt}, func(ctx context.Context) error {
		var err error
		rows, err = db.sqldb.QueryContext(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryRow resolves the template against values and runs the resulting
// literal query, returning its first row.
func (db *DB) QueryRow(ctx context.Context, template string, values any) (*sql.Row, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	stmt, err := db.resolver.Resolve(template, values)
	if err != nil {
		return nil, err
	}
	var row *sql.Row
	err = db.submit(ctx, &QueryEvent{SQL: stmt}, func(ctx context.Context) error {
		row = db.sqldb.QueryRowContext(ctx, stmt)
		return row.Err()
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// TX represents a transaction on the database. Statements inside a
// transaction are never resubmitted: a dropped connection invalidates the
// whole transaction, so the failure is returned as is.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin starts a transaction. A transaction must be ended with a
// [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return err
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return err
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Exec resolves the template against values and executes the resulting
// literal statement inside the transaction.
func (tx *TX) Exec(ctx context.Context, template string, values any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return nil, ErrTXDone
	}
	stmt, err := tx.db.resolver.Resolve(template, values)
	if err != nil {
		return nil, err
	}
	var result sql.Result
	event := &QueryEvent{SQL: stmt}
	err = tx.db.run(ctx, event, func(ctx context.Context) error {
		event.Attempts = 1
		var err error
		result, err = tx.sqltx.ExecContext(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Query resolves the template against values and runs the resulting literal
// query inside the transaction.
func (tx *TX) Query(ctx context.Context, template string, values any) (*sql.Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return nil, ErrTXDone
	}
	stmt, err := tx.db.resolver.Resolve(template, values)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	event := &QueryEvent{SQL: stmt}
	err = tx.db.run(ctx, event, func(ctx context.Context) error {
		event.Attempts = 1
		var err error
		rows, err = tx.sqltx.QueryContext(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryRow resolves the template against values and runs the resulting
// literal query inside the transaction, returning its first row.
func (tx *TX) QueryRow(ctx context.Context, template string, values any) (*sql.Row, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return nil, ErrTXDone
	}
	stmt, err := tx.db.resolver.Resolve(template, values)
	if err != nil {
		return nil, err
	}
	var row *sql.Row
	event := &QueryEvent{SQL: stmt}
	err = tx.db.run(ctx, event, func(ctx context.Context) error {
		event.Attempts = 1
		row = tx.sqltx.QueryRowContext(ctx, stmt)
		return row.Err()
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}
