package sqlprep

import (
	"context"
	"time"
)

// QueryEvent describes one statement execution on a [DB] or [TX] for the
// benefit of middleware.
type QueryEvent struct {
	// SQL is the fully resolved literal statement being executed.
	SQL string

	// Start is when the execution began.
	Start time.Time

	// Duration is how long the execution took. It is filled in once the
	// underlying call returns, so middleware reads it after calling next.
	Duration time.Duration

	// Attempts counts execution attempts, including the resubmission after
	// a dropped connection.
	Attempts int

	// Err is the execution error, nil on success. Like Duration it is
	// filled in once the underlying call returns.
	Err error
}

// Next continues the middleware chain. The context it receives replaces the
// execution context for the rest of the chain.
type Next func(ctx context.Context) error

// Middleware intercepts statement execution. A middleware must call next
// exactly once unless it means to suppress the execution entirely.
type Middleware func(ctx context.Context, event *QueryEvent, next Next) error

// Use appends middleware to the database's chain. Middleware runs in the
// order it was added, wrapping every subsequent Exec, Query and QueryRow on
// the database and its transactions.
func (db *DB) Use(middleware ...Middleware) {
	db.middleware = append(db.middleware, middleware...)
}

// run threads an event through the middleware chain and finally executes
// exec, filling in the event's timing and outcome fields.
func (db *DB) run(ctx context.Context, event *QueryEvent, exec func(ctx context.Context) error) error {
	event.Start = time.Now()
	index := 0
	var next Next
	next = func(ctx context.Context) error {
		if index < len(db.middleware) {
			mw := db.middleware[index]
			index++
			return mw(ctx, event, next)
		}
		err := exec(ctx)
		event.Duration = time.Since(event.Start)
		event.Err = err
		return err
	}
	return next(ctx)
}

// Logger is the logging interface consumed by [LoggingMiddleware]. It is
// satisfied by [log/slog.Logger].
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggingMiddleware returns a middleware that logs every executed statement
// with its timing and outcome.
func LoggingMiddleware(logger Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next Next) error {
		err := next(ctx)
		if err != nil {
			logger.Error("statement failed",
				"sql", event.SQL,
				"duration", event.Duration,
				"attempts", event.Attempts,
				"error", err,
			)
			return err
		}
		logger.Debug("statement executed",
			"sql", event.SQL,
			"duration", event.Duration,
			"attempts", event.Attempts,
		)
		return nil
	}
}

// TimingMiddleware returns a middleware that hands every finished event to
// record, successful or not.
func TimingMiddleware(record func(QueryEvent)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next Next) error {
		err := next(ctx)
		record(*event)
		return err
	}
}
