package dialect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SessionQuoter quotes values through a live database session, delegating
// the escaping to the server itself. MySQL sessions use QUOTE(), Postgres
// sessions use quote_literal(). Dialects with no server-side quoting
// function fall back to the static quoter.
//
// Quoting through a session blocks on the database and fails if the session
// is unusable; such failures surface from the resolve call that triggered
// them.
type SessionQuoter struct {
	db      *sql.DB
	dialect Dialect
	ctx     context.Context
}

// NewSessionQuoter returns a SessionQuoter backed by db.
func NewSessionQuoter(db *sql.DB, d Dialect) *SessionQuoter {
	return &SessionQuoter{db: db, dialect: d, ctx: context.Background()}
}

// WithContext returns a copy of the quoter whose queries run under ctx.
func (q *SessionQuoter) WithContext(ctx context.Context) *SessionQuoter {
	return &SessionQuoter{db: q.db, dialect: q.dialect, ctx: ctx}
}

// Quote implements Quoter.
func (q *SessionQuoter) Quote(s string) (string, error) {
	var query string
	switch q.dialect {
	case MySQL:
		query = "SELECT QUOTE(?)"
	case Postgres:
		query = "SELECT quote_literal($1)"
	default:
		return q.dialect.DefaultQuoter().Quote(s)
	}
	var lit string
	if err := q.db.QueryRowContext(q.ctx, query, s).Scan(&lit); err != nil {
		return "", fmt.Errorf("session quote: %w", err)
	}
	return lit, nil
}

// PGXQuerier is the subset of a pgx connection the PGXQuoter needs. It is
// satisfied by *pgx.Conn and *pgxpool.Pool.
type PGXQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGXQuoter quotes values through a pgx-managed Postgres session using
// quote_literal().
type PGXQuoter struct {
	conn PGXQuerier
	ctx  context.Context
}

// NewPGXQuoter returns a PGXQuoter backed by conn.
func NewPGXQuoter(conn PGXQuerier) *PGXQuoter {
	return &PGXQuoter{conn: conn, ctx: context.Background()}
}

// WithContext returns a copy of the quoter whose queries run under ctx.
func (q *PGXQuoter) WithContext(ctx context.Context) *PGXQuoter {
	return &PGXQuoter{conn: q.conn, ctx: ctx}
}

// Quote implements Quoter.
func (q *PGXQuoter) Quote(s string) (string, error) {
	var lit string
	if err := q.conn.QueryRow(q.ctx, "SELECT quote_literal($1)", s).Scan(&lit); err != nil {
		return "", fmt.Errorf("session quote: %w", err)
	}
	return lit, nil
}
