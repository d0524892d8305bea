package sqlprep_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlprep"
	"github.com/canonical/sqlprep/dialect"
)

type DBSuite struct{}

var _ = Suite(&DBSuite{})

// mockDB returns a DB whose driver is a mock expecting the exact literal
// statements the resolver produces.
func (s *DBSuite) mockDB(c *C) (*sqlprep.DB, sqlmock.Sqlmock) {
	sqldb, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	c.Assert(err, IsNil)
	return sqlprep.NewDB(sqldb, sqlprep.New(dialect.MySQL, nil)), mock
}

func (s *DBSuite) TestExecSendsLiteralSQL(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	mock.ExpectExec("INSERT INTO person (id, name) VALUES (30, 'Fred')").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := db.Exec(nil, "INSERT INTO person (id, name) VALUES (?, ?)", sqlprep.S{30, "Fred"})
	c.Assert(err, IsNil)
	affected, err := result.RowsAffected()
	c.Assert(err, IsNil)
	c.Assert(affected, Equals, int64(1))
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestQuerySendsLiteralSQL(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM person WHERE id IN(30, 20)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30).AddRow(20))

	rows, err := db.Query(nil, "SELECT id FROM person WHERE id IN(?)", sqlprep.S{[]int{30, 20}})
	c.Assert(err, IsNil)
	var ids []int
	for rows.Next() {
		var id int
		c.Assert(rows.Scan(&id), IsNil)
		ids = append(ids, id)
	}
	c.Assert(rows.Err(), IsNil)
	rows.Close()
	c.Assert(ids, DeepEquals, []int{30, 20})
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestQueryRow(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	mock.ExpectQuery("SELECT name FROM person WHERE id = 30").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Fred"))

	row, err := db.QueryRow(nil, "SELECT name FROM person WHERE id = :id", sqlprep.M{"id": 30})
	c.Assert(err, IsNil)
	var name string
	c.Assert(row.Scan(&name), IsNil)
	c.Assert(name, Equals, "Fred")
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestResolveErrorStopsExecution(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	// No expectations: a resolution failure must never reach the driver.
	_, err := db.Exec(nil, "INSERT INTO person (id) VALUES (?)", sqlprep.S{})
	c.Assert(errors.Is(err, sqlprep.ErrMissingValue), Equals, true)

	_, err = db.Query(nil, "SELECT * FROM person WHERE name = :name", sqlprep.M{})
	c.Assert(errors.Is(err, sqlprep.ErrMissingValue), Equals, true)

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestRetryAfterDroppedConnection(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	var events []sqlprep.QueryEvent
	db.Use(sqlprep.TimingMiddleware(func(e sqlprep.QueryEvent) {
		events = append(events, e)
	}))

	stmt := "UPDATE person SET name = 'Fred' WHERE id = 30"
	mock.ExpectExec(stmt).WillReturnError(mysql.ErrInvalidConn)
	mock.ExpectPing()
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := db.Exec(nil, "UPDATE person SET name = ? WHERE id = ?", sqlprep.S{"Fred", 30})
	c.Assert(err, IsNil)
	c.Assert(mock.ExpectationsWereMet(), IsNil)

	c.Assert(events, HasLen, 1)
	c.Assert(events[0].Attempts, Equals, 2)
	c.Assert(events[0].Err, IsNil)
	c.Assert(events[0].SQL, Equals, stmt)
}

func (s *DBSuite) TestRetryAfterEOF(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	stmt := "SELECT id FROM person"
	mock.ExpectQuery(stmt).WillReturnError(io.EOF)
	mock.ExpectPing()
	mock.ExpectQuery(stmt).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))

	rows, err := db.Query(nil, stmt, sqlprep.S{})
	c.Assert(err, IsNil)
	rows.Close()
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestNoRetryWhenPingFails(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	var events []sqlprep.QueryEvent
	db.Use(sqlprep.TimingMiddleware(func(e sqlprep.QueryEvent) {
		events = append(events, e)
	}))

	mock.ExpectExec("DELETE FROM person WHERE id = 30").WillReturnError(mysql.ErrInvalidConn)
	mock.ExpectPing().WillReturnError(errors.New("still unreachable"))

	_, err := db.Exec(nil, "DELETE FROM person WHERE id = ?", sqlprep.S{30})
	c.Assert(errors.Is(err, mysql.ErrInvalidConn), Equals, true)
	c.Assert(mock.ExpectationsWereMet(), IsNil)

	c.Assert(events, HasLen, 1)
	c.Assert(events[0].Attempts, Equals, 1)
	c.Assert(errors.Is(events[0].Err, mysql.ErrInvalidConn), Equals, true)
}

func (s *DBSuite) TestNoRetryOnOtherErrors(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	syntaxErr := errors.New("syntax error near FORM")
	mock.ExpectExec("SELECT * FORM person").WillReturnError(syntaxErr)

	_, err := db.Exec(nil, "SELECT * FORM person", sqlprep.S{})
	c.Assert(errors.Is(err, syntaxErr), Equals, true)
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestNoRetryInsideTransaction(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	var events []sqlprep.QueryEvent
	db.Use(sqlprep.TimingMiddleware(func(e sqlprep.QueryEvent) {
		events = append(events, e)
	}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO person (id) VALUES (30)").WillReturnError(mysql.ErrInvalidConn)
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := db.Begin(ctx, nil)
	c.Assert(err, IsNil)

	// A dropped connection invalidates the transaction, so the statement is
	// not resubmitted.
	_, err = tx.Exec(ctx, "INSERT INTO person (id) VALUES (?)", sqlprep.S{30})
	c.Assert(errors.Is(err, mysql.ErrInvalidConn), Equals, true)
	c.Assert(tx.Rollback(), IsNil)
	c.Assert(mock.ExpectationsWereMet(), IsNil)

	c.Assert(events, HasLen, 1)
	c.Assert(events[0].Attempts, Equals, 1)
}

func (s *DBSuite) TestMiddlewareOrder(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	var trace []string
	logMW := func(name string) sqlprep.Middleware {
		return func(ctx context.Context, event *sqlprep.QueryEvent, next sqlprep.Next) error {
			trace = append(trace, name+" in")
			err := next(ctx)
			trace = append(trace, name+" out")
			return err
		}
	}
	db.Use(logMW("first"), logMW("second"))

	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := db.Exec(nil, "SELECT 1", sqlprep.S{})
	c.Assert(err, IsNil)
	c.Assert(trace, DeepEquals, []string{"first in", "second in", "second out", "first out"})
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestMiddlewareSuppressesExecution(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	denied := errors.New("statement denied")
	db.Use(func(ctx context.Context, event *sqlprep.QueryEvent, next sqlprep.Next) error {
		return denied
	})

	// The middleware never calls next, so the driver sees nothing.
	_, err := db.Exec(nil, "DELETE FROM person", sqlprep.S{})
	c.Assert(errors.Is(err, denied), Equals, true)
	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestLoggingMiddleware(c *C) {
	db, mock := s.mockDB(c)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db.Use(sqlprep.LoggingMiddleware(logger))

	mock.ExpectExec("UPDATE person SET name = 'Fred' WHERE id = 30").
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err := db.Exec(nil, "UPDATE person SET name = :name WHERE id = :id", sqlprep.M{"name": "Fred", "id": 30})
	c.Assert(err, IsNil)
	c.Assert(strings.Contains(buf.String(), "statement executed"), Equals, true)
	c.Assert(strings.Contains(buf.String(), "attempts=1"), Equals, true)

	buf.Reset()
	failed := errors.New("table gone")
	mock.ExpectExec("DELETE FROM person").WillReturnError(failed)
	_, err = db.Exec(nil, "DELETE FROM person", sqlprep.S{})
	c.Assert(errors.Is(err, failed), Equals, true)
	c.Assert(strings.Contains(buf.String(), "statement failed"), Equals, true)
	c.Assert(strings.Contains(buf.String(), "table gone"), Equals, true)

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (s *DBSuite) TestNewDBNilDatabase(c *C) {
	c.Assert(sqlprep.NewDB(nil, sqlprep.New(dialect.MySQL, nil)), IsNil)
}

func (s *DBSuite) TestPlainDBAndResolver(c *C) {
	db, _ := s.mockDB(c)
	defer db.Close()

	c.Assert(db.PlainDB(), NotNil)
	c.Assert(db.Resolver(), NotNil)
	c.Assert(db.Resolver().Dialect(), Equals, dialect.MySQL)
}
