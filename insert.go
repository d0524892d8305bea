package sqlprep

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/canonical/sqlprep/dialect"
)

// Insert builds multi row INSERT statements. Identifiers are quoted for the
// database's dialect and every value travels through the resolver, so the
// executed statement is fully literal.
type Insert struct {
	db      *DB
	table   string
	columns []string
	rows    []S
	err     error
}

// Insert starts an INSERT builder for the table. Rows are added with
// [Insert.Row] and the statement is run with [Insert.Exec].
func (db *DB) Insert(table string, columns ...string) *Insert {
	return &Insert{db: db, table: table, columns: columns}
}

// Row appends one row of values, in column order.
func (i *Insert) Row(values ...any) *Insert {
	if i.err == nil && len(values) != len(i.columns) {
		i.err = fmt.Errorf("cannot insert row: %d values for %d columns", len(values), len(i.columns))
		return i
	}
	i.rows = append(i.rows, S(values))
	return i
}

// Build assembles the INSERT template and its positional values. The
// template can be handed to [Resolver.Resolve], [DB.Exec] or [TX.Exec].
func (i *Insert) Build() (string, S, error) {
	if i.err != nil {
		return "", nil, i.err
	}
	if len(i.columns) == 0 {
		return "", nil, fmt.Errorf("cannot insert into %q: no columns", i.table)
	}
	if len(i.rows) == 0 {
		return "", nil, fmt.Errorf("cannot insert into %q: no rows", i.table)
	}
	d := i.db.resolver.Dialect()
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(dialect.QuoteIdentifier(d, i.table))
	b.WriteString(" (")
	for n, col := range i.columns {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dialect.QuoteIdentifier(d, col))
	}
	b.WriteString(") VALUES ")
	var values S
	for n, row := range i.rows {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for m := range row {
			if m > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
		}
		b.WriteString(")")
		values = append(values, row...)
	}
	return b.String(), values, nil
}

// Exec builds the statement and runs it on the database.
func (i *Insert) Exec(ctx context.Context) (sql.Result, error) {
	template, values, err := i.Build()
	if err != nil {
		return nil, err
	}
	return i.db.Exec(ctx, template, values)
}
