// Package dialect identifies SQL dialect families and provides the literal
// quoters used to embed values directly into SQL text.
//
// A Quoter turns a plain string into a self-contained SQL literal. Static
// quoters escape locally; session quoters delegate the escaping to a live
// database session. The Renderer interface is the escape hatch for values
// that know how to spell their own literal.
package dialect

import (
	"encoding/hex"
)

// Dialect identifies the SQL dialect family a statement is resolved for. It
// decides boolean and binary literal spellings, identifier quoting and the
// default Literal Quoter.
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
	SQLite
	SQLServer
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "sqlserver"
	default:
		return "unknown"
	}
}

// BooleanLiteral returns the dialect's spelling of a boolean literal:
// true/false for the Postgres family, 1/0 everywhere else.
func (d Dialect) BooleanLiteral(b bool) string {
	if d == Postgres {
		if b {
			return "true"
		}
		return "false"
	}
	if b {
		return "1"
	}
	return "0"
}

// BytesLiteral returns the dialect's hexadecimal spelling of a binary
// literal.
func (d Dialect) BytesLiteral(b []byte) string {
	switch d {
	case Postgres:
		return `'\x` + hex.EncodeToString(b) + `'`
	case SQLServer:
		return `0x` + hex.EncodeToString(b)
	default:
		return `x'` + hex.EncodeToString(b) + `'`
	}
}

// Quoter renders a string value into a self-contained SQL literal, quoted
// and escaped for the active dialect. A Quoter is a black box to the
// resolver: its failures abort the resolve that invoked it and are reported
// unmodified.
type Quoter interface {
	Quote(s string) (string, error)
}

// Context carries the dialect and quoter handed to self-rendering values.
type Context struct {
	Dialect Dialect
	Quoter  Quoter
}

// Renderer is implemented by values that render their own SQL literal. The
// resolver invokes RenderLiteral when such a value is bound to a placeholder
// and embeds the returned text with no further quoting.
type Renderer interface {
	RenderLiteral(ctx Context) (string, error)
}
