package dialect

import (
	"strings"

	"github.com/lib/pq"
)

// DefaultQuoter returns the built-in static quoter for the dialect. Static
// quoters escape locally and never fail.
func (d Dialect) DefaultQuoter() Quoter {
	return staticQuoter{dialect: d}
}

type staticQuoter struct {
	dialect Dialect
}

func (q staticQuoter) Quote(s string) (string, error) {
	switch q.dialect {
	case Postgres:
		return pq.QuoteLiteral(s), nil
	case MySQL:
		return quoteMySQL(s), nil
	default:
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	}
}

// quoteMySQL escapes backslashes as well as quotes: MySQL treats backslash
// as an escape character unless NO_BACKSLASH_ESCAPES is set, so both
// readings of the resulting literal are safe.
func quoteMySQL(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// QuoteIdentifier quotes a table or column name for the dialect.
func QuoteIdentifier(d Dialect, name string) string {
	switch d {
	case Postgres:
		return pq.QuoteIdentifier(name)
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case SQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
