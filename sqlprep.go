// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlprep

import (
	"fmt"
	"reflect"

	"github.com/canonical/sqlprep/dialect"
	"github.com/canonical/sqlprep/internal/resolve"
)

// M is a convenience type for passing values referenced by name. M is not a
// special type, any map type with string keys can be used as the values
// argument.
//
// Example:
//
//	r := sqlprep.New(dialect.Postgres, nil)
//	stmt, err := r.Resolve("UPDATE people SET name = :name", sqlprep.M{"name": "Fred"})
type M map[string]any

// S is a convenience type for passing positional values. S is not a special
// type, any slice type can be used as the values argument.
//
// Example:
//
//	stmt, err := r.Resolve("id IN(?) AND age > ?", sqlprep.S{[]int{1, 2}, 21})
type S []any

// Values carries positional and named values together, for templates that
// mix "?" and ":name" placeholder sites. Positional sites consume Seq in
// template order; named sites look up Named independently of the sequence.
type Values struct {
	Seq   S
	Named M
}

// Sentinel errors surfaced by resolution. They are wrapped with the failing
// placeholder site and match with errors.Is.
var (
	// ErrMissingValue reports a named placeholder with no mapping entry or a
	// positional placeholder past the end of the value sequence.
	ErrMissingValue = resolve.ErrMissingValue

	// ErrUnsupportedShape reports an empty or multi-element collection bound
	// to a bare placeholder site, where no emission is defined.
	ErrUnsupportedShape = resolve.ErrUnsupportedShape

	// ErrUnsupportedType reports a Go value with no SQL literal form.
	ErrUnsupportedType = resolve.ErrUnsupportedType
)

// QuoteError reports a Literal Quoter failure during a resolve. The quoter's
// own error is wrapped unmodified and reachable through errors.As and
// errors.Is.
type QuoteError = resolve.QuoteError

// Statement is a parsed template ready to be resolved. Statements are
// immutable: a Statement can be resolved any number of times, by any
// Resolver, from any goroutine.
type Statement struct {
	template string
	parsed   *resolve.ParsedTemplate
}

// Prepare scans the template for placeholder sites and generates a
// [Statement]. Preparing once and resolving many times skips rescanning the
// template on every resolve.
func Prepare(template string) (*Statement, error) {
	parsed, err := resolve.NewParser().Parse(template)
	if err != nil {
		return nil, err
	}
	return &Statement{template: template, parsed: parsed}, nil
}

// MustPrepare is the same as [Prepare] except that it panics on error.
func MustPrepare(template string) *Statement {
	s, err := Prepare(template)
	if err != nil {
		panic(err)
	}
	return s
}

// Config holds the optional settings of a [Resolver].
type Config struct {
	// CacheSize bounds the number of parsed templates the Resolver retains.
	// Zero selects the default of 1024, a negative size disables the cache.
	CacheSize int
}

// Resolver rewrites templates into fully literal SQL for one dialect and
// quoter pair. A Resolver is safe for concurrent use.
type Resolver struct {
	dialect dialect.Dialect
	quoter  dialect.Quoter
	cache   *parseCache
}

// New creates a [Resolver] for the given dialect. If quoter is nil the
// dialect's built-in static quoter is used.
func New(d dialect.Dialect, quoter dialect.Quoter, configs ...Config) *Resolver {
	if quoter == nil {
		quoter = d.DefaultQuoter()
	}
	var config Config
	if len(configs) > 0 {
		config = configs[0]
	}
	return &Resolver{dialect: d, quoter: quoter, cache: newParseCache(config.CacheSize)}
}

// Dialect returns the dialect the Resolver resolves for.
func (r *Resolver) Dialect() dialect.Dialect {
	return r.dialect
}

// Resolve rewrites the template into a literal SQL string with no remaining
// placeholders, substituting each placeholder site with the literal spelling
// of its bound value.
//
// values may be a slice or [S] of positional values, a string keyed map or
// [M] of named values, a [Values] carrying both, or a single scalar, which
// stands for a one element sequence. A nil values resolves nothing and
// returns the template unchanged.
//
// Equality and IN sites adapt to the shape of a collection value: an empty
// collection collapses to a NULL comparison, a single element unwraps to a
// scalar comparison, and longer collections are emitted as IN or NOT IN
// lists.
func (r *Resolver) Resolve(template string, values any) (string, error) {
	if noValues(values) {
		return template, nil
	}
	s, err := r.Prepare(template)
	if err != nil {
		return "", err
	}
	return r.ResolveStatement(s, values)
}

// ResolveStatement is the same as [Resolve] for an already prepared
// [Statement].
func (r *Resolver) ResolveStatement(s *Statement, values any) (string, error) {
	if noValues(values) {
		return s.template, nil
	}
	vals, err := normalizeValues(values)
	if err != nil {
		return "", err
	}
	return s.parsed.Resolve(vals, r.dialect, r.quoter)
}

// Prepare is the same as the package level [Prepare] except that the
// Resolver's template cache is consulted first.
func (r *Resolver) Prepare(template string) (*Statement, error) {
	return r.cache.prepare(template)
}

// noValues reports whether the values argument selects the no-op fast path.
func noValues(values any) bool {
	if values == nil {
		return true
	}
	if v, ok := values.(*Values); ok && v == nil {
		return true
	}
	return false
}

// normalizeValues shapes the accepted values argument forms into a value
// set. Typed nil maps and slices are kept as empty sets rather than
// no-ops, so templates with sites still fail deterministically.
func normalizeValues(values any) (resolve.ValueSet, error) {
	switch v := values.(type) {
	case Values:
		return resolve.ValueSet{Seq: v.Seq, Named: v.Named}, nil
	case *Values:
		return resolve.ValueSet{Seq: v.Seq, Named: v.Named}, nil
	case M:
		return resolve.ValueSet{Named: v}, nil
	case map[string]any:
		return resolve.ValueSet{Named: v}, nil
	case S:
		return resolve.ValueSet{Seq: v}, nil
	case []any:
		return resolve.ValueSet{Seq: v}, nil
	case []byte:
		// A byte slice is one binary scalar, not a sequence.
		return resolve.ValueSet{Seq: S{v}}, nil
	}
	rv := reflect.ValueOf(values)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return resolve.ValueSet{}, fmt.Errorf("%w: cannot use %s keyed map as named values", ErrUnsupportedType, rv.Type().Key())
		}
		named := make(M, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			named[iter.Key().String()] = iter.Value().Interface()
		}
		return resolve.ValueSet{Named: named}, nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return resolve.ValueSet{Seq: S{values}}, nil
		}
		seq := make(S, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			seq[i] = rv.Index(i).Interface()
		}
		return resolve.ValueSet{Seq: seq}, nil
	}
	// A single scalar stands for a one element sequence.
	return resolve.ValueSet{Seq: S{values}}, nil
}
