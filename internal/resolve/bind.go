// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package resolve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/canonical/sqlprep/dialect"
)

// ValueSet carries the substitution values for one resolution: a sequence
// consumed in order by "?" sites and a mapping consulted by ":name" sites.
type ValueSet struct {
	Seq   []any
	Named map[string]any
}

var (
	// ErrMissingValue reports a named placeholder with no mapping entry or a
	// positional placeholder past the end of the value sequence.
	ErrMissingValue = errors.New("missing value")

	// ErrUnsupportedShape reports a collection bound to a bare placeholder,
	// where no emission is defined.
	ErrUnsupportedShape = errors.New("unsupported collection shape")

	// ErrUnsupportedType reports a Go value with no SQL literal form.
	ErrUnsupportedType = errors.New("unsupported value type")
)

// QuoteError reports a Literal Quoter failure. The quoter's own error is
// wrapped unmodified and reachable through errors.Is and errors.As.
type QuoteError struct {
	// Site is the noun phrase of the placeholder whose value was being
	// quoted.
	Site string
	// Err is the error returned by the quoter.
	Err error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("cannot quote value for %s: %s", e.Site, e.Err)
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// Resolve binds the values to the template's placeholder sites and
// assembles the fully literal SQL string. Resolution is all or nothing: any
// failure returns an empty string.
func (pt *ParsedTemplate) Resolve(vals ValueSet, d dialect.Dialect, q dialect.Quoter) (s string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot resolve template: %w", err)
		}
	}()

	var out strings.Builder
	for _, part := range pt.parts {
		switch part := part.(type) {
		case *bypassPart:
			out.WriteString(part.chunk)
		case *sitePart:
			arg, err := lookupArg(part, vals)
			if err != nil {
				return "", err
			}
			v, err := newValue(arg)
			if err != nil {
				return "", fmt.Errorf("%s: %w", part.describe(), err)
			}
			frag, err := emit(part, v, d, q)
			if err != nil {
				return "", err
			}
			out.WriteString(frag)
		}
	}
	return out.String(), nil
}

// lookupArg fetches the Go value bound to a site. Positional sites index the
// sequence by the ordinal assigned during the scan; every "?" site consumes
// exactly one slot in template order. Named sites consult the mapping
// independently of the sequence.
func lookupArg(site *sitePart, vals ValueSet) (any, error) {
	if site.name != "" {
		arg, ok := vals.Named[site.name]
		if !ok {
			return nil, fmt.Errorf("%w for %s", ErrMissingValue, site.describe())
		}
		return arg, nil
	}
	if site.ordinal >= len(vals.Seq) {
		return nil, fmt.Errorf("%w for %s: have %d positional values", ErrMissingValue, site.describe(), len(vals.Seq))
	}
	return vals.Seq[site.ordinal], nil
}

// emit renders the literal fragment that replaces a site, given its bound
// value.
func emit(site *sitePart, v value, d dialect.Dialect, q dialect.Quoter) (string, error) {
	switch v := v.(type) {
	case nullValue:
		return site.context.operator() + "NULL", nil
	case listValue:
		return emitList(site, v, d, q)
	default:
		lit, err := scalarLiteral(site, v, d, q)
		if err != nil {
			return "", err
		}
		return site.context.operator() + lit, nil
	}
}

// emitList renders a collection bound to a site. Empty collections collapse
// to a NULL comparison, single elements unwrap to the scalar form, and
// longer collections become IN or NOT IN lists. A bare site has no defined
// emission for empty or multi-element collections.
func emitList(site *sitePart, list listValue, d dialect.Dialect, q dialect.Quoter) (string, error) {
	switch len(list) {
	case 0:
		if site.context == bareContext {
			return "", fmt.Errorf("%w: empty collection for %s", ErrUnsupportedShape, site.describe())
		}
		return site.context.operator() + "NULL", nil
	case 1:
		lit, err := scalarLiteral(site, list[0], d, q)
		if err != nil {
			return "", err
		}
		return site.context.operator() + lit, nil
	}
	if site.context == bareContext {
		return "", fmt.Errorf("%w: %d element collection for %s", ErrUnsupportedShape, len(list), site.describe())
	}
	var out strings.Builder
	out.WriteString(site.context.listKeyword())
	for i, elem := range list {
		if i > 0 {
			out.WriteString(", ")
		}
		lit, err := scalarLiteral(site, elem, d, q)
		if err != nil {
			return "", err
		}
		out.WriteString(lit)
	}
	out.WriteString(")")
	return out.String(), nil
}

// scalarLiteral renders a single scalar: NULL, integers, booleans and binary
// values have direct spellings, self-rendering values render themselves,
// everything else goes through the quoter.
func scalarLiteral(site *sitePart, v value, d dialect.Dialect, q dialect.Quoter) (string, error) {
	switch v := v.(type) {
	case nullValue:
		return "NULL", nil
	case intValue:
		return strconv.FormatInt(int64(v), 10), nil
	case boolValue:
		return d.BooleanLiteral(bool(v)), nil
	case bytesValue:
		return d.BytesLiteral(v), nil
	case customValue:
		lit, err := v.renderer.RenderLiteral(dialect.Context{Dialect: d, Quoter: q})
		if err != nil {
			return "", fmt.Errorf("cannot render literal for %s: %w", site.describe(), err)
		}
		return lit, nil
	case textValue:
		lit, err := q.Quote(string(v))
		if err != nil {
			return "", &QuoteError{Site: site.describe(), Err: err}
		}
		return lit, nil
	}
	return "", fmt.Errorf("internal error: unknown value type %T", v)
}
