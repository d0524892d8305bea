package resolve

import (
	"bytes"
	"fmt"
)

// A templatePart represents a section of a scanned SQL template. The scanned
// template is represented as a list of templateParts.
type templatePart interface {
	// String returns a string representation of the part for debugging and
	// testing purposes.
	String() string

	// part is a marker method.
	part()
}

// siteContext classifies the syntax surrounding a placeholder site. The
// context decides how the bound value is emitted.
type siteContext int

const (
	bareContext siteContext = iota
	equalityContext
	notEqualityContext
	inContext
	notInContext
)

func (c siteContext) String() string {
	switch c {
	case bareContext:
		return "bare"
	case equalityContext:
		return "eq"
	case notEqualityContext:
		return "neq"
	case inContext:
		return "in"
	case notInContext:
		return "not-in"
	default:
		return "unknown"
	}
}

// operator returns the literal emitted in front of scalar and NULL fragments
// bound to sites with this context. Bare sites have no operator.
func (c siteContext) operator() string {
	switch c {
	case equalityContext, inContext:
		return " = "
	case notEqualityContext, notInContext:
		return " != "
	default:
		return ""
	}
}

// listKeyword returns the keyword opening a multi-element list emitted for
// this context.
func (c siteContext) listKeyword() string {
	switch c {
	case notEqualityContext, notInContext:
		return " NOT IN("
	default:
		return " IN("
	}
}

// sitePart represents a recognized placeholder site together with the
// anchoring syntax it replaces.
type sitePart struct {
	// context records the syntax the site is anchored to: bare, an equality
	// operator, or an IN clause.
	context siteContext

	// name is the placeholder name for ":name" sites. It is empty for "?"
	// sites.
	name string

	// ordinal is the position of this site among the positional sites of the
	// template, starting at 0. It is -1 for named sites.
	ordinal int

	// raw is the template text the site replaces.
	raw string
}

func (p *sitePart) String() string {
	if p.name != "" {
		return fmt.Sprintf("Site[%s :%s]", p.context, p.name)
	}
	return fmt.Sprintf("Site[%s ?%d]", p.context, p.ordinal)
}

// Marker function for templatePart.
func (p *sitePart) part() {}

// describe returns the site's noun phrase for error messages.
func (p *sitePart) describe() string {
	if p.name != "" {
		return fmt.Sprintf(`named placeholder ":%s"`, p.name)
	}
	return fmt.Sprintf("positional placeholder %d", p.ordinal+1)
}

// bypassPart represents a part of the template that is not touched by the
// resolver and is reproduced verbatim in the output.
type bypassPart struct {
	chunk string
}

func (p *bypassPart) String() string {
	return "Bypass[" + p.chunk + "]"
}

// Marker function for templatePart.
func (p *bypassPart) part() {}

// ParsedTemplate is the result of scanning a SQL template: the bypass chunks
// and placeholder sites in source order. A ParsedTemplate is immutable and
// can be resolved any number of times.
type ParsedTemplate struct {
	parts []templatePart

	// positionalCount is the number of "?" sites in the template.
	positionalCount int
}

// String returns a textual representation of the parsed template for
// debugging and testing purposes.
func (pt *ParsedTemplate) String() string {
	var out bytes.Buffer
	out.WriteString("[")
	for i, p := range pt.parts {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(p.String())
	}
	out.WriteString("]")
	return out.String()
}
