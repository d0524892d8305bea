// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package resolve

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

func NewParser() *Parser {
	return &Parser{}
}

type Parser struct {
	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// prevPartEnd is the value of pos when we last finished parsing a part.
	prevPartEnd int
	// currentPartStart is the position where the part under scrutiny begins.
	// We maintain currentPartStart >= prevPartEnd.
	currentPartStart int
	// parts are the output of the parser. Parts are added as they are parsed.
	parts []templatePart
	// positionalCount is the number of "?" sites recognized so far.
	positionalCount int
	// lineNum is the number of the current line of the input.
	lineNum int
	// lineStart is the position of the first char of the current line in the
	// input.
	lineStart int
}

// Parse scans a SQL template for placeholder sites and returns a
// ParsedTemplate. Text inside string literals and comments is never a site.
func (p *Parser) Parse(input string) (pt *ParsedTemplate, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot parse template: %s", err)
		}
	}()

	p.init(input)

	for {
		if err := p.advanceToNextSite(); err != nil {
			return nil, err
		}

		p.currentPartStart = p.pos

		if p.pos == len(p.input) {
			break
		}

		if site, ok := p.parseSite(); ok {
			p.add(site)
			continue
		}

		// No site found, advance the parser. This prevents advanceToNextSite
		// finding the same char again.
		p.advanceChar()
	}

	// Add any remaining unparsed string input to the parser.
	p.add(nil)
	return &ParsedTemplate{parts: p.parts, positionalCount: p.positionalCount}, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.prevPartEnd = 0
	p.currentPartStart = 0
	p.parts = []templatePart{}
	p.positionalCount = 0
	p.lineNum = 1
	p.lineStart = 0
	p.advanceChar()
}

// colNum calculates the current column number taking into account line breaks.
func (p *Parser) colNum() int {
	return p.pos - p.lineStart + 1
}

// advanceChar moves the parser to the next character in the input. It also
// takes care of updating the line and column numbers if it encounters line
// breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// errorAt wraps an error with line and column information.
func errorAt(err error, line int, column int, input string) error {
	if strings.ContainsRune(input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", line, column, err)
	} else {
		return fmt.Errorf("column %d: %w", column, err)
	}
}

// A checkpoint struct for saving parser state to restore later. We only use a
// checkpoint within an attempted parsing of a site, not at a higher level
// since we don't keep track of the parts in the checkpoint.
type checkpoint struct {
	parser           *Parser
	pos              int
	nextPos          int
	char             rune
	prevPartEnd      int
	currentPartStart int
	parts            []templatePart
	positionalCount  int
	lineNum          int
	lineStart        int
}

// save takes a snapshot of the state of the parser and returns a pointer to a
// checkpoint that represents it.
func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:           p,
		pos:              p.pos,
		nextPos:          p.nextPos,
		char:             p.char,
		prevPartEnd:      p.prevPartEnd,
		currentPartStart: p.currentPartStart,
		parts:            p.parts,
		positionalCount:  p.positionalCount,
		lineNum:          p.lineNum,
		lineStart:        p.lineStart,
	}
}

// restore sets the internal state of the parser to the values stored in the
// checkpoint.
func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.prevPartEnd = cp.prevPartEnd
	cp.parser.currentPartStart = cp.currentPartStart
	cp.parser.parts = cp.parts
	cp.parser.positionalCount = cp.positionalCount
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// add pushes the parsed site to the list of parts along with the bypass chunk
// that stretches from the end of the previous part to the beginning of this
// one.
func (p *Parser) add(site *sitePart) {
	// Add the string between the previous site and the current site.
	if p.prevPartEnd != p.currentPartStart {
		p.parts = append(p.parts,
			&bypassPart{p.input[p.prevPartEnd:p.currentPartStart]})
	}

	if site != nil {
		p.parts = append(p.parts, site)
	}

	// Save this position at the end of the part.
	p.prevPartEnd = p.pos
	// Ensure that currentPartStart >= prevPartEnd.
	p.currentPartStart = p.pos
}

// advanceToNextSite advances the parser until it finds a character that could
// start a placeholder site, skipping over string literals, dollar-quoted
// sections and comments.
func (p *Parser) advanceToNextSite() error {
	for p.pos < len(p.input) {
		if ok, err := p.skipStringLiteral(); err != nil {
			return err
		} else if ok {
			continue
		}
		if ok := p.skipDollarQuoted(); ok {
			continue
		}
		if ok := p.skipComment(); ok {
			continue
		}
		if p.char == '?' || p.char == ':' {
			return nil
		}
		p.advanceChar()
	}
	return nil
}

// skipComment jumps over comments as defined by the SQLite spec. If no comment
// is found the parser state is left unchanged.
func (p *Parser) skipComment() bool {
	cp := p.save()
	c := p.char
	if p.skipChar('-') || p.skipChar('/') {
		if (c == '-' && p.skipChar('-')) || (c == '/' && p.skipChar('*')) {
			var end rune
			if c == '-' {
				end = '\n'
			} else {
				end = '*'
			}
			for p.pos < len(p.input) {
				if p.char == end {
					// if end == '\n' (i.e. its a -- comment) dont consume the newline.
					if end == '*' {
						p.advanceChar()
						if !p.skipChar('/') {
							continue
						}
					}
					return true
				}
				p.advanceChar()
			}
			// Reached end of input (valid comment end).
			return true
		}
		cp.restore()
		return false
	}
	return false
}

// skipStringLiteral jumps over single quoted, double quoted and backtick
// quoted sections of input. Doubled up quotes are escaped.
func (p *Parser) skipStringLiteral() (bool, error) {
	cp := p.save()

	c := p.char
	if p.skipChar('"') || p.skipChar('\'') || p.skipChar('`') {

		// We keep track of whether the next quote has been previously
		// escaped. If not, it might be a closing quote.
		maybeCloser := true
		for p.skipCharFind(c) {
			// If this looks like a closing quote, check if it might be an
			// escape for a following quote. If not, we're done.
			if maybeCloser && !p.peekChar(c) {
				return true, nil
			}
			maybeCloser = !maybeCloser
		}

		// Reached end of string and didn't find the closing quote
		cp.restore()
		return false, errorAt(fmt.Errorf("missing closing quote in string literal"), p.lineNum, p.colNum(), p.input)
	}
	return false, nil
}

// skipDollarQuoted jumps over Postgres dollar-quoted sections such as
// $$ ... $$ and $tag$ ... $tag$. If the current position does not open a
// dollar quote, or no closing delimiter exists, the parser is left
// unchanged.
func (p *Parser) skipDollarQuoted() bool {
	cp := p.save()
	mark := p.pos
	if !p.skipChar('$') {
		return false
	}
	p.skipName()
	if !p.skipChar('$') {
		cp.restore()
		return false
	}
	delim := p.input[mark:p.pos]
	i := strings.Index(p.input[p.pos:], delim)
	if i < 0 {
		cp.restore()
		return false
	}
	target := p.pos + i + len(delim)
	for p.pos < target {
		p.advanceChar()
	}
	return true
}

// peekChar returns true if the current char equals the one passed as parameter.
func (p *Parser) peekChar(c rune) bool {
	return p.pos < len(p.input) && p.char == c
}

// skipChar jumps over the current char if it matches the char passed as a
// parameter. Returns true in that case, false otherwise.
func (p *Parser) skipChar(c rune) bool {
	if p.pos < len(p.input) && p.char == c {
		p.advanceChar()
		return true
	}
	return false
}

// skipCharFind looks for a char that matches the one passed as parameter and
// then advances the parser to jump over it. In that case returns true. If the
// end of the string is reached and no matching char was found, it returns
// false and it does not change the parser.
func (p *Parser) skipCharFind(c rune) bool {
	cp := p.save()
	for p.pos < len(p.input) {
		if p.char == c {
			p.advanceChar()
			return true
		}
		p.advanceChar()
	}
	cp.restore()
	return false
}

// skipBlanks advances the parser past spaces, tabs and newlines. Returns
// whether the parser position was changed.
func (p *Parser) skipBlanks() bool {
	mark := p.pos
	for p.pos < len(p.input) {
		if ok := p.skipComment(); ok {
			continue
		}
		switch p.char {
		case ' ', '\t', '\r', '\n':
			p.advanceChar()
		default:
			return p.pos != mark
		}
	}
	return p.pos != mark
}

// isNameChar returns true if the given char can be part of a name. It returns
// false otherwise.
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

// isInitialNameChar returns true if the given char can appear at the start of
// a name. It returns false otherwise.
func isInitialNameChar(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

// skipName advances the parser until it is on the first non name char and
// returns true. If the p.pos does not start on a name char it returns false.
func (p *Parser) skipName() bool {
	if p.pos >= len(p.input) {
		return false
	}
	mark := p.pos
	if isInitialNameChar(p.char) {
		p.advanceChar()
		for p.pos < len(p.input) && isNameChar(p.char) {
			p.advanceChar()
		}
	}
	return p.pos > mark
}

// charBefore returns the rune ending at the given position.
func (p *Parser) charBefore(pos int) (rune, bool) {
	if pos <= 0 || pos > len(p.input) {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(p.input[:pos])
	return r, true
}

// Functions with the prefix parse attempt to parse some construct. They
// return the construct and a bool that indicates if the construct was
// successfully parsed.

// parseSite parses a placeholder site at the current position, classifying
// it against its surrounding syntax. The site's span may reach backward over
// an anchoring "=", "!=" or "IN(" along with the whitespace in front of it:
// anchored syntax is replaced together with the placeholder.
func (p *Parser) parseSite() (*sitePart, bool) {
	cp := p.save()
	start := p.pos

	name, ok := p.parsePlaceholder()
	if !ok {
		cp.restore()
		return nil, false
	}

	context, spanStart := anchorBefore(p.input, start)
	if context == inContext || context == notInContext {
		// The IN form only holds if the placeholder sits alone in its
		// parentheses.
		inCp := p.save()
		p.skipBlanks()
		if !p.skipChar(')') {
			inCp.restore()
			context, spanStart = bareContext, start
		}
	}

	p.currentPartStart = spanStart
	site := &sitePart{
		context: context,
		name:    name,
		ordinal: -1,
		raw:     p.input[spanStart:p.pos],
	}
	if name == "" {
		site.ordinal = p.positionalCount
		p.positionalCount++
	}
	return site, true
}

// parsePlaceholder parses a "?" or ":name" token at the current position.
// For named placeholders the name is returned; for positional ones the name
// is empty. A ":" preceded by a name char or another ":" opens no
// placeholder, so casts such as x::integer are left alone.
func (p *Parser) parsePlaceholder() (string, bool) {
	if p.skipChar('?') {
		return "", true
	}
	cp := p.save()
	if p.skipChar(':') {
		if prev, ok := p.charBefore(cp.pos); ok && (isNameChar(prev) || prev == ':') {
			cp.restore()
			return "", false
		}
		mark := p.pos
		if p.skipName() {
			return p.input[mark:p.pos], true
		}
		cp.restore()
	}
	return "", false
}

// anchorBefore inspects the input immediately before a placeholder at start
// and classifies the site. It returns the context together with the position
// where the replaced span begins: anchored sites swallow their comparison
// operator or IN( syntax, including the whitespace in front of it.
//
// Composite operators such as <=, >= and <> anchor nothing: the site stays
// bare and the operator stays in the template.
func anchorBefore(input string, start int) (siteContext, int) {
	i := reverseBlanks(input, start)
	if i > 0 && input[i-1] == '=' {
		if i > 1 && input[i-2] == '!' {
			return notEqualityContext, reverseBlanks(input, i-2)
		}
		if i > 1 && (input[i-2] == '<' || input[i-2] == '>' || input[i-2] == '=') {
			return bareContext, start
		}
		return equalityContext, reverseBlanks(input, i-1)
	}
	if i > 0 && input[i-1] == '(' {
		j := reverseBlanks(input, i-1)
		if k, ok := reverseKeyword(input, j, "IN"); ok {
			w := reverseBlanks(input, k)
			if n, ok := reverseKeyword(input, w, "NOT"); ok {
				return notInContext, reverseBlanks(input, n)
			}
			return inContext, reverseBlanks(input, k)
		}
	}
	return bareContext, start
}

// reverseBlanks returns the position of the first byte of the run of blanks
// ending just before end.
func reverseBlanks(input string, end int) int {
	for end > 0 {
		switch input[end-1] {
		case ' ', '\t', '\r', '\n':
			end--
		default:
			return end
		}
	}
	return 0
}

// reverseKeyword reports whether keyword ends just before end, matched case
// insensitively. The keyword must stand alone: a name char in front of it
// disqualifies the match. On success the keyword's start position is
// returned.
func reverseKeyword(input string, end int, keyword string) (int, bool) {
	start := end - len(keyword)
	if start < 0 || !strings.EqualFold(input[start:end], keyword) {
		return 0, false
	}
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(input[:start])
		if isNameChar(prev) {
			return 0, false
		}
	}
	return start, true
}
