// Package bubfile implements the declarative package-file parser of
// spec §4.2: whitespace tokens, "#" comments, ";" statement terminators,
// ":" field separators, "${NAME}" variable expansion, and "[tag]( ... )"
// conditional regions gated by an expression environment (spec §4.2,
// expanded in SPEC_FULL.md DOMAIN-4).
package bubfile

import (
	"fmt"
	"unicode"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/options"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokColon
	tokSemicolon
)

type token struct {
	Text string
	Kind tokenKind
	Line int
}

// Evaluator decides whether a "[tag](...)" conditional region's contents
// should be included, per spec §4.2 ("tag ∈ CONDITIONALS").
type Evaluator func(tag string) (bool, error)

type lexer struct {
	path  string
	src   []rune
	pos   int
	line  int
	eval  Evaluator
	vars  map[string][]string
}

func newLexer(path, src string, eval Evaluator, vars map[string][]string) *lexer {
	return &lexer{path: path, src: []rune(src), line: 1, eval: eval, vars: vars}
}

func (l *lexer) eof() bool { return l.pos >= len(l.src) }
func (l *lexer) peek() rune {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() rune {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
	}
	return c
}

func (l *lexer) origin() buberr.Origin { return buberr.Origin{Path: l.path, Line: l.line} }

func isWordBoundary(c rune) bool {
	return unicode.IsSpace(c) || c == ':' || c == ';' || c == '#' || c == 0
}

// tokenize lexes the whole source into a flat token stream, inlining the
// contents of enabled conditional regions and dropping disabled ones.
func (l *lexer) tokenize() ([]token, error) {
	var out []token
	for {
		l.skipWhitespaceAndComments()
		if l.eof() {
			break
		}
		switch c := l.peek(); {
		case c == ':':
			out = append(out, token{Text: ":", Kind: tokColon, Line: l.line})
			l.advance()
		case c == ';':
			out = append(out, token{Text: ";", Kind: tokSemicolon, Line: l.line})
			l.advance()
		case c == '[':
			toks, err := l.readConditional()
			if err != nil {
				return nil, err
			}
			out = append(out, toks...)
		default:
			word, line := l.readWord()
			for _, expanded := range options.Expand(word, nil, l.vars) {
				out = append(out, token{Text: expanded, Kind: tokWord, Line: line})
			}
		}
	}
	return out, nil
}

func (l *lexer) skipWhitespaceAndComments() {
	for !l.eof() {
		c := l.peek()
		if unicode.IsSpace(c) {
			l.advance()
			continue
		}
		if c == '#' {
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		break
	}
}

func (l *lexer) readWord() (string, int) {
	line := l.line
	start := l.pos
	for !l.eof() && !isWordBoundary(l.peek()) {
		l.advance()
	}
	return string(l.src[start:l.pos]), line
}

// readConditional parses "[tag]( ... )" at the current position (which
// must be '['). No nesting is permitted; only whitespace may appear
// between ']' and '('.
func (l *lexer) readConditional() ([]token, error) {
	origin := l.origin()
	l.advance() // consume '['

	start := l.pos
	for !l.eof() && l.peek() != ']' {
		l.advance()
	}
	if l.eof() {
		return nil, buberr.NewConfigError(origin, "unterminated '[' conditional tag")
	}
	tag := string(l.src[start:l.pos])
	l.advance() // consume ']'

	for !l.eof() && unicode.IsSpace(l.peek()) {
		l.advance()
	}
	if l.eof() || l.peek() != '(' {
		return nil, buberr.NewConfigError(origin, "expected '(' after '[%s]' (only whitespace allowed)", tag)
	}
	l.advance() // consume '('

	depth := 1
	bodyStart := l.pos
	for !l.eof() && depth > 0 {
		switch l.peek() {
		case '(':
			return nil, buberr.NewConfigError(l.origin(), "nested '(' inside conditional region for tag %q is not permitted", tag)
		case ')':
			depth--
			if depth == 0 {
				goto closed
			}
		}
		l.advance()
	}
closed:
	if l.eof() {
		return nil, buberr.NewConfigError(origin, "unterminated conditional region for tag %q", tag)
	}
	body := string(l.src[bodyStart:l.pos])
	l.advance() // consume ')'

	enabled, err := l.eval(tag)
	if err != nil {
		return nil, buberr.NewConfigError(origin, "tag %q is not a valid conditional (%v)", tag, err)
	}
	if !enabled {
		return nil, nil
	}

	sub := newLexer(l.path, body, l.eval, l.vars)
	sub.line = origin.Line
	toks, err := sub.tokenize()
	if err != nil {
		return nil, fmt.Errorf("in conditional region %q: %w", tag, err)
	}
	return toks, nil
}
