package asp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned when symbol text cannot be parsed as ground terms.
var ErrSyntax = errors.New("asp: syntax error")

// #region api

// Parse parses exactly one ground term.
func Parse(s string) (Term, error) {
	p := &parser{src: s}
	p.skipSpace()
	t, err := p.term()
	if err != nil {
		return Term{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Term{}, p.errorf("trailing input %q", p.src[p.pos:])
	}
	return t, nil
}

// ParseAll parses a whitespace separated sequence of ground terms, as found on
// a clingo answer line. An empty or blank line yields no terms.
func ParseAll(s string) ([]Term, error) {
	p := &parser{src: s}
	var out []Term
	for {
		p.skipSpace()
		if p.eof() {
			return out, nil
		}
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}

// MustParse is Parse for literals in tests and tables; it panics on error.
func MustParse(s string) Term {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// #endregion api

// #region parser

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) term() (Term, error) {
	c := p.peek()
	switch {
	case c == '"':
		return p.str()
	case c == '#':
		return p.special()
	case c == '(':
		args, trailingComma, err := p.args()
		if err != nil {
			return Term{}, err
		}
		if len(args) == 1 && !trailingComma {
			return args[0], nil
		}
		return Tuple(args...), nil
	case c == '-':
		p.pos++
		if isDigit(p.peek()) {
			n, err := p.number()
			return Num(-n.Number), err
		}
		if !isIdentStart(p.peek()) {
			return Term{}, p.errorf("expected number or identifier after '-'")
		}
		t, err := p.function()
		t.Name = "-" + t.Name
		return t, err
	case isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.function()
	case c == 0:
		return Term{}, p.errorf("unexpected end of input")
	default:
		return Term{}, p.errorf("unexpected character %q", c)
	}
}

func (p *parser) number() (Term, error) {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return Term{}, p.errorf("bad number %q", p.src[start:p.pos])
	}
	return Num(n), nil
}

func (p *parser) special() (Term, error) {
	switch {
	case strings.HasPrefix(p.src[p.pos:], "#inf"):
		p.pos += 4
		return Term{Kind: KindInfimum}, nil
	case strings.HasPrefix(p.src[p.pos:], "#sup"):
		p.pos += 4
		return Term{Kind: KindSupremum}, nil
	}
	return Term{}, p.errorf("unknown special term")
}

func (p *parser) str() (Term, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return Term{}, p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return Str(b.String()), nil
		case '\\':
			if p.eof() {
				return Term{}, p.errorf("unterminated escape")
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case '\\', '"':
				b.WriteByte(e)
			default:
				return Term{}, p.errorf("unknown escape \\%c", e)
			}
		default:
			b.WriteByte(c)
		}
	}
}

func (p *parser) function() (Term, error) {
	start := p.pos
	for isIdentChar(p.peek()) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if p.peek() != '(' {
		return Fn(name), nil
	}
	args, _, err := p.args()
	if err != nil {
		return Term{}, err
	}
	return Fn(name, args...), nil
}

// args parses a parenthesised, comma separated argument list. It reports
// whether the list ended in a trailing comma, which marks a 1-tuple.
func (p *parser) args() ([]Term, bool, error) {
	p.pos++ // '('
	var args []Term
	trailing := false
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return args, trailing, nil
		}
		t, err := p.term()
		if err != nil {
			return nil, false, err
		}
		args = append(args, t)
		trailing = false
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			trailing = true
		case ')':
		default:
			return nil, false, p.errorf("expected ',' or ')'")
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '\'' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

// #endregion parser
