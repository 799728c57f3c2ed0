package enforce

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// evalExpression evaluates a restricted arithmetic expression over payload
// values. The grammar is closed: numbers, dot-path identifiers resolved
// from the payload, + - * /, unary minus and parentheses. There is no
// function call syntax and no way to reach anything outside the payload.
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := number | ident | '(' expr ')' | '-' factor
func evalExpression(expr string, payload map[string]any) (float64, error) {
	p := &exprParser{input: expr, payload: payload}
	v, err := p.parseExpr()
	if err != nil {
		return 0, fmt.Errorf("expression %q: %w", expr, err)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("expression %q: unexpected %q at offset %d", expr, p.input[p.pos], p.pos)
	}
	return v, nil
}

type exprParser struct {
	input   string
	pos     int
	payload map[string]any
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.consume('+'):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case p.consume('-'):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.consume('*'):
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case p.consume('/'):
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if p.consume('-') {
		v, err := p.parseFactor()
		return -v, err
	}

	if p.consume('(') {
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if !p.consume(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return v, nil
	}

	c := p.input[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(rune(c)):
		return p.parseIdent()
	default:
		return 0, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

// parseIdent reads a dot-path identifier and resolves it from the payload.
// A missing or non-numeric field is an evaluation error; the caller
// degrades the predicate, it does not guess a default.
func (p *exprParser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if isIdentStart(c) || unicode.IsDigit(c) || c == '.' {
			p.pos++
			continue
		}
		break
	}
	path := strings.TrimPrefix(p.input[start:p.pos], "payload.")

	v, ok := resolvePath(p.payload, path)
	if !ok {
		return 0, fmt.Errorf("field %q is not in the payload", path)
	}
	n, err := convertToFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", path, err)
	}
	return n, nil
}

func (p *exprParser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}
