// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symbolic parses arithmetic expressions into gosymbol trees and
// compiles them, with their derivatives, into plain float64 functions.
package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/njchilds90/gosymbol"
)

var (
	ErrSyntax      = errors.New("symbolic: syntax error")
	ErrUnbound     = errors.New("symbolic: unbound variable")
	ErrUnsupported = errors.New("symbolic: unsupported expression")
)

// SyntaxError locates a parse failure in the source text.
type SyntaxError struct {
	Pos int // byte offset
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("symbolic: syntax error at offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

var functions = map[string]func(gosymbol.Expr) gosymbol.Expr{
	"sin":  gosymbol.SinOf,
	"cos":  gosymbol.CosOf,
	"tan":  gosymbol.TanOf,
	"exp":  gosymbol.ExpOf,
	"ln":   gosymbol.LnOf,
	"log":  gosymbol.LnOf,
	"sqrt": gosymbol.SqrtOf,
	"abs":  gosymbol.AbsOf,
	"asin": gosymbol.AsinOf,
	"acos": gosymbol.AcosOf,
	"atan": gosymbol.AtanOf,
	"sinh": gosymbol.SinhOf,
	"cosh": gosymbol.CoshOf,
	"tanh": gosymbol.TanhOf,
}

var constants = map[string]float64{
	"pi": math.Pi,
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNum
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	src string
	pos int
	tok token
}

// Parse reads an infix expression such as "x^2 + 3*sin(y) - 1/z".
//
// Operators are + - * / and ^ (or **), with the usual precedence and a right
// associative power; unary minus binds looser than ^ so -x^2 is -(x^2).
// log is the natural logarithm and pi the only named constant.
func Parse(src string) (gosymbol.Expr, error) {
	p := &parser{src: src}
	if err := p.next(); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
func MustParse(src string) gosymbol.Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) next() error {
	for p.pos < len(p.src) {
		r, w := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		p.pos += w
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return nil
	}

	r, w := utf8.DecodeRuneInString(p.src[p.pos:])
	switch {
	case unicode.IsDigit(r) || r == '.':
		end := scanNumber(p.src, p.pos)
		p.tok = token{kind: tokNum, text: p.src[start:end], pos: start}
		p.pos = end
	case unicode.IsLetter(r) || r == '_':
		end := p.pos
		for end < len(p.src) {
			r, w := utf8.DecodeRuneInString(p.src[end:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				break
			}
			end += w
		}
		p.tok = token{kind: tokIdent, text: p.src[start:end], pos: start}
		p.pos = end
	case strings.HasPrefix(p.src[p.pos:], "**"):
		p.tok = token{kind: tokOp, text: "^", pos: start}
		p.pos += 2
	case strings.ContainsRune("+-*/^()", r):
		p.tok = token{kind: tokOp, text: string(r), pos: start}
		p.pos += w
	default:
		return &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", r)}
	}
	return nil
}

func scanNumber(s string, i int) int {
	digits := func() {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	digits()
	if i < len(s) && s[i] == '.' {
		i++
		digits()
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			i = j
			digits()
		}
	}
	return i
}

func (p *parser) is(op string) bool {
	return p.tok.kind == tokOp && p.tok.text == op
}

// expr := term { (+|-) term }
func (p *parser) expr() (gosymbol.Expr, error) {
	e, err := p.term()
	if err != nil {
		return nil, err
	}
	terms := []gosymbol.Expr{e}
	for p.is("+") || p.is("-") {
		neg := p.is("-")
		if err := p.next(); err != nil {
			return nil, err
		}
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		if neg {
			t = negate(t)
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return e, nil
	}
	return gosymbol.AddOf(terms...), nil
}

// term := unary { (*|/) unary }
func (p *parser) term() (gosymbol.Expr, error) {
	e, err := p.unary()
	if err != nil {
		return nil, err
	}
	factors := []gosymbol.Expr{e}
	for p.is("*") || p.is("/") {
		div := p.is("/")
		if err := p.next(); err != nil {
			return nil, err
		}
		f, err := p.unary()
		if err != nil {
			return nil, err
		}
		if div {
			f = gosymbol.PowOf(f, gosymbol.N(-1))
		}
		factors = append(factors, f)
	}
	if len(factors) == 1 {
		return e, nil
	}
	return gosymbol.MulOf(factors...), nil
}

// unary := (-|+) unary | power
func (p *parser) unary() (gosymbol.Expr, error) {
	if p.is("-") || p.is("+") {
		neg := p.is("-")
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.unary()
		if err != nil || !neg {
			return e, err
		}
		return negate(e), nil
	}
	return p.power()
}

// power := primary [ ^ unary ]
func (p *parser) power() (gosymbol.Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if !p.is("^") {
		return base, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return gosymbol.PowOf(base, exp), nil
}

func (p *parser) primary() (gosymbol.Expr, error) {
	tok := p.tok
	switch tok.kind {
	case tokNum:
		n, err := number(tok.text)
		if err != nil {
			return nil, p.errorf("bad number %q", tok.text)
		}
		return n, p.next()

	case tokIdent:
		if err := p.next(); err != nil {
			return nil, err
		}
		if !p.is("(") {
			if v, ok := constants[tok.text]; ok {
				return gosymbol.NFloat(v), nil
			}
			if _, ok := functions[tok.text]; ok {
				return nil, p.errorf("function %s needs an argument", tok.text)
			}
			return gosymbol.S(tok.text), nil
		}
		fn, ok := functions[tok.text]
		if !ok {
			return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unknown function %q", tok.text)}
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.is(")") {
			return nil, p.errorf("missing ) after argument of %s", tok.text)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := constantDomain(tok, arg); err != nil {
			return nil, err
		}
		return fn(arg), nil

	case tokOp:
		if tok.text == "(" {
			if err := p.next(); err != nil {
				return nil, err
			}
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			if !p.is(")") {
				return nil, p.errorf("missing )")
			}
			return e, p.next()
		}
	case tokEOF:
		return nil, p.errorf("unexpected end of input")
	}
	return nil, p.errorf("unexpected %q", tok.text)
}

// constantDomain rejects functions of constants whose value is not finite,
// which gosymbol would fold into an unrepresentable number.
func constantDomain(tok token, arg gosymbol.Expr) error {
	n, ok := arg.(*gosymbol.Num)
	if !ok {
		return nil
	}
	if tok.text == "sqrt" {
		if n.IsNegative() {
			return &SyntaxError{Pos: tok.pos, Msg: "sqrt of a negative constant"}
		}
		return nil
	}
	v := n.Float64()
	if f := mathFuncs[tok.text]; f != nil {
		v = f(v)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("%s(%s) is not finite", tok.text, n)}
	}
	return nil
}

func negate(e gosymbol.Expr) gosymbol.Expr {
	return gosymbol.MulOf(gosymbol.N(-1), e)
}

// number converts a decimal literal to an exact rational when it fits.
func number(text string) (gosymbol.Expr, error) {
	r, ok := new(big.Rat).SetString(text)
	if ok && r.Num().IsInt64() && r.Denom().IsInt64() {
		return gosymbol.F(r.Num().Int64(), r.Denom().Int64()), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, strconv.ErrRange
	}
	return gosymbol.NFloat(f), nil
}
