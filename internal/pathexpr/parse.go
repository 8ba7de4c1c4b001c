// Package pathexpr addresses nodes of a document with path expressions.
//
// An expression starts at the sheet list ("sheet" or "$") and applies steps:
//
//	sheet[0]                                   index (negative counts from the end)
//	sheet[*]                                   every element
//	sheet[0].rootTopic                         field
//	sheet[0].rootTopic.children.attached[1]    category, then index
//	sheet[0].style.properties['svg:fill']      quoted field
//	$[0].rootTopic.children.attached[?(@.title == "B")]
//	sheet[0].rootTopic.children.attached[title == 'B']
//	$..[?(@.id == "abc")]                      every topic at any depth
//
// Predicates compare a relative path (which may itself index and filter)
// with a string, number, true, false or null literal using == or !=. A
// predicate without an operator tests for existence.
package pathexpr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/xmindctl/internal/errs"
)

type stepKind uint8

const (
	stepField stepKind = iota
	stepIndex
	stepWildcard
	stepDescend
	stepFilter
)

type step struct {
	kind  stepKind
	name  string
	index int
	pred  *predicate
}

type predicate struct {
	path  []step
	op    string // "==", "!=" or "" for existence
	value any    // string, float64, bool or nil
}

// Path is a compiled expression.
type Path struct {
	expr  string
	steps []step
}

// String returns the source expression.
func (p *Path) String() string {
	return p.expr
}

// Compile parses expr.
func Compile(expr string) (*Path, error) {
	p := &parser{src: strings.TrimSpace(expr)}
	if err := p.root(); err != nil {
		return nil, err
	}
	steps, err := p.steps(false)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return &Path{expr: expr, steps: steps}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return errs.New(errs.KindInvalidExpression, "parse", p.src,
		"at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) consume(s string) bool {
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		if p.eof() {
			return p.errorf("expected %q, got end of expression", c)
		}
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	p.pos++
	return nil
}

func (p *parser) root() error {
	if p.consume("$") {
		return nil
	}
	if p.name() == "sheet" {
		return nil
	}
	p.pos = 0
	return p.errorf("expression must start with \"sheet\" or \"$\"")
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == ':' || c == '-'
}

func (p *parser) name() string {
	if p.eof() || !isNameStart(p.peek()) {
		return ""
	}
	start := p.pos
	for !p.eof() && isNameByte(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// steps parses a run of steps. Inside a predicate it stops at the first
// byte that cannot continue a path.
func (p *parser) steps(inPredicate bool) ([]step, error) {
	var out []step
	for !p.eof() {
		switch p.peek() {
		case '.':
			if p.consume("..") {
				out = append(out, step{kind: stepDescend})
				if p.peek() == '[' {
					continue
				}
			} else {
				p.pos++
				if p.peek() == '[' {
					// "$.[0]" is the same as "$[0]".
					continue
				}
			}
			if p.consume("*") {
				out = append(out, step{kind: stepWildcard})
				continue
			}
			name := p.name()
			if name == "" {
				return nil, p.errorf("expected a field name")
			}
			out = append(out, step{kind: stepField, name: name})
		case '[':
			s, err := p.bracket()
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		default:
			if inPredicate {
				return out, nil
			}
			return nil, p.errorf("unexpected %q", p.peek())
		}
	}
	return out, nil
}

func (p *parser) bracket() (step, error) {
	p.pos++ // '['
	p.skipSpace()

	var s step
	switch c := p.peek(); {
	case c == '*':
		p.pos++
		s = step{kind: stepWildcard}
	case c == '\'' || c == '"':
		name, err := p.quoted()
		if err != nil {
			return step{}, err
		}
		s = step{kind: stepField, name: name}
	case c == '-' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			p.pos = start
			return step{}, p.errorf("invalid index")
		}
		s = step{kind: stepIndex, index: n}
	case c == '?':
		p.pos++
		p.skipSpace()
		paren := p.consume("(")
		pred, err := p.predicate()
		if err != nil {
			return step{}, err
		}
		if paren {
			if err := p.expect(')'); err != nil {
				return step{}, err
			}
		}
		s = step{kind: stepFilter, pred: pred}
	case c == '@' || isNameStart(c):
		pred, err := p.predicate()
		if err != nil {
			return step{}, err
		}
		s = step{kind: stepFilter, pred: pred}
	case c == 0:
		return step{}, p.errorf("unterminated '['")
	default:
		return step{}, p.errorf("unexpected %q in brackets", c)
	}

	if err := p.expect(']'); err != nil {
		return step{}, err
	}
	return s, nil
}

func (p *parser) predicate() (*predicate, error) {
	p.skipSpace()
	pred := &predicate{}
	if p.consume("@") {
		steps, err := p.steps(true)
		if err != nil {
			return nil, err
		}
		pred.path = steps
	} else {
		name := p.name()
		if name == "" {
			return nil, p.errorf("expected an attribute name")
		}
		rest, err := p.steps(true)
		if err != nil {
			return nil, err
		}
		pred.path = append([]step{{kind: stepField, name: name}}, rest...)
	}

	p.skipSpace()
	switch {
	case p.consume("=="):
		pred.op = "=="
	case p.consume("!="):
		pred.op = "!="
	case p.peek() == ')' || p.peek() == ']':
		return pred, nil
	default:
		return nil, p.errorf("expected == or !=")
	}

	p.skipSpace()
	v, err := p.literal()
	if err != nil {
		return nil, err
	}
	pred.value = v
	p.skipSpace()
	return pred, nil
}

func (p *parser) literal() (any, error) {
	c := p.peek()
	switch {
	case c == '\'' || c == '"':
		return p.quoted()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		start := p.pos
		for !p.eof() && strings.IndexByte("+-.eE0123456789", p.peek()) >= 0 {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			p.pos = start
			return nil, p.errorf("invalid number")
		}
		return f, nil
	}

	start := p.pos
	switch p.name() {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	p.pos = start
	return nil, p.errorf("expected a literal")
}

// quoted reads a single- or double-quoted string with JSON escapes.
func (p *parser) quoted() (string, error) {
	start := p.pos
	quote := p.src[p.pos]
	p.pos++

	var b strings.Builder
	b.WriteByte('"')
	for {
		if p.eof() {
			p.pos = start
			return "", p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == quote:
			b.WriteByte('"')
			var s string
			if err := json.Unmarshal([]byte(b.String()), &s); err != nil {
				p.pos = start
				return "", p.errorf("invalid string: %v", err)
			}
			return s, nil
		case c == '\\':
			if p.eof() {
				p.pos = start
				return "", p.errorf("unterminated string")
			}
			next := p.src[p.pos]
			p.pos++
			if next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
}
