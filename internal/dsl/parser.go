package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokInt
	tokAnd
	tokOr
	tokNot
	tokAny
	tokOf
	tokCount
	tokWithin
	tokEvents
	tokDrift
	tokCmp
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
	n    int
}

var keywords = map[string]tokenKind{
	"AND":        tokAnd,
	"OR":         tokOr,
	"NOT":        tokNot,
	"ANY":        tokAny,
	"OF":         tokOf,
	"COUNT":      tokCount,
	"WITHIN":     tokWithin,
	"EVENTS":     tokEvents,
	"DRIFT_HIGH": tokDrift,
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '!':
			toks = append(toks, token{kind: tokNot, text: "!", pos: i})
			i++
		case c == '&':
			j := i + 1
			if j < len(src) && src[j] == '&' {
				j++
			}
			toks = append(toks, token{kind: tokAnd, text: src[i:j], pos: i})
			i = j
		case c == '|':
			j := i + 1
			if j < len(src) && src[j] == '|' {
				j++
			}
			toks = append(toks, token{kind: tokOr, text: src[i:j], pos: i})
			i = j
		case c == '>' || c == '<':
			j := i + 1
			if j < len(src) && src[j] == '=' {
				j++
			}
			toks = append(toks, token{kind: tokCmp, text: src[i:j], pos: i})
			i = j
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokCmp, text: "==", pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Msg: "unexpected '='; did you mean '=='"}
			}
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(src[i:j])
			if err != nil {
				return nil, &ParseError{Pos: i, Msg: "invalid number"}
			}
			toks = append(toks, token{kind: tokInt, text: src[i:j], pos: i, n: n})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			text := src[i:j]
			kind := tokIdent
			if k, ok := keywords[strings.ToUpper(text)]; ok {
				kind = k
			}
			toks = append(toks, token{kind: kind, text: text, pos: i})
			i = j
		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
	toks = append(toks, token{kind: tokEOF, text: "end of rule", pos: len(src)})
	return toks, nil
}

// AST nodes. The parser builds these once; compile turns them into
// evaluator closures.
type node interface{ isNode() }

type refNode struct{ id string }

type countNode struct {
	id  string
	op  string
	thr int
}

type anyOfNode struct {
	n   int
	ids []string
}

type driftNode struct{}

type notNode struct{ x node }

type andNode struct{ left, right node }

type orNode struct{ left, right node }

func (*refNode) isNode()   {}
func (*countNode) isNode() {}
func (*anyOfNode) isNode() {}
func (*driftNode) isNode() {}
func (*notNode) isNode()   {}
func (*andNode) isNode()   {}
func (*orNode) isNode()    {}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.cur()
	if t.kind != kind {
		return token{}, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, got %q", what, t.text)}
	}
	return p.advance(), nil
}

func (p *parser) parseRule() (node, int, error) {
	root, err := p.parseOr()
	if err != nil {
		return nil, 0, err
	}
	window := 0
	if p.cur().kind == tokWithin {
		p.advance()
		t, err := p.expect(tokInt, "window size")
		if err != nil {
			return nil, 0, err
		}
		if t.n <= 0 {
			return nil, 0, &ParseError{Pos: t.pos, Msg: "window size must be positive"}
		}
		window = t.n
		if _, err := p.expect(tokEvents, `"EVENTS"`); err != nil {
			return nil, 0, err
		}
	}
	if t := p.cur(); t.kind != tokEOF {
		return nil, 0, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return root, window, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.cur().kind == tokNot {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	switch t := p.cur(); t.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil
	case tokAny:
		return p.parseAnyOf()
	case tokDrift:
		p.advance()
		return &driftNode{}, nil
	case tokIdent:
		p.advance()
		if p.cur().kind == tokCount {
			p.advance()
			op, err := p.expect(tokCmp, "comparison operator")
			if err != nil {
				return nil, err
			}
			thr, err := p.expect(tokInt, "count threshold")
			if err != nil {
				return nil, err
			}
			return &countNode{id: t.text, op: op.text, thr: thr.n}, nil
		}
		return &refNode{id: t.text}, nil
	default:
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf(`expected marker id, NOT, ANY, DRIFT_HIGH or "(", got %q`, t.text)}
	}
}

func (p *parser) parseAnyOf() (node, error) {
	p.advance() // ANY
	t, err := p.expect(tokInt, "threshold after ANY")
	if err != nil {
		return nil, err
	}
	if t.n <= 0 {
		return nil, &ParseError{Pos: t.pos, Msg: "ANY threshold must be positive"}
	}
	if _, err := p.expect(tokOf, `"OF"`); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, `"("`); err != nil {
		return nil, err
	}
	var ids []string
	seen := make(map[string]bool)
	for {
		id, err := p.expect(tokIdent, "marker id")
		if err != nil {
			return nil, err
		}
		if seen[id.text] {
			return nil, &ParseError{Pos: id.pos, Msg: fmt.Sprintf("duplicate marker id %q in set", id.text)}
		}
		seen[id.text] = true
		ids = append(ids, id.text)
		if p.cur().kind != tokComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokRParen, `")"`); err != nil {
		return nil, err
	}
	if t.n > len(ids) {
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("ANY threshold %d exceeds set size %d", t.n, len(ids))}
	}
	return &anyOfNode{n: t.n, ids: ids}, nil
}
