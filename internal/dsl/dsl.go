// Package dsl parses and evaluates marker activation rules.
//
// A rule is a boolean expression over lower-tier marker activations:
//
//	rule    := or [ "WITHIN" n "EVENTS" ]
//	or      := and { "OR" and }
//	and     := unary { "AND" unary }
//	unary   := "NOT" unary | primary
//	primary := "(" or ")"
//	         | "ANY" n "OF" "(" id {"," id} ")"
//	         | "DRIFT_HIGH"
//	         | id [ "COUNT" (">"|">="|"<"|"<="|"==") n ]
//
// The symbols && / &, || / | and ! are accepted as aliases for AND, OR
// and NOT. Keywords are case-insensitive; marker ids are case-sensitive.
// Rules are parsed and compiled once; evaluation runs the compiled
// closure against the caller's view of unconsumed events.
package dsl

import (
	"fmt"
	"strings"
)

// Candidate is a lower-tier event visible to rule evaluation.
type Candidate struct {
	EventID    string
	Seq        uint64
	Confidence float64
}

// Context supplies the inputs for one evaluation of a rule.
type Context struct {
	// Avail returns the unconsumed candidate events for a marker id in
	// ascending sequence order. The returned slice is not modified.
	Avail func(markerID string) []Candidate
	// DriftHigh reports whether the session's drift level is high.
	DriftHigh bool
	// MaxSeq is the current highest session sequence number, used to
	// resolve WITHIN windows.
	MaxSeq uint64
}

// Rule is a parsed, compiled activation rule.
type Rule struct {
	// Source is the original rule text.
	Source string
	// Window limits evaluation to the last Window session events;
	// zero means unbounded.
	Window int
	// Deps lists the marker ids the rule references, in first-reference
	// order, without duplicates.
	Deps []string
	// UsesDrift is set when the rule contains DRIFT_HIGH.
	UsesDrift bool

	eval evalFn
}

// ParseError reports a syntax error in a rule, with a byte position
// into the source.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("position %d: %s", e.Pos, e.Msg)
}

// Parse parses and compiles an activation rule.
func Parse(source string) (*Rule, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &ParseError{Pos: 0, Msg: "empty rule"}
	}
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, window, err := p.parseRule()
	if err != nil {
		return nil, err
	}
	r := &Rule{
		Source: source,
		Window: window,
		eval:   compile(root),
	}
	collectDeps(root, r)
	return r, nil
}

// Evaluate runs the rule against ctx. When the rule is satisfied it
// returns the contributing candidates, deduplicated and in ascending
// sequence order; tests that assert absence (NOT, DRIFT_HIGH, COUNT
// with <, <= or ==) contribute nothing.
func (r *Rule) Evaluate(ctx *Context) (bool, []Candidate) {
	st := &state{ctx: ctx, window: r.Window, cache: make(map[string][]Candidate)}
	ok, refs := r.eval(st)
	if !ok {
		return false, nil
	}
	return true, normalizeRefs(refs)
}

func normalizeRefs(refs []Candidate) []Candidate {
	if len(refs) < 2 {
		return refs
	}
	seen := make(map[string]bool, len(refs))
	out := refs[:0:0]
	for _, c := range refs {
		if seen[c.EventID] {
			continue
		}
		seen[c.EventID] = true
		out = append(out, c)
	}
	// insertion sort; contribution lists are short
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Seq < out[j-1].Seq; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func collectDeps(n node, r *Rule) {
	seen := make(map[string]bool)
	var walk func(node)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			r.Deps = append(r.Deps, id)
		}
	}
	walk = func(n node) {
		switch v := n.(type) {
		case *refNode:
			add(v.id)
		case *countNode:
			add(v.id)
		case *anyOfNode:
			for _, id := range v.ids {
				add(id)
			}
		case *driftNode:
			r.UsesDrift = true
		case *notNode:
			walk(v.x)
		case *andNode:
			walk(v.left)
			walk(v.right)
		case *orNode:
			walk(v.left)
			walk(v.right)
		}
	}
	walk(n)
}
