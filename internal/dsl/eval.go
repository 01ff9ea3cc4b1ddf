package dsl

// state carries one evaluation pass. Avail results are cached so a rule
// referencing the same marker twice sees a consistent view.
type state struct {
	ctx    *Context
	window int
	cache  map[string][]Candidate
}

func (s *state) avail(id string) []Candidate {
	if cs, ok := s.cache[id]; ok {
		return cs
	}
	cs := s.ctx.Avail(id)
	if s.window > 0 {
		w := uint64(s.window)
		var visible []Candidate
		for _, c := range cs {
			if c.Seq+w > s.ctx.MaxSeq {
				visible = append(visible, c)
			}
		}
		cs = visible
	}
	s.cache[id] = cs
	return cs
}

type evalFn func(*state) (bool, []Candidate)

func compile(n node) evalFn {
	switch v := n.(type) {
	case *refNode:
		id := v.id
		return func(s *state) (bool, []Candidate) {
			cs := s.avail(id)
			if len(cs) == 0 {
				return false, nil
			}
			return true, cs[:1]
		}
	case *countNode:
		id, op, thr := v.id, v.op, v.thr
		return func(s *state) (bool, []Candidate) {
			cs := s.avail(id)
			c := len(cs)
			switch op {
			case ">":
				if c > thr {
					return true, cs[:thr+1]
				}
			case ">=":
				if c >= thr {
					return true, cs[:thr]
				}
			case "<":
				if c < thr {
					return true, nil
				}
			case "<=":
				if c <= thr {
					return true, nil
				}
			case "==":
				if c == thr {
					return true, nil
				}
			}
			return false, nil
		}
	case *anyOfNode:
		n, ids := v.n, v.ids
		return func(s *state) (bool, []Candidate) {
			refs := make([]Candidate, 0, n)
			for _, id := range ids {
				if cs := s.avail(id); len(cs) > 0 {
					refs = append(refs, cs[0])
					if len(refs) == n {
						return true, refs
					}
				}
			}
			return false, nil
		}
	case *driftNode:
		return func(s *state) (bool, []Candidate) {
			return s.ctx.DriftHigh, nil
		}
	case *notNode:
		x := compile(v.x)
		return func(s *state) (bool, []Candidate) {
			ok, _ := x(s)
			return !ok, nil
		}
	case *andNode:
		left, right := compile(v.left), compile(v.right)
		return func(s *state) (bool, []Candidate) {
			lok, lrefs := left(s)
			if !lok {
				return false, nil
			}
			rok, rrefs := right(s)
			if !rok {
				return false, nil
			}
			refs := make([]Candidate, 0, len(lrefs)+len(rrefs))
			refs = append(refs, lrefs...)
			refs = append(refs, rrefs...)
			return true, refs
		}
	case *orNode:
		left, right := compile(v.left), compile(v.right)
		return func(s *state) (bool, []Candidate) {
			if ok, refs := left(s); ok {
				return true, refs
			}
			return right(s)
		}
	}
	panic("dsl: unknown node type")
}
