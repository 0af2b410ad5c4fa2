package keyexpr

// includer decides inclusion by walking every path through b while tracking
// the set of a positions reachable on the same segments. Segments that are
// literal in neither expression behave alike, so the empty string stands in
// for all of them.
type includer struct {
	a, b    []string
	symbols []string
	seen    map[string]struct{}
}

func newIncluder(a, b []string) *includer {
	literals := make(map[string]struct{})
	symbols := []string{""}
	for _, segs := range [][]string{a, b} {
		for _, seg := range segs {
			if seg == SWC || seg == MWC {
				continue
			}

			if _, ok := literals[seg]; !ok {
				literals[seg] = struct{}{}
				symbols = append(symbols, seg)
			}
		}
	}

	return &includer{
		a:       a,
		b:       b,
		symbols: symbols,
		seen:    make(map[string]struct{}),
	}
}

// closure adds the positions reachable by letting "**" match nothing.
func (in *includer) closure(set []bool) []bool {
	for k := 0; k < len(in.a); k++ {
		if set[k] && in.a[k] == MWC {
			set[k+1] = true
		}
	}
	return set
}

func (in *includer) step(set []bool, sym string) []bool {
	next := make([]bool, len(in.a)+1)
	for k := 0; k < len(in.a); k++ {
		if !set[k] {
			continue
		}

		switch in.a[k] {
		case MWC:
			next[k] = true
		case SWC:
			next[k+1] = true
		default:
			if in.a[k] == sym {
				next[k+1] = true
			}
		}
	}
	return in.closure(next)
}

// visit reports whether no key reachable from b position j, with a in the
// given set of positions, escapes a. The empty key is not a key.
func (in *includer) visit(j int, set []bool, consumed bool) bool {
	id := make([]byte, 0, len(set)+2)
	id = append(id, byte(j), byte(j>>8))
	if consumed {
		id = append(id, 1)
	} else {
		id = append(id, 0)
	}
	for _, ok := range set {
		if ok {
			id = append(id, 1)
		} else {
			id = append(id, 0)
		}
	}

	if _, ok := in.seen[string(id)]; ok {
		return true
	}
	in.seen[string(id)] = struct{}{}

	if j == len(in.b) {
		return !consumed || set[len(in.a)]
	}

	switch in.b[j] {
	case MWC:
		if !in.visit(j+1, set, consumed) {
			return false
		}

		for _, sym := range in.symbols {
			if !in.visit(j, in.step(set, sym), true) {
				return false
			}
		}
		return true

	case SWC:
		for _, sym := range in.symbols {
			if !in.visit(j+1, in.step(set, sym), true) {
				return false
			}
		}
		return true

	default:
		return in.visit(j+1, in.step(set, in.b[j]), true)
	}
}

// Includes reports whether every concrete key matched by b is matched by a.
func Includes(a, b KeyExpr) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}

	in := newIncluder(a.segments, b.segments)

	start := make([]bool, len(a.segments)+1)
	start[0] = true

	return in.visit(0, in.closure(start), false)
}
