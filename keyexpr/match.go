package keyexpr

// The matcher aligns segments left to right. memo[i][j] holds the answer for
// a.segments[i:] against b.segments[j:], so each cell is computed once and the
// cost stays O(len(a) * len(b)) however many "**" the expressions carry.

type state uint8

const (
	unknown state = iota
	yes
	no
)

type matcher struct {
	a, b []string
	memo [][]state
}

func newMatcher(a, b []string) *matcher {
	memo := make([][]state, len(a)+1)
	for i := range memo {
		memo[i] = make([]state, len(b)+1)
	}

	return &matcher{
		a:    a,
		b:    b,
		memo: memo,
	}
}

func (m *matcher) match(i, j int) bool {
	switch m.memo[i][j] {
	case yes:
		return true
	case no:
		return false
	}

	ok := m.intersect(i, j)
	if ok {
		m.memo[i][j] = yes
	} else {
		m.memo[i][j] = no
	}
	return ok
}

func (m *matcher) intersect(i, j int) bool {
	endA, endB := i == len(m.a), j == len(m.b)
	if endA && endB {
		return true
	}

	if !endA && m.a[i] == MWC {
		// "**" matches here, or swallows one opposing segment and stays
		if m.match(i+1, j) {
			return true
		}
		return !endB && m.match(i, j+1)
	}

	if !endB && m.b[j] == MWC {
		if m.match(i, j+1) {
			return true
		}
		return !endA && m.match(i+1, j)
	}

	if endA || endB {
		return false
	}

	sa, sb := m.a[i], m.b[j]
	if sa == SWC || sb == SWC || sa == sb {
		return m.match(i+1, j+1)
	}

	return false
}

// Intersects reports whether some concrete key matches both a and b.
func Intersects(a, b KeyExpr) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}

	return newMatcher(a.segments, b.segments).match(0, 0)
}

