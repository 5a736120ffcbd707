// Package segments enumerates bootstrap segments: chains of operations whose
// multiplicative depth reaches the noise threshold and which must therefore
// carry at least one bootstrap.
package segments

import (
	"errors"
	"fmt"
	"sort"

	"hesched/core/opgraph"
)

var (
	ErrLevels        = errors.New("levels must be at least 1")
	ErrNotContiguous = errors.New("segments with the same endpoints are not adjacent")
)

// Segment is an ordered chain of operation ids.
type Segment []int

func (s Segment) Start() int { return s[0] }
func (s Segment) End() int   { return s[len(s)-1] }

// Stats counts what redundancy elimination removed.
type Stats struct {
	Raw        int
	Duplicates int
	Redundant  int
	Final      int
}

func (s Stats) String() string {
	return fmt.Sprintf("raw=%d duplicates=%d redundant=%d final=%d", s.Raw, s.Duplicates, s.Redundant, s.Final)
}

// Generate walks forward from every multiplication and returns the raw chains
// that overflow the levels threshold. A chain ends at the first multiplication
// that would consume a level beyond levels; branches that reach the end of the
// program first produce nothing.
func Generate(g *opgraph.Graph, levels int) ([]Segment, error) {
	if levels < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrLevels, levels)
	}
	var out []Segment
	for _, op := range g.Operations() {
		if op.Kind != opgraph.Mul {
			continue
		}
		walk(g, op, 1, Segment{op.ID}, levels, &out)
	}
	return out, nil
}

func walk(g *opgraph.Graph, op *opgraph.Operation, muls int, chain Segment, levels int, out *[]Segment) {
	for _, id := range op.Children {
		child := g.Op(id)
		next := make(Segment, len(chain)+1)
		copy(next, chain)
		next[len(chain)] = id
		switch {
		case child.Kind != opgraph.Mul:
			walk(g, child, muls, next, levels, out)
		case muls >= levels:
			*out = append(*out, next)
		default:
			walk(g, child, muls+1, next, levels, out)
		}
	}
}

// Sort orders segments by start, then end, then length, then contents.
func Sort(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		if a.Start() != b.Start() {
			return a.Start() < b.Start()
		}
		if a.End() != b.End() {
			return a.End() < b.End()
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}

// checkContiguous verifies that every (start, end) group forms one run.
func checkContiguous(segs []Segment) error {
	type key struct{ start, end int }
	seen := make(map[key]bool)
	for i, s := range segs {
		k := key{s.Start(), s.End()}
		if i > 0 && segs[i-1].Start() == k.start && segs[i-1].End() == k.end {
			continue
		}
		if seen[k] {
			return fmt.Errorf("%w: start %d end %d at position %d", ErrNotContiguous, k.start, k.end, i)
		}
		seen[k] = true
	}
	return nil
}

// fits reports whether a is an order-preserving subsequence of b whose
// positions never drift further than len(b)-len(a) from their own index.
func fits(a, b Segment) bool {
	slack := len(b) - len(a)
	if slack < 0 {
		return false
	}
	j := 0
	for i, v := range a {
		for j < len(b) && b[j] != v {
			j++
		}
		if j == len(b) || j-i > slack {
			return false
		}
		j++
	}
	return true
}

// RemoveRedundant drops every segment implied by a shorter or equal one with
// the same endpoints. segs must be sorted with Sort; the input is not modified.
func RemoveRedundant(segs []Segment) ([]Segment, Stats, error) {
	st := Stats{Raw: len(segs)}
	if err := checkContiguous(segs); err != nil {
		return nil, st, err
	}
	out := make([]Segment, 0, len(segs))
	groupStart := 0
	for i, b := range segs {
		if i > 0 && (segs[i-1].Start() != b.Start() || segs[i-1].End() != b.End()) {
			groupStart = len(out)
		}
		redundant := false
		for _, a := range out[groupStart:] {
			if !fits(a, b) {
				continue
			}
			if len(a) == len(b) {
				st.Duplicates++
			} else {
				st.Redundant++
			}
			redundant = true
			break
		}
		if !redundant {
			out = append(out, b)
		}
	}
	st.Final = len(out)
	return out, st, nil
}

// Truncate drops the trailing operation of every segment, leaving the chain of
// operations whose own bootstrap prevents the overflow.
func Truncate(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if len(s) < 2 {
			continue
		}
		out = append(out, append(Segment(nil), s[:len(s)-1]...))
	}
	return out
}

// Build generates, sorts and deduplicates the segments of g. In complete mode
// the chains are truncated and deduplicated a second time.
func Build(g *opgraph.Graph, levels int) ([]Segment, Stats, error) {
	raw, err := Generate(g, levels)
	if err != nil {
		return nil, Stats{}, err
	}
	Sort(raw)
	segs, st, err := RemoveRedundant(raw)
	if err != nil {
		return nil, st, err
	}
	if g.Mode != opgraph.Complete {
		return segs, st, nil
	}
	truncated := Truncate(segs)
	Sort(truncated)
	segs, st2, err := RemoveRedundant(truncated)
	if err != nil {
		return nil, st, err
	}
	st.Duplicates += st2.Duplicates
	st.Redundant += st2.Redundant
	st.Final = st2.Final
	return segs, st, nil
}

// Satisfied reports whether seg carries a bootstrap under the graph mode.
func Satisfied(g *opgraph.Graph, seg Segment) bool {
	if g.Mode == opgraph.Complete {
		for _, id := range seg {
			if g.Op(id).IsBootstrapped() {
				return true
			}
		}
		return false
	}
	for i := 0; i+1 < len(seg); i++ {
		if g.Op(seg[i]).SendsBootstrapped(seg[i+1]) {
			return true
		}
	}
	return false
}

// Effective reports whether bootstrapping the operation at position pos of seg
// satisfies seg. In selective mode the last operation has no outgoing segment edge.
func Effective(g *opgraph.Graph, seg Segment, pos int) bool {
	if g.Mode == opgraph.Complete {
		return true
	}
	return pos+1 < len(seg)
}

// Members returns, per operation id, whether it lies on any segment.
func Members(g *opgraph.Graph, segs []Segment) []bool {
	on := make([]bool, g.Len()+1)
	for _, s := range segs {
		for _, id := range s {
			on[id] = true
		}
	}
	return on
}

// Alive reports whether seg is unsatisfied and every parent of its first
// operation is either off all segments or already bootstraps into it.
func Alive(g *opgraph.Graph, seg Segment, members []bool) bool {
	if Satisfied(g, seg) {
		return false
	}
	first := g.Op(seg.Start())
	for _, p := range first.Parents {
		if members[p] && !g.Op(p).SendsBootstrapped(first.ID) {
			return false
		}
	}
	return true
}

// Unsatisfied returns the indices of segments without a bootstrap.
func Unsatisfied(g *opgraph.Graph, segs []Segment) []int {
	var out []int
	for i, s := range segs {
		if !Satisfied(g, s) {
			out = append(out, i)
		}
	}
	return out
}
