// Package timing computes ASAP/ALAP start times and slack for every operation.
package timing

import (
	"hesched/core/opgraph"
)

// Result summarises one analysis pass.
type Result struct {
	// End is the estimated program latency with unbounded resources.
	End      int
	MaxSlack int
}

// Analyze runs the forward and backward passes and stores Earliest, Latest and
// Rank (slack) on every operation. It must be rerun after markings change.
func Analyze(g *opgraph.Graph) Result {
	ops := g.Operations()
	var res Result

	for _, op := range ops {
		op.Earliest = 0
		for _, p := range op.Parents {
			parent := g.Op(p)
			if t := parent.Earliest + g.EdgeLatency(parent, op.ID); t > op.Earliest {
				op.Earliest = t
			}
		}
		if end := op.Earliest + g.Latency(op); end > res.End {
			res.End = end
		}
	}

	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if len(op.Children) == 0 {
			op.Latest = res.End - g.Latency(op)
		} else {
			first := true
			for _, c := range op.Children {
				t := g.Op(c).Latest - g.EdgeLatency(op, c)
				if first || t < op.Latest {
					op.Latest = t
					first = false
				}
			}
		}
		op.Rank = op.Latest - op.Earliest
		if op.Rank > res.MaxSlack {
			res.MaxSlack = op.Rank
		}
	}
	return res
}

// CriticalPath returns the ids of zero-slack operations in topological order.
// Analyze must have run first.
func CriticalPath(g *opgraph.Graph) []int {
	var out []int
	for _, op := range g.Operations() {
		if op.Rank == 0 {
			out = append(out, op.ID)
		}
	}
	return out
}
