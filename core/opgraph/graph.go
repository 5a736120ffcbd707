// Package opgraph holds the circuit DAG: an arena of operations indexed by id,
// the per-kind latency table and the active bootstrap mode.
package opgraph

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	ErrOutOfRange     = errors.New("operation id out of range")
	ErrCycle          = errors.New("operation graph contains a cycle")
	ErrNotTopological = errors.New("operations are not in topological order")
	ErrNoInputs       = errors.New("operation has no inputs")
)

// LatencyTable maps an operation kind to its latency in cycles.
type LatencyTable map[Kind]int

// Of returns the latency of k, zero when unset.
func (t LatencyTable) Of(k Kind) int {
	return t[k]
}

// Graph owns every operation. Ids are 1-based arena positions and the arena
// order is the input topological order.
type Graph struct {
	ops       []*Operation
	Latencies LatencyTable
	Mode      Mode
}

// New returns an empty graph.
func New(mode Mode, latencies LatencyTable) *Graph {
	if latencies == nil {
		latencies = LatencyTable{}
	}
	return &Graph{Latencies: latencies, Mode: mode}
}

// AddOperation appends a node and assigns it the next id.
func (g *Graph) AddOperation(kind Kind, constants ...int) *Operation {
	op := &Operation{
		ID:        len(g.ops) + 1,
		Kind:      kind,
		Constants: append([]int(nil), constants...),
	}
	g.ops = append(g.ops, op)
	return op
}

// Link records parent as an operand of child and child as a consumer of parent.
func (g *Graph) Link(parent, child int) error {
	p, err := g.Lookup(parent)
	if err != nil {
		return err
	}
	c, err := g.Lookup(child)
	if err != nil {
		return err
	}
	c.Parents = append(c.Parents, parent)
	p.Children = insertSorted(p.Children, child)
	return nil
}

// Lookup returns the operation with the given id.
func (g *Graph) Lookup(id int) (*Operation, error) {
	if id < 1 || id > len(g.ops) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrOutOfRange, id, len(g.ops))
	}
	return g.ops[id-1], nil
}

// Op is Lookup for ids already known to be valid.
func (g *Graph) Op(id int) *Operation {
	return g.ops[id-1]
}

// Len is the number of operations.
func (g *Graph) Len() int {
	return len(g.ops)
}

// Operations returns the operations in topological order. The slice is a copy.
func (g *Graph) Operations() []*Operation {
	return append([]*Operation(nil), g.ops...)
}

// Validate checks input arity, acyclicity and that the arena order is topological.
func (g *Graph) Validate() error {
	dg := simple.NewDirectedGraph()
	for _, op := range g.ops {
		dg.AddNode(simple.Node(op.ID))
	}
	for _, op := range g.ops {
		if op.Kind == Boot {
			return fmt.Errorf("operation %d: BOOT cannot appear in an input graph", op.ID)
		}
		if n := op.Inputs(); n == 0 {
			return fmt.Errorf("%w: operation %d", ErrNoInputs, op.ID)
		} else if n > 2 {
			return fmt.Errorf("operation %d has %d inputs, at most 2 allowed", op.ID, n)
		}
		for _, p := range op.Parents {
			if p == op.ID {
				return fmt.Errorf("%w: operation %d consumes itself", ErrCycle, op.ID)
			}
			dg.SetEdge(dg.NewEdge(simple.Node(p), simple.Node(op.ID)))
		}
	}
	if _, err := topo.Sort(dg); err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) && len(cycles) > 0 {
			ids := make([]int64, 0, len(cycles[0]))
			for _, n := range cycles[0] {
				ids = append(ids, n.ID())
			}
			return fmt.Errorf("%w: through operations %v", ErrCycle, ids)
		}
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}
	for _, op := range g.ops {
		for _, p := range op.Parents {
			if p > op.ID {
				return fmt.Errorf("%w: operation %d reads %d", ErrNotTopological, op.ID, p)
			}
		}
	}
	return nil
}

// Latency is the resolved latency of op including its bootstrap, if any.
func (g *Graph) Latency(op *Operation) int {
	l := g.Latencies.Of(op.Kind)
	if op.IsBootstrapped() {
		l += g.Latencies.Of(Boot)
	}
	return l
}

// EdgeLatency is the delay between p starting and c being able to read its result.
func (g *Graph) EdgeLatency(p *Operation, c int) int {
	l := g.Latencies.Of(p.Kind)
	if p.SendsBootstrapped(c) {
		l += g.Latencies.Of(Boot)
	}
	return l
}

// MarkBootstrap bootstraps id according to the graph mode. In selective mode
// every current child receives the bootstrapped copy.
func (g *Graph) MarkBootstrap(id int) error {
	op, err := g.Lookup(id)
	if err != nil {
		return err
	}
	if g.Mode == Complete {
		op.Bootstrapped = true
		return nil
	}
	for _, c := range op.Children {
		op.BootChildren = insertSorted(op.BootChildren, c)
	}
	return nil
}

// MarkEdge makes child read the bootstrapped copy of parent.
func (g *Graph) MarkEdge(parent, child int) error {
	p, err := g.Lookup(parent)
	if err != nil {
		return err
	}
	if !p.HasChild(child) {
		return fmt.Errorf("operation %d is not a consumer of %d", child, parent)
	}
	p.BootChildren = insertSorted(p.BootChildren, child)
	return nil
}

// BootstrapCount is the number of operations carrying a bootstrap.
func (g *Graph) BootstrapCount() int {
	n := 0
	for _, op := range g.ops {
		if op.IsBootstrapped() {
			n++
		}
	}
	return n
}

// ConsumerCounts splits the consumers of id into raw and bootstrapped readers.
// Repeated operands count once per read.
func (g *Graph) ConsumerCounts(id int) (raw, boot int) {
	op := g.Op(id)
	for _, c := range op.Children {
		reads := 0
		for _, p := range g.Op(c).Parents {
			if p == id {
				reads++
			}
		}
		if op.SendsBootstrapped(c) {
			boot += reads
		} else {
			raw += reads
		}
	}
	return raw, boot
}

// Mark is a snapshot of one operation's bootstrap marking.
type Mark struct {
	Op       int   `json:"op"`
	All      bool  `json:"all,omitempty"`
	Children []int `json:"children,omitempty"`
}

// Marking returns the current bootstrap marking in id order.
func (g *Graph) Marking() []Mark {
	var out []Mark
	for _, op := range g.ops {
		if !op.IsBootstrapped() {
			continue
		}
		out = append(out, Mark{
			Op:       op.ID,
			All:      op.Bootstrapped,
			Children: append([]int(nil), op.BootChildren...),
		})
	}
	return out
}

// ResetMarking clears every bootstrap marking.
func (g *Graph) ResetMarking() {
	for _, op := range g.ops {
		op.Bootstrapped = false
		op.BootChildren = nil
	}
}

// ApplyMarking replaces the current marking with m.
func (g *Graph) ApplyMarking(m []Mark) error {
	g.ResetMarking()
	for _, mk := range m {
		op, err := g.Lookup(mk.Op)
		if err != nil {
			return err
		}
		op.Bootstrapped = mk.All
		for _, c := range mk.Children {
			if err := g.MarkEdge(mk.Op, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// PartiallyMarked reports whether some operation bootstraps only part of its
// outgoing edges. Such a marking can satisfy a segment while a longer chain
// with the same endpoints stays unmarked.
func (g *Graph) PartiallyMarked() bool {
	for _, op := range g.ops {
		if !op.Bootstrapped && len(op.BootChildren) > 0 && len(op.BootChildren) < len(op.Children) {
			return true
		}
	}
	return false
}

// ResetTiming clears every timing attribute.
func (g *Graph) ResetTiming() {
	for _, op := range g.ops {
		op.Earliest, op.Latest, op.Rank = 0, 0, 0
		op.Start, op.BootStart, op.Core = 0, 0, 0
	}
}
