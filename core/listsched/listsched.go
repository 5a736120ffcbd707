// Package listsched turns a bootstrap-marked operation graph into a
// core-assigned, cycle-stamped schedule by simulating execution one clock
// cycle at a time.
package listsched

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"hesched/core/opgraph"
	"hesched/core/timing"
	"hesched/logging"
)

// ErrInfeasible is returned when the simulation exceeds its cycle bound.
var ErrInfeasible = errors.New("schedule did not complete within the cycle bound")

// Options configures a scheduling run.
type Options struct {
	// Cores is the size of the core pool; 0 gives every operation its own core.
	Cores int
	// MaxCycles bounds the simulation; 0 derives the bound from the latencies.
	MaxCycles int
	Log       *slog.Logger
}

type phase uint8

const (
	unstarted phase = iota
	running
	queued
	bootstrapping
	finished
)

// run holds the state of one simulation.
type run struct {
	g     *opgraph.Graph
	log   *slog.Logger
	cores int
	clock int

	phase     []phase
	remaining []int
	pending   []int
	prio      []int

	candidates []int
	active     []int
	queue      []int
	free       []bool
	done       int

	entries []Entry
}

// Run schedules every operation of g. Timing attributes left by an earlier run
// are cleared and the analysis refreshed so the priority order reflects the
// current bootstrap marking.
func Run(g *opgraph.Graph, opts Options) (*Schedule, error) {
	n := g.Len()
	if opts.Cores < 0 {
		return nil, fmt.Errorf("core count must not be negative, got %d", opts.Cores)
	}
	for _, k := range opgraph.Kinds {
		if g.Latencies.Of(k) < 1 {
			return nil, fmt.Errorf("latency of %s must be positive, got %d", k, g.Latencies.Of(k))
		}
	}
	log := logging.OrDiscard(opts.Log)
	cores := opts.Cores
	if cores == 0 {
		cores = n
	}
	bound := opts.MaxCycles
	if bound == 0 {
		for _, op := range g.Operations() {
			bound += g.Latency(op)
		}
		bound++
	}

	g.ResetTiming()
	timing.Analyze(g)
	r := &run{
		g:         g,
		log:       log,
		cores:     cores,
		phase:     make([]phase, n+1),
		remaining: make([]int, n+1),
		pending:   make([]int, n+1),
		prio:      make([]int, n+1),
		free:      make([]bool, cores+1),
		entries:   make([]Entry, n),
	}
	for c := 1; c <= cores; c++ {
		r.free[c] = true
	}
	for i, id := range PriorityOrder(g) {
		r.prio[id] = i
	}
	for _, op := range g.Operations() {
		r.pending[op.ID] = distinct(op.Parents)
		if r.pending[op.ID] == 0 {
			r.addCandidate(op.ID)
		}
	}

	for r.done < n {
		if r.clock >= bound {
			return nil, fmt.Errorf("%w: %d of %d operations finished after %d cycles on %d cores",
				ErrInfeasible, r.done, n, r.clock, cores)
		}
		r.startReady()
		r.clock++
		r.retire()
		r.startBootstraps()
	}

	s := &Schedule{
		Mode:       g.Mode.String(),
		Cores:      cores,
		Latency:    r.clock,
		Bootstraps: g.BootstrapCount(),
		Entries:    r.entries,
	}
	s.ID = s.fingerprint()
	log.Debug("schedule complete", "id", s.ID, "latency", s.Latency, "cores", cores, "bootstraps", s.Bootstraps)
	return s, nil
}

// PriorityOrder lists operation ids by ascending slack, then earliest start,
// then id. Analyze must have run first.
func PriorityOrder(g *opgraph.Graph) []int {
	ops := g.Operations()
	sort.SliceStable(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if a.Earliest != b.Earliest {
			return a.Earliest < b.Earliest
		}
		return a.ID < b.ID
	})
	ids := make([]int, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids
}

func distinct(ids []int) int {
	n := 0
	for i, v := range ids {
		dup := false
		for _, w := range ids[:i] {
			if w == v {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

func (r *run) addCandidate(id int) {
	i := sort.Search(len(r.candidates), func(i int) bool {
		return r.prio[r.candidates[i]] > r.prio[id]
	})
	r.candidates = append(r.candidates, 0)
	copy(r.candidates[i+1:], r.candidates[i:])
	r.candidates[i] = id
}

func (r *run) ready(op *opgraph.Operation) bool {
	for _, p := range op.Parents {
		switch r.phase[p] {
		case unstarted, running:
			return false
		case finished:
		default:
			if r.g.Op(p).SendsBootstrapped(op.ID) {
				return false
			}
		}
	}
	return true
}

func (r *run) lowestFree() int {
	for c := 1; c <= r.cores; c++ {
		if r.free[c] {
			return c
		}
	}
	return 0
}

// coreFor prefers the core that produced one of the operands.
func (r *run) coreFor(op *opgraph.Operation) int {
	for _, p := range op.Parents {
		e := r.entries[p-1]
		c := e.Core
		if r.g.Op(p).SendsBootstrapped(op.ID) {
			c = e.BootCore
		}
		if r.free[c] {
			return c
		}
	}
	return r.lowestFree()
}

func (r *run) startReady() {
	var next []int
	var started []int
	for _, id := range r.candidates {
		op := r.g.Op(id)
		if !r.ready(op) {
			next = append(next, id)
			continue
		}
		core := r.coreFor(op)
		if core == 0 {
			next = append(next, id)
			continue
		}
		r.start(op, core)
		started = append(started, id)
	}
	r.candidates = next
	for _, id := range started {
		for _, c := range r.g.Op(id).Children {
			r.pending[c]--
			if r.pending[c] == 0 {
				r.addCandidate(c)
			}
		}
	}
}

func (r *run) start(op *opgraph.Operation, core int) {
	lat := r.g.Latencies.Of(op.Kind)
	operands := make([]Operand, 0, op.Inputs())
	for _, p := range op.Parents {
		operands = append(operands, Operand{ID: p, Bootstrapped: r.g.Op(p).SendsBootstrapped(op.ID)})
	}
	for _, k := range op.Constants {
		operands = append(operands, Operand{ID: k, Const: true})
	}
	raw, boot := r.g.ConsumerCounts(op.ID)
	r.entries[op.ID-1] = Entry{
		Op:            op.ID,
		Kind:          op.Kind.String(),
		Start:         r.clock,
		Latency:       lat,
		Core:          core,
		Operands:      operands,
		BootStart:     -1,
		RawConsumers:  raw,
		BootConsumers: boot,
	}
	op.Start, op.Core, op.BootStart = r.clock, core, -1

	r.free[core] = false
	r.phase[op.ID] = running
	r.remaining[op.ID] = lat
	r.active = append(r.active, op.ID)
}

func (r *run) retire() {
	var still []int
	for _, id := range r.active {
		r.remaining[id]--
		if r.remaining[id] > 0 {
			still = append(still, id)
			continue
		}
		e := &r.entries[id-1]
		switch r.phase[id] {
		case running:
			r.free[e.Core] = true
			if r.g.Op(id).IsBootstrapped() {
				r.phase[id] = queued
				r.queue = append(r.queue, id)
			} else {
				r.phase[id] = finished
				r.done++
			}
		case bootstrapping:
			r.free[e.BootCore] = true
			r.phase[id] = finished
			r.done++
		}
	}
	r.active = still
}

func (r *run) startBootstraps() {
	lat := r.g.Latencies.Of(opgraph.Boot)
	for len(r.queue) > 0 {
		id := r.queue[0]
		e := &r.entries[id-1]
		core := e.Core
		if !r.free[core] {
			core = r.lowestFree()
		}
		if core == 0 {
			return
		}
		r.queue = r.queue[1:]
		e.BootStart, e.BootLatency, e.BootCore = r.clock, lat, core
		r.g.Op(id).BootStart = r.clock
		r.log.Debug("bootstrap started", "op", id, "cycle", r.clock, "core", core)

		r.free[core] = false
		r.phase[id] = bootstrapping
		r.remaining[id] = lat
		r.active = append(r.active, id)
	}
}
