// Package compiler runs the backend pipeline: segment generation, bootstrap
// placement under every configured policy, and list scheduling of the best
// placement.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hesched/core/listsched"
	"hesched/core/opgraph"
	"hesched/core/placement"
	"hesched/core/segments"
	"hesched/logging"
	"hesched/utils"
)

// ErrUncovered is returned when the final marking leaves a segment without a
// bootstrap.
var ErrUncovered = errors.New("segment left without a bootstrap")

// Program is an operation graph together with the segments its bootstraps
// must satisfy.
type Program struct {
	Graph    *opgraph.Graph
	Segments []segments.Segment
	// Chains holds every selective-mode segment before redundancy
	// elimination. Empty in complete mode and for loaded segments.
	Chains []segments.Segment
	Stats  segments.Stats
}

// NewProgram generates the segments of g for a budget of levels.
func NewProgram(g *opgraph.Graph, levels int) (*Program, error) {
	segs, st, err := segments.Build(g, levels)
	if err != nil {
		return nil, fmt.Errorf("segment generation: %w", err)
	}
	p := &Program{Graph: g, Segments: segs, Stats: st}
	if g.Mode == opgraph.Selective {
		if p.Chains, err = segments.Generate(g, levels); err != nil {
			return nil, fmt.Errorf("segment generation: %w", err)
		}
		segments.Sort(p.Chains)
	}
	return p, nil
}

// targets is the segment list placement has to satisfy. Eliminated chains
// are only implied by their shorter twins when bootstraps cover every
// outgoing edge, so a partial edge marking brings them back.
func (p *Program) targets() []segments.Segment {
	if len(p.Chains) > 0 && p.Graph.PartiallyMarked() {
		return p.Chains
	}
	return p.Segments
}

// Uncovered lists the segments the current marking leaves unsatisfied,
// including eliminated selective-mode chains.
func (p *Program) Uncovered() []segments.Segment {
	all := p.Segments
	if len(p.Chains) > 0 {
		all = p.Chains
	}
	var out []segments.Segment
	for _, s := range all {
		if !segments.Satisfied(p.Graph, s) {
			out = append(out, s)
		}
	}
	return out
}

// LoadedProgram wraps segments read from a file.
func LoadedProgram(g *opgraph.Graph, segs []segments.Segment) *Program {
	return &Program{Graph: g, Segments: segs, Stats: segments.Stats{Raw: len(segs), Final: len(segs)}}
}

// Options configures Compile.
type Options struct {
	// Cores for the final schedule; 0 means one core per operation.
	Cores     int
	MaxCycles int
	Policies  []placement.Policy
	// SkipPlacement schedules the marking already on the graph as is.
	SkipPlacement bool
	// AllowUncovered downgrades ErrUncovered to a warning.
	AllowUncovered bool
	Log            *slog.Logger
}

// Candidate is one policy's placement and its unlimited-core schedule.
type Candidate struct {
	Placement placement.Result
	Schedule  *listsched.Schedule
}

// better orders candidates by latency, then bootstrap count. Earlier policies
// win remaining ties because the sweep keeps the first best.
func better(a, b Candidate) bool {
	if a.Schedule.Latency != b.Schedule.Latency {
		return a.Schedule.Latency < b.Schedule.Latency
	}
	return a.Placement.Bootstraps < b.Placement.Bootstraps
}

// Sweep places bootstraps under every policy starting from the current
// marking, schedules each placement on unlimited cores, and leaves the graph
// with the winning marking. The returned index points into candidates.
func Sweep(p *Program, policies []placement.Policy, maxCycles int, log *slog.Logger) (int, []Candidate, error) {
	log = logging.OrDiscard(log)
	if len(policies) == 0 {
		return 0, nil, fmt.Errorf("no placement policy given")
	}
	segs := p.targets()
	if len(segs) != len(p.Segments) {
		log.Info("partial edge marking, placing against every chain", "chains", len(segs))
	}
	sel := placement.New(p.Graph, segs, log)
	results, err := sel.RunAll(policies)
	if err != nil {
		return 0, nil, err
	}

	best := 0
	candidates := make([]Candidate, 0, len(results))
	for i, res := range results {
		if err := p.Graph.ApplyMarking(res.Marking); err != nil {
			return 0, nil, err
		}
		s, err := listsched.Run(p.Graph, listsched.Options{MaxCycles: maxCycles, Log: log})
		if err != nil {
			return 0, nil, fmt.Errorf("policy %s: %w", res.Policy.Name, err)
		}
		c := Candidate{Placement: res, Schedule: s}
		candidates = append(candidates, c)
		log.Info("policy evaluated",
			"policy", res.Policy.Name,
			"bootstraps", res.Bootstraps,
			"latency", s.Latency,
		)
		if i > 0 && better(c, candidates[best]) {
			best = i
		}
	}
	if err := p.Graph.ApplyMarking(candidates[best].Placement.Marking); err != nil {
		return 0, nil, err
	}
	return best, candidates, nil
}

// Result is the outcome of Compile.
type Result struct {
	Program    *Program
	Policy     string
	Picks      []int
	Candidates []Candidate
	Schedule   *listsched.Schedule
	Timing     utils.TimingStats
}

// Compile places bootstraps on p and schedules it on opts.Cores cores. A
// marking that leaves a segment unsatisfied fails with ErrUncovered unless
// opts.AllowUncovered is set. The final schedule is checked with
// listsched.Verify before it is returned.
func Compile(p *Program, opts Options) (*Result, error) {
	log := logging.OrDiscard(opts.Log)
	res := &Result{Program: p, Policy: "none"}

	start := time.Now()
	if !opts.SkipPlacement {
		best, candidates, err := Sweep(p, opts.Policies, opts.MaxCycles, log)
		if err != nil {
			return nil, fmt.Errorf("bootstrap placement: %w", err)
		}
		res.Candidates = candidates
		res.Policy = candidates[best].Placement.Policy.Name
		res.Picks = candidates[best].Placement.Picks
	}
	if unsat := p.Uncovered(); len(unsat) > 0 {
		if !opts.AllowUncovered {
			return nil, fmt.Errorf("%w: %d segments, first %v", ErrUncovered, len(unsat), unsat[0])
		}
		for _, s := range unsat {
			log.Warn("segment left without a bootstrap", "start", s.Start(), "end", s.End(), "length", len(s))
		}
	}
	res.Timing.PlacementTime = time.Since(start)

	start = time.Now()
	s, err := listsched.Run(p.Graph, listsched.Options{
		Cores:     opts.Cores,
		MaxCycles: opts.MaxCycles,
		Log:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("list scheduling: %w", err)
	}
	if err := listsched.Verify(p.Graph, s); err != nil {
		return nil, fmt.Errorf("schedule verification: %w", err)
	}
	res.Timing.ScheduleTime = time.Since(start)
	res.Schedule = s

	log.Info("compiled",
		"schedule", s.ID,
		"policy", res.Policy,
		"bootstraps", s.Bootstraps,
		"latency", s.Latency,
		"cores", s.Cores,
	)
	return res, nil
}
