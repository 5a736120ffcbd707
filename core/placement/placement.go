// Package placement chooses which operations carry a bootstrap so that every
// segment is satisfied. It is a myopic greedy heuristic: each round scores the
// unmarked operations and bootstraps the best one.
package placement

import (
	"errors"
	"fmt"
	"log/slog"

	"hesched/core/opgraph"
	"hesched/core/segments"
	"hesched/core/timing"
	"hesched/logging"
)

// ErrUncoverable means unsatisfied segments remain but no operation can be
// bootstrapped to satisfy any of them.
var ErrUncoverable = errors.New("no operation can satisfy the remaining segments")

// Policy is a named weight vector for the selection score.
type Policy struct {
	Name     string  `yaml:"name" json:"name"`
	Segments float64 `yaml:"segments" json:"segments"`
	Slack    float64 `yaml:"slack" json:"slack"`
	Urgency  float64 `yaml:"urgency" json:"urgency"`
}

// DefaultPolicies are used when the configuration names none.
var DefaultPolicies = []Policy{
	{Name: "segments", Segments: 1},
	{Name: "slack", Segments: 1, Slack: 0.5},
	{Name: "urgency", Segments: 1, Urgency: 0.5},
}

func (p Policy) String() string {
	return fmt.Sprintf("%s(seg=%g slack=%g urg=%g)", p.Name, p.Segments, p.Slack, p.Urgency)
}

// Validate rejects a policy whose score can never be positive.
func (p Policy) Validate() error {
	if p.Segments <= 0 && p.Slack <= 0 && p.Urgency <= 0 {
		return fmt.Errorf("policy %q: at least one weight must be positive", p.Name)
	}
	return nil
}

// Result is the outcome of one placement run.
type Result struct {
	Policy     Policy
	Picks      []int
	Marking    []opgraph.Mark
	Bootstraps int
}

// Selector runs placement policies over a fixed segment set.
type Selector struct {
	g       *opgraph.Graph
	segs    []segments.Segment
	members []bool
	log     *slog.Logger
}

// New indexes segment membership on every operation of g. A nil logger discards.
func New(g *opgraph.Graph, segs []segments.Segment, log *slog.Logger) *Selector {
	for _, op := range g.Operations() {
		op.Segments = op.Segments[:0]
	}
	for i, s := range segs {
		for _, id := range s {
			op := g.Op(id)
			op.Segments = append(op.Segments, i)
		}
	}
	return &Selector{
		g:       g,
		segs:    segs,
		members: segments.Members(g, segs),
		log:     logging.OrDiscard(log),
	}
}

// fullyMarked reports whether bootstrapping op again would change nothing.
func (s *Selector) fullyMarked(op *opgraph.Operation) bool {
	if s.g.Mode == opgraph.Complete {
		return op.Bootstrapped
	}
	return len(op.BootChildren) == len(op.Children)
}

// Run marks operations under p until every segment is satisfied. Markings
// already present on the graph are kept.
func (s *Selector) Run(p Policy) (Result, error) {
	res := Result{Policy: p}
	ops := s.g.Operations()
	for round := 1; ; round++ {
		unsat := segments.Unsatisfied(s.g, s.segs)
		if len(unsat) == 0 {
			break
		}

		for _, op := range ops {
			op.Unsatisfied = 0
			op.Urgency = 0
		}
		alive := 0
		for _, si := range unsat {
			seg := s.segs[si]
			if segments.Alive(s.g, seg, s.members) {
				alive++
			}
			for pos, id := range seg {
				op := s.g.Op(id)
				if segments.Effective(s.g, seg, pos) {
					op.Unsatisfied++
				}
				if u := float64(pos+1) / float64(len(seg)); u > op.Urgency {
					op.Urgency = u
				}
			}
		}
		maxCount := 0
		for _, op := range ops {
			if op.Unsatisfied > maxCount {
				maxCount = op.Unsatisfied
			}
		}
		maxSlack := 0
		if p.Slack != 0 {
			maxSlack = timing.Analyze(s.g).MaxSlack
		}

		var best *opgraph.Operation
		bestScore := -1.0
		for _, op := range ops {
			if op.Unsatisfied == 0 || s.fullyMarked(op) {
				continue
			}
			score := p.Segments * float64(op.Unsatisfied) / float64(maxCount)
			if maxSlack > 0 {
				score += p.Slack * float64(op.Rank) / float64(maxSlack)
			}
			if p.Urgency != 0 {
				score += p.Urgency * op.Urgency
			}
			if score < 0 {
				score = 0
			}
			if score > bestScore {
				best, bestScore = op, score
			}
		}
		if best == nil {
			return res, fmt.Errorf("%w: %d segments unsatisfied after %d picks", ErrUncoverable, len(unsat), len(res.Picks))
		}
		if err := s.g.MarkBootstrap(best.ID); err != nil {
			return res, err
		}
		res.Picks = append(res.Picks, best.ID)
		s.log.Debug("bootstrap placed",
			"policy", p.Name,
			"round", round,
			"op", best.ID,
			"score", bestScore,
			"segments", best.Unsatisfied,
			"unsatisfied", len(unsat),
			"alive", alive,
		)
	}
	res.Marking = s.g.Marking()
	res.Bootstraps = s.g.BootstrapCount()
	return res, nil
}

// RunAll runs every policy from the same starting marking and returns one
// result per policy. The graph is left with the starting marking restored.
func (s *Selector) RunAll(policies []Policy) ([]Result, error) {
	base := s.g.Marking()
	out := make([]Result, 0, len(policies))
	for _, p := range policies {
		if err := s.g.ApplyMarking(base); err != nil {
			return nil, err
		}
		res, err := s.Run(p)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.Name, err)
		}
		out = append(out, res)
	}
	if err := s.g.ApplyMarking(base); err != nil {
		return nil, err
	}
	return out, nil
}
