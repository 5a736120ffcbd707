package listsched

import (
	"fmt"
	"sort"

	"hesched/core/opgraph"
)

type interval struct {
	start, end, op int
	boot           bool
}

// Verify replays s against g: every operation is placed once, operands are
// available when read, bootstraps follow their operation, no two intervals on
// a core overlap, and the reported latency matches the last completion.
func Verify(g *opgraph.Graph, s *Schedule) error {
	if len(s.Entries) != g.Len() {
		return fmt.Errorf("schedule has %d entries for %d operations", len(s.Entries), g.Len())
	}
	boot := g.Latencies.Of(opgraph.Boot)
	perCore := make(map[int][]interval)
	end := 0
	for i, e := range s.Entries {
		op := g.Op(i + 1)
		if e.Op != op.ID {
			return fmt.Errorf("entry %d describes operation %d", i+1, e.Op)
		}
		if e.Core < 1 || e.Core > s.Cores {
			return fmt.Errorf("operation %d on core %d outside [1, %d]", op.ID, e.Core, s.Cores)
		}
		if e.Latency != g.Latencies.Of(op.Kind) {
			return fmt.Errorf("operation %d latency %d, want %d", op.ID, e.Latency, g.Latencies.Of(op.Kind))
		}
		for _, p := range op.Parents {
			pe := s.Entries[p-1]
			ready := pe.Start + pe.Latency
			if g.Op(p).SendsBootstrapped(op.ID) {
				if pe.BootStart < 0 {
					return fmt.Errorf("operation %d reads the bootstrap of %d which never ran", op.ID, p)
				}
				ready = pe.BootStart + pe.BootLatency
			}
			if e.Start < ready {
				return fmt.Errorf("operation %d starts at %d before operand %d is ready at %d", op.ID, e.Start, p, ready)
			}
		}
		perCore[e.Core] = append(perCore[e.Core], interval{e.Start, e.Start + e.Latency, op.ID, false})

		if op.IsBootstrapped() != (e.BootStart >= 0) {
			return fmt.Errorf("operation %d bootstrap placement does not match its marking", op.ID)
		}
		if e.BootStart >= 0 {
			if e.BootStart < e.Start+e.Latency {
				return fmt.Errorf("operation %d bootstraps at %d before finishing at %d", op.ID, e.BootStart, e.Start+e.Latency)
			}
			if e.BootLatency != boot {
				return fmt.Errorf("operation %d bootstrap latency %d, want %d", op.ID, e.BootLatency, boot)
			}
			if e.BootCore < 1 || e.BootCore > s.Cores {
				return fmt.Errorf("bootstrap of %d on core %d outside [1, %d]", op.ID, e.BootCore, s.Cores)
			}
			perCore[e.BootCore] = append(perCore[e.BootCore], interval{e.BootStart, e.BootStart + e.BootLatency, op.ID, true})
		}
		if e.End() > end {
			end = e.End()
		}
	}
	if end != s.Latency {
		return fmt.Errorf("schedule reports latency %d, last completion at %d", s.Latency, end)
	}

	cores := make([]int, 0, len(perCore))
	for c := range perCore {
		cores = append(cores, c)
	}
	sort.Ints(cores)
	for _, c := range cores {
		ivs := perCore[c]
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
		for i := 1; i < len(ivs); i++ {
			if ivs[i].start < ivs[i-1].end {
				return fmt.Errorf("core %d: operation %d overlaps operation %d at cycle %d", c, ivs[i].op, ivs[i-1].op, ivs[i].start)
			}
		}
	}
	return nil
}
