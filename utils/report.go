package utils

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"hesched/core/listsched"
	"hesched/core/opgraph"
	"hesched/core/timing"
)

// Report summarises one compiled schedule.
type Report struct {
	ScheduleID   string
	Mode         string
	Policy       string
	Operations   int
	Segments     int
	Bootstraps   int
	Latency      int
	Cores        int
	UsedCores    int
	BoundLatency int
	CriticalPath []int
	SlackMean    float64
	SlackStdDev  float64
	// Utilization is the busy share of each used core over the schedule latency.
	Utilization     []float64
	UtilizationMean float64
}

// NewReport computes the statistics of s. Timing analysis is rerun on g so
// slack reflects the marking s was built from.
func NewReport(g *opgraph.Graph, s *listsched.Schedule, policy string, segments int) *Report {
	res := timing.Analyze(g)
	r := &Report{
		ScheduleID:   s.ID,
		Mode:         s.Mode,
		Policy:       policy,
		Operations:   g.Len(),
		Segments:     segments,
		Bootstraps:   s.Bootstraps,
		Latency:      s.Latency,
		Cores:        s.Cores,
		UsedCores:    s.UsedCores(),
		BoundLatency: res.End,
		CriticalPath: timing.CriticalPath(g),
	}

	slack := make([]float64, 0, g.Len())
	for _, op := range g.Operations() {
		slack = append(slack, float64(op.Rank))
	}
	if len(slack) > 0 {
		r.SlackMean, r.SlackStdDev = stat.MeanStdDev(slack, nil)
		if len(slack) == 1 {
			r.SlackStdDev = 0
		}
	}

	if s.Latency > 0 {
		for _, st := range s.Streams() {
			if len(st) == 0 {
				continue
			}
			busy := 0
			for _, in := range st {
				busy += in.Latency
			}
			r.Utilization = append(r.Utilization, float64(busy)/float64(s.Latency))
		}
		if len(r.Utilization) > 0 {
			r.UtilizationMean = stat.Mean(r.Utilization, nil)
		}
	}
	return r
}

// PrintReport prints r.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintReport(r *Report) {
	if !Verbose {
		return
	}
	cores := fmt.Sprintf("%d", r.Cores)
	if r.Cores == r.Operations {
		cores += " (unlimited)"
	}
	fmt.Fprintln(Output, "\n=== SCHEDULE ===")
	fmt.Fprintf(Output, "Schedule id: %s\n", r.ScheduleID)
	fmt.Fprintf(Output, "Mode: %s, policy: %s\n", r.Mode, r.Policy)
	fmt.Fprintf(Output, "Operations: %d, segments: %d, bootstraps: %d\n", r.Operations, r.Segments, r.Bootstraps)
	fmt.Fprintf(Output, "Latency: %d cycles (dependency bound %d)\n", r.Latency, r.BoundLatency)
	fmt.Fprintf(Output, "Cores: %s, used: %d\n", cores, r.UsedCores)
	fmt.Fprintf(Output, "Critical path: %s\n", joinInts(r.CriticalPath))
	fmt.Fprintf(Output, "Slack: mean %.2f, stddev %.2f\n", r.SlackMean, r.SlackStdDev)
	fmt.Fprintf(Output, "Core utilization: mean %.1f%%\n", r.UtilizationMean*100)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}
