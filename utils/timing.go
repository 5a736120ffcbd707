package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether reports are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where reports are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds the wall time of each compiler phase
type TimingStats struct {
	TotalTime     time.Duration
	LoadTime      time.Duration
	SegmentTime   time.Duration
	PlacementTime time.Duration
	ScheduleTime  time.Duration
	EmitTime      time.Duration
}

func share(d, total time.Duration) float64 {
	if total == 0 {
		return 0
	}
	return float64(d) / float64(total) * 100
}

// PrintTimingStats prints the phase breakdown.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total compile time: %v\n", stats.TotalTime)
	fmt.Fprintln(Output, "\nBreakdown by phase:")
	fmt.Fprintf(Output, "  Graph loading: %v (%.1f%%)\n", stats.LoadTime, share(stats.LoadTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Segment generation: %v (%.1f%%)\n", stats.SegmentTime, share(stats.SegmentTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Bootstrap placement: %v (%.1f%%)\n", stats.PlacementTime, share(stats.PlacementTime, stats.TotalTime))
	fmt.Fprintf(Output, "  List scheduling: %v (%.1f%%)\n", stats.ScheduleTime, share(stats.ScheduleTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Emission: %v (%.1f%%)\n", stats.EmitTime, share(stats.EmitTime, stats.TotalTime))
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
