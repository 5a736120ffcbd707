// Package bench measures CKKS operation latencies and converts them into the
// cycle latency table used by the scheduler.
package bench

import (
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"hesched/core/ckkswrapper"
	"hesched/core/opgraph"
	"hesched/utils"
)

// Sample holds the timings of one operation kind.
type Sample struct {
	Kind   opgraph.Kind
	Runs   []float64 // microseconds
	Mean   float64
	StdDev float64
	Cycles int
}

// Calibration is the result of one benchmark run.
type Calibration struct {
	Params  string
	Unit    time.Duration
	Samples []Sample
}

// Latencies converts the measured means into a latency table.
func (c *Calibration) Latencies() opgraph.LatencyTable {
	lat := opgraph.LatencyTable{}
	for _, s := range c.Samples {
		lat[s.Kind] = s.Cycles
	}
	return lat
}

// ParamsSummary describes the parameter set of heCtx.
func ParamsSummary(heCtx *ckkswrapper.HeContext) string {
	p := heCtx.Params
	return fmt.Sprintf("logN=%d,logQ=%v,logP=%v,levels=%d", p.LogN(), p.LogQ(), p.LogP(), heCtx.Levels())
}

// Calibrate times every operation kind runs times. One cycle is unit; every
// kind costs at least one cycle.
func Calibrate(heCtx *ckkswrapper.HeContext, runs int, unit time.Duration) (*Calibration, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}
	if unit <= 0 {
		return nil, fmt.Errorf("cycle unit must be positive, got %v", unit)
	}
	kit := heCtx.GenServerKit()
	eval := kit.Evaluator

	vec := make([]float64, heCtx.Params.MaxSlots())
	for i := range vec {
		vec[i] = 0.5
	}
	a, err := heCtx.EncryptVector(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt operand: %w", err)
	}
	b, err := heCtx.EncryptVector(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt operand: %w", err)
	}

	// The refresh is timed on a ciphertext with no multiplicative depth left.
	low := a.CopyNew()
	for !ckkswrapper.NeedsBootstrap(low, 0) {
		if err := eval.MulRelin(low, low, low); err != nil {
			return nil, fmt.Errorf("failed to exhaust operand: %w", err)
		}
		if err := eval.Rescale(low, low); err != nil {
			return nil, fmt.Errorf("failed to exhaust operand: %w", err)
		}
	}

	ops := []struct {
		kind opgraph.Kind
		run  func() error
	}{
		{opgraph.Add, func() error {
			_, err := eval.AddNew(a, b)
			return err
		}},
		{opgraph.Sub, func() error {
			_, err := eval.SubNew(a, b)
			return err
		}},
		{opgraph.Mul, func() error {
			ct, err := eval.MulRelinNew(a, b)
			if err != nil {
				return err
			}
			return eval.Rescale(ct, ct)
		}},
		{opgraph.Boot, func() error {
			ct, err := heCtx.CheatBootstrap(low)
			if err != nil {
				return err
			}
			if n := heCtx.Consumed(ct); n != 0 {
				return fmt.Errorf("refresh left %d levels consumed", n)
			}
			return nil
		}},
	}

	cal := &Calibration{Params: ParamsSummary(heCtx), Unit: unit}
	for _, op := range ops {
		// warm-up
		if err := op.run(); err != nil {
			return nil, fmt.Errorf("%s: %w", op.kind, err)
		}
		s := Sample{Kind: op.kind, Runs: make([]float64, runs)}
		for i := 0; i < runs; i++ {
			start := time.Now()
			if err := op.run(); err != nil {
				return nil, fmt.Errorf("%s: %w", op.kind, err)
			}
			s.Runs[i] = utils.DurationUS(time.Since(start))
		}
		s.Mean, s.StdDev = stat.MeanStdDev(s.Runs, nil)
		if runs == 1 {
			s.StdDev = 0
		}
		s.Cycles = ToCycles(s.Mean, unit)
		cal.Samples = append(cal.Samples, s)
	}
	return cal, nil
}

// ToCycles rounds a duration in microseconds up to whole cycles of unit.
func ToCycles(us float64, unit time.Duration) int {
	c := int(math.Ceil(us / utils.DurationUS(unit)))
	if c < 1 {
		c = 1
	}
	return c
}

// WriteCSV writes one row per operation kind.
func WriteCSV(w io.Writer, cal *Calibration) error {
	if _, err := fmt.Fprintln(w, "kind,runs,mean_us,stddev_us,cycles,params"); err != nil {
		return err
	}
	for _, s := range cal.Samples {
		if _, err := fmt.Fprintf(w, "%s,%d,%.3f,%.3f,%d,%s\n",
			s.Kind, len(s.Runs), s.Mean, s.StdDev, s.Cycles, cal.Params); err != nil {
			return err
		}
	}
	return nil
}
