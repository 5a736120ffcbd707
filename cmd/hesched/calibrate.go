package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hesched/bench"
	"hesched/core/ckkswrapper"
	"hesched/utils"
)

var calibrateFlags struct {
	logN  int
	logQ  string
	logP  string
	scale int
	runs  int
	unit  time.Duration
	out   string
	csv   string
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure CKKS operation latencies and write a latency table",
	Long: `Time ADD, SUB, MUL (with relinearization and rescale) and a bootstrap on a
CKKS parameter set and convert the means into cycles of --unit.`,
	RunE: runCalibrate,
}

func init() {
	f := calibrateCmd.Flags()
	f.IntVar(&calibrateFlags.logN, "log-n", 0, "ring degree (log2), 0 uses the built-in parameter set")
	f.StringVar(&calibrateFlags.logQ, "log-q", "", "comma-separated modulus chain bit sizes")
	f.StringVar(&calibrateFlags.logP, "log-p", "", "comma-separated key-switching prime bit sizes")
	f.IntVar(&calibrateFlags.scale, "log-scale", 0, "default scale (log2)")
	f.IntVar(&calibrateFlags.runs, "runs", 10, "timed runs per operation")
	f.DurationVar(&calibrateFlags.unit, "unit", 100*time.Microsecond, "duration of one cycle")
	f.StringVar(&calibrateFlags.out, "out", "", "write the latency table as YAML")
	f.StringVar(&calibrateFlags.csv, "csv", "", "write raw timings as CSV")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	heCtx, err := contextFromFlags(calibrateFlags.logN, calibrateFlags.logQ, calibrateFlags.logP, calibrateFlags.scale)
	if err != nil {
		return err
	}
	fmt.Printf("[Calibration | %s]\n", bench.ParamsSummary(heCtx))

	cal, err := bench.Calibrate(heCtx, calibrateFlags.runs, calibrateFlags.unit)
	if err != nil {
		return err
	}
	for _, s := range cal.Samples {
		fmt.Printf("  %-5s mean=%10.1fµs stddev=%8.1fµs cycles=%d\n", s.Kind, s.Mean, s.StdDev, s.Cycles)
	}

	if calibrateFlags.out != "" {
		lf := utils.NewLatencyFile(cal.Params, cal.Latencies())
		if err := utils.SaveLatencies(calibrateFlags.out, lf); err != nil {
			return err
		}
		fmt.Printf("Latency table written to %s\n", calibrateFlags.out)
	}
	if calibrateFlags.csv != "" {
		f, err := os.Create(calibrateFlags.csv)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := bench.WriteCSV(f, cal); err != nil {
			return err
		}
	}
	return nil
}

// contextFromFlags builds an HE context from explicit parameters, or from the
// built-in set when logN is 0.
func contextFromFlags(logN int, logQ, logP string, scale int) (*ckkswrapper.HeContext, error) {
	if logN == 0 {
		return ckkswrapper.NewHeContext()
	}
	params, err := paramsFromFlags(logN, logQ, logP, scale)
	if err != nil {
		return nil, err
	}
	return ckkswrapper.NewHeContextWithParams(params), nil
}
