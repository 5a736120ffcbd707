package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hesched/compiler"
	"hesched/core/placement"
	"hesched/emit"
	"hesched/loader"
	"hesched/logging"
	"hesched/stream"
	"hesched/utils"
)

var scheduleFlags struct {
	config        string
	graph         string
	latencies     string
	segments      string
	bootstraps    string
	levels        int
	mode          string
	cores         int
	maxCycles     int
	policies      []string
	skipPlacement bool
	allowUncover  bool
	logLevel      string
	quiet         bool
	printJSON     bool

	outJSON       string
	outStreams    string
	outBootstraps string
	outSegments   string
	outWire       string
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Place bootstraps and schedule a circuit",
	Long: `Read a circuit, generate its bootstrap segments, place bootstraps under every
configured policy, keep the placement with the lowest unlimited-core latency,
and schedule it on the configured number of cores.

Examples:
  hesched schedule --graph circuit.txt --levels 3 --cores 4
  hesched schedule --config hesched.yaml --graph circuit.txt --out-streams streams.txt`,
	RunE: runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVar(&scheduleFlags.config, "config", "", "YAML configuration file")
	f.StringVar(&scheduleFlags.graph, "graph", "", "circuit file")
	f.StringVar(&scheduleFlags.latencies, "latencies", "", "latency table file, overrides the configuration")
	f.StringVar(&scheduleFlags.segments, "segments", "", "segment file; skips segment generation")
	f.StringVar(&scheduleFlags.bootstraps, "bootstraps", "", "bootstrap file applied before placement")
	f.IntVar(&scheduleFlags.levels, "levels", 0, "multiplications between bootstraps")
	f.StringVar(&scheduleFlags.mode, "mode", "", "bootstrap mode: complete or selective")
	f.IntVar(&scheduleFlags.cores, "cores", 0, "core count, 0 for one core per operation")
	f.IntVar(&scheduleFlags.maxCycles, "max-cycles", 0, "cycle bound, 0 derives it from the latencies")
	f.StringSliceVar(&scheduleFlags.policies, "policy", nil, "run only the named policies")
	f.BoolVar(&scheduleFlags.skipPlacement, "skip-placement", false, "schedule the loaded bootstraps as is")
	f.BoolVar(&scheduleFlags.allowUncover, "allow-uncovered", false, "warn instead of failing when a segment has no bootstrap")
	f.StringVar(&scheduleFlags.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVarP(&scheduleFlags.quiet, "quiet", "q", false, "suppress the report")
	f.BoolVar(&scheduleFlags.printJSON, "json", false, "print the schedule as JSON instead of the report")
	f.StringVar(&scheduleFlags.outJSON, "out-json", "", "write the schedule as JSON")
	f.StringVar(&scheduleFlags.outStreams, "out-streams", "", "write per-core instruction streams")
	f.StringVar(&scheduleFlags.outBootstraps, "out-bootstraps", "", "write the chosen bootstrap set")
	f.StringVar(&scheduleFlags.outSegments, "out-segments", "", "write the segments")
	f.StringVar(&scheduleFlags.outWire, "out-wire", "", "write the engine stream encoding")
	_ = scheduleCmd.MarkFlagRequired("graph")
}

func loadScheduleConfig(cmd *cobra.Command) (*utils.Config, error) {
	config := utils.DefaultConfig()
	if scheduleFlags.config != "" {
		var err error
		if config, err = utils.LoadConfig(scheduleFlags.config); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("levels") {
		config.Levels = scheduleFlags.levels
	}
	if f.Changed("mode") {
		config.Mode = scheduleFlags.mode
	}
	if f.Changed("cores") {
		config.Cores = scheduleFlags.cores
	}
	if f.Changed("max-cycles") {
		config.MaxCycles = scheduleFlags.maxCycles
	}
	if f.Changed("log-level") {
		config.LogLevel = scheduleFlags.logLevel
	}
	if len(scheduleFlags.policies) > 0 {
		var keep []placement.Policy
		for _, name := range scheduleFlags.policies {
			found := false
			for _, p := range config.Policies {
				if p.Name == name {
					keep = append(keep, p)
					found = true
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: unknown policy %q", utils.ErrInvalidConfig, name)
			}
		}
		config.Policies = keep
	}
	if err := utils.ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	total := time.Now()
	config, err := loadScheduleConfig(cmd)
	if err != nil {
		return err
	}
	utils.Verbose = !scheduleFlags.quiet && !scheduleFlags.printJSON
	log := logging.New("hesched", config.LogLevel)

	lat, err := config.LatencyTable()
	if err != nil {
		return err
	}
	if scheduleFlags.latencies != "" {
		rc, err := loader.Open(scheduleFlags.latencies)
		if err != nil {
			return err
		}
		override, err := loader.ParseLatencies(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", scheduleFlags.latencies, err)
		}
		for k, v := range override {
			lat[k] = v
		}
	}
	mode, err := config.GraphMode()
	if err != nil {
		return err
	}
	levels, err := config.ResolveLevels()
	if err != nil {
		return err
	}

	var stats utils.TimingStats
	start := time.Now()
	g, err := loader.LoadGraph(scheduleFlags.graph, mode, lat)
	if err != nil {
		return err
	}
	if scheduleFlags.bootstraps != "" {
		rc, err := loader.Open(scheduleFlags.bootstraps)
		if err != nil {
			return err
		}
		err = loader.ParseBootstraps(rc, g)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", scheduleFlags.bootstraps, err)
		}
	}
	stats.LoadTime = time.Since(start)
	log.Debug("graph loaded", "operations", g.Len(), "mode", mode, "levels", levels)

	start = time.Now()
	var prog *compiler.Program
	if scheduleFlags.segments != "" {
		rc, err := loader.Open(scheduleFlags.segments)
		if err != nil {
			return err
		}
		segs, err := loader.ParseSegments(rc, g)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", scheduleFlags.segments, err)
		}
		prog = compiler.LoadedProgram(g, segs)
	} else if prog, err = compiler.NewProgram(g, levels); err != nil {
		return err
	}
	stats.SegmentTime = time.Since(start)
	log.Info("segments ready", "stats", prog.Stats.String())

	res, err := compiler.Compile(prog, compiler.Options{
		Cores:          config.Cores,
		MaxCycles:      config.MaxCycles,
		Policies:       config.Policies,
		SkipPlacement:  scheduleFlags.skipPlacement,
		AllowUncovered: scheduleFlags.allowUncover,
		Log:            log,
	})
	if err != nil {
		return err
	}
	stats.PlacementTime = res.Timing.PlacementTime
	stats.ScheduleTime = res.Timing.ScheduleTime

	start = time.Now()
	if err := writeOutputs(res); err != nil {
		return err
	}
	stats.EmitTime = time.Since(start)
	stats.TotalTime = time.Since(total)
	if scheduleFlags.printJSON {
		return emit.WriteJSON(os.Stdout, res.Schedule)
	}

	utils.PrintReport(utils.NewReport(g, res.Schedule, res.Policy, len(prog.Segments)))
	if utils.Verbose && len(res.Candidates) > 1 {
		fmt.Fprintln(utils.Output, "\nPolicies:")
		for _, c := range res.Candidates {
			fmt.Fprintf(utils.Output, "  %-10s bootstraps=%d latency=%d\n",
				c.Placement.Policy.Name, c.Placement.Bootstraps, c.Schedule.Latency)
		}
	}
	utils.PrintTimingStats(&stats)
	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeOutputs(res *compiler.Result) error {
	s := res.Schedule
	g := res.Program.Graph
	if scheduleFlags.outJSON != "" {
		sf := &utils.ScheduleFile{Version: "1", Policy: res.Policy, Marking: g.Marking(), Schedule: s}
		if err := utils.SaveSchedule(scheduleFlags.outJSON, sf); err != nil {
			return err
		}
	}
	if err := writeFile(scheduleFlags.outStreams, func(f *os.File) error {
		return emit.WriteStreams(f, s)
	}); err != nil {
		return err
	}
	if err := writeFile(scheduleFlags.outBootstraps, func(f *os.File) error {
		return emit.WriteBootstraps(f, g)
	}); err != nil {
		return err
	}
	if err := writeFile(scheduleFlags.outSegments, func(f *os.File) error {
		return emit.WriteSegments(f, res.Program.Segments)
	}); err != nil {
		return err
	}
	return writeFile(scheduleFlags.outWire, func(f *os.File) error {
		return stream.NewProtocol(nil, f).SendSchedule(s)
	})
}
