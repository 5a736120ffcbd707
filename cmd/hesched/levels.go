package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"hesched/core/ckkswrapper"
	"hesched/utils"
)

var levelsFlags struct {
	config string
	logN   int
	logQ   string
	logP   string
	scale  int
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the level budget of a CKKS parameter set",
	Long: `Print how many multiplications a fresh ciphertext supports, which is the
--levels value to schedule with. Parameters come from flags or from the he
block of a configuration file.`,
	RunE: runLevels,
}

func init() {
	f := levelsCmd.Flags()
	f.StringVar(&levelsFlags.config, "config", "", "YAML configuration file with an he block")
	f.IntVar(&levelsFlags.logN, "log-n", 0, "ring degree (log2), 0 uses the built-in parameter set")
	f.StringVar(&levelsFlags.logQ, "log-q", "", "comma-separated modulus chain bit sizes")
	f.StringVar(&levelsFlags.logP, "log-p", "", "comma-separated key-switching prime bit sizes")
	f.IntVar(&levelsFlags.scale, "log-scale", 0, "default scale (log2)")
}

func runLevels(cmd *cobra.Command, args []string) error {
	var (
		params ckks.Parameters
		err    error
	)
	switch {
	case levelsFlags.config != "":
		config, err := utils.LoadConfig(levelsFlags.config)
		if err != nil {
			return err
		}
		if config.HE == nil {
			return fmt.Errorf("%w: %s has no he block", utils.ErrInvalidConfig, levelsFlags.config)
		}
		params, err = ckkswrapper.NewParams(config.HE.Literal())
		if err != nil {
			return err
		}
	case levelsFlags.logN != 0:
		params, err = paramsFromFlags(levelsFlags.logN, levelsFlags.logQ, levelsFlags.logP, levelsFlags.scale)
		if err != nil {
			return err
		}
	default:
		params, err = ckkswrapper.NewParams(ckkswrapper.DefaultLiteral)
		if err != nil {
			return err
		}
	}
	fmt.Printf("logN=%d logQ=%v logP=%v\n", params.LogN(), params.LogQ(), params.LogP())
	fmt.Printf("levels: %d\n", ckkswrapper.Levels(params))
	return nil
}

// parseCSVInts parses a comma-separated list of integers
func parseCSVInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func paramsFromFlags(logN int, logQ, logP string, scale int) (ckks.Parameters, error) {
	q, err := parseCSVInts(logQ)
	if err != nil {
		return ckks.Parameters{}, err
	}
	p, err := parseCSVInts(logP)
	if err != nil {
		return ckks.Parameters{}, err
	}
	if len(q) == 0 || len(p) == 0 {
		return ckks.Parameters{}, fmt.Errorf("%w: --log-q and --log-p are required with --log-n", utils.ErrInvalidConfig)
	}
	if scale == 0 {
		scale = q[len(q)-1]
	}
	return ckkswrapper.NewParams(ckks.ParametersLiteral{
		LogN:            logN,
		LogQ:            q,
		LogP:            p,
		LogDefaultScale: scale,
	})
}
