package main

import (
	"os"

	"github.com/spf13/cobra"

	"hesched/loader"
)

var synthFlags struct {
	ops  int
	muls float64
	seed int64
	out  string
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a random circuit",
	Long:  `Write a random circuit in the loader format. The same seed always gives the same circuit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := os.Stdout
		if synthFlags.out != "" {
			f, err := os.Create(synthFlags.out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return loader.WriteSynthetic(w, synthFlags.ops, synthFlags.muls, synthFlags.seed)
	},
}

func init() {
	f := synthCmd.Flags()
	f.IntVar(&synthFlags.ops, "ops", 100, "number of operations")
	f.Float64Var(&synthFlags.muls, "mul-ratio", 0.4, "share of multiplications")
	f.Int64Var(&synthFlags.seed, "seed", 1, "random seed")
	f.StringVar(&synthFlags.out, "out", "", "output file, stdout when empty")
}
