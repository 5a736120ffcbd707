package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hesched/compiler"
	"hesched/core/listsched"
	"hesched/core/opgraph"
	"hesched/core/placement"
	"hesched/core/segments"
	"hesched/utils"
)

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitInput       = 2
	exitUncoverable = 3
	exitInfeasible  = 4
)

var rootCmd = &cobra.Command{
	Use:   "hesched",
	Short: "Bootstrap placement and list scheduling for HE circuits",
	Long: `hesched places bootstraps in a homomorphic-encryption circuit so that no
path exceeds the multiplicative level budget, then schedules every operation
and bootstrap onto a pool of cores.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(scheduleCmd, calibrateCmd, levelsCmd, synthCmd)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, placement.ErrUncoverable),
		errors.Is(err, compiler.ErrUncovered):
		return exitUncoverable
	case errors.Is(err, listsched.ErrInfeasible):
		return exitInfeasible
	case errors.Is(err, utils.ErrInvalidConfig),
		errors.Is(err, opgraph.ErrCycle),
		errors.Is(err, opgraph.ErrNoInputs),
		errors.Is(err, opgraph.ErrNotTopological),
		errors.Is(err, opgraph.ErrOutOfRange),
		errors.Is(err, segments.ErrLevels),
		errors.Is(err, segments.ErrNotContiguous):
		return exitInput
	}
	return exitError
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
