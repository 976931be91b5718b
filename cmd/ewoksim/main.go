// Package main runs the ewok membership simulator from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ewoksim",
	Short: "Simulate a dynamic-membership consensus network",
	Long: `ewoksim drives a simulated self-organising network through
growth, churn and shrinkage, checking that every node's view of section
membership stays consistent throughout.`,
	RunE: runSimulation,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("preset", "default", "parameter preset: default, small, or stress")
	flags.Int("min-section-size", 0, "override the minimum section size (0 = use preset)")
	flags.Uint64("max-delay", 0, "override the network's maximum message delay in steps (0 = use preset)")
	flags.Uint64("stable-steps", 0, "override the stable-phase duration in steps (0 = use preset)")
	flags.Int("growth-target", 0, "override the node count at which Growth yields to Stable (0 = use preset)")
	flags.String("log-level", "info", "log verbosity: trace, debug, info, warn, error")
	flags.Bool("metrics", false, "expose prometheus metrics for the run")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
