package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/logging"
	"github.com/michaelsproul/ewok/metrics"
	"github.com/michaelsproul/ewok/sim"
)

// runSimulation wires flags into a SimulationParams, resolves the RNG
// seed, runs the driver to termination, and reports the outcome. On
// failure the seed is printed so the run can be reproduced.
func runSimulation(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	preset, err := flags.GetString("preset")
	if err != nil {
		return err
	}
	builder, err := config.FromPreset(preset)
	if err != nil {
		return err
	}

	if v, _ := flags.GetInt("min-section-size"); v > 0 {
		builder = builder.WithMinSectionSize(v)
	}
	if v, _ := flags.GetUint64("max-delay"); v > 0 {
		builder = builder.WithMaxDelay(v)
	}
	if v, _ := flags.GetUint64("stable-steps"); v > 0 {
		builder = builder.WithStableSteps(v)
	}
	if v, _ := flags.GetInt("growth-target"); v > 0 {
		builder = builder.WithGrowthTarget(v)
	}

	params, err := builder.Build()
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	verbosity, err := flags.GetString("log-level")
	if err != nil {
		return err
	}
	logger := logging.New(verbosity)

	seed, fromEnv := randsrc.SeedFromEnv()
	if !fromEnv {
		seed = randsrc.Seed()
	}
	logger.Info("using rng seed", "seed", seed, "from_env", fromEnv)
	rng := randsrc.New(seed)

	var mx *metrics.Metrics
	if enabled, _ := flags.GetBool("metrics"); enabled {
		mx, err = metrics.New(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	driver := sim.New(params, logger, mx, rng, sim.EmptySchedule())

	result, err := driver.Run()
	if err != nil {
		fmt.Printf("simulation failed: %v\nrerun with EWOK_SEED to reproduce this seed: %d\n", err, seed)
		return err
	}

	fmt.Printf("simulation reached a consistent final state with %d section(s)\n", len(result))
	for prefix, b := range result {
		fmt.Printf("  %s: %d members (version %d)\n", prefix, b.Members.Len(), b.Version)
	}
	return nil
}
