// Package config defines the tunable parameters of a simulation run,
// following the preset-and-override builder pattern used throughout the
// wider ecosystem's consensus configs.
package config

import (
	"errors"
	"fmt"
)

// Error variables for parameter validation.
var (
	ErrInvalidMinSectionSize = errors.New("min section size must be >= 1")
	ErrInvalidSplitBuffer    = errors.New("split buffer must be >= 0")
	ErrInvalidMaxDelay       = errors.New("max delay must be >= 1")
	ErrInvalidStableSteps    = errors.New("stable steps must be >= 1")
)

// Phase is a coarse driver state controlling which random events fire.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseGrowth
	PhaseStable
	PhaseShrinking
	PhaseFinishing
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "Starting"
	case PhaseGrowth:
		return "Growth"
	case PhaseStable:
		return "Stable"
	case PhaseShrinking:
		return "Shrinking"
	case PhaseFinishing:
		return "Finishing"
	default:
		return "Unknown"
	}
}

// EventProbabilities is the (prob_join, prob_drop, prob_disconnect,
// prob_reconnect) tuple a phase maps to.
type EventProbabilities struct {
	Join       float64
	Drop       float64
	Disconnect float64
	Reconnect  float64
}

// NodeParams governs a single node's local behaviour.
type NodeParams struct {
	MinSectionSize       int
	SplitBuffer          int
	JoinTimeout           uint64
	RemoveConvergenceTimeout uint64
	SelfShutdownTimeout   uint64
	MaxConflictingBlocks  int
}

// SimulationParams governs the driver's phase machine and network model.
type SimulationParams struct {
	Node NodeParams

	MaxDelay     uint64
	StableSteps  uint64
	GrowthTarget int
	MaxExtraSteps uint64

	Probabilities map[Phase]EventProbabilities
}

// ProbabilitiesFor returns the event probabilities for phase.
func (p SimulationParams) ProbabilitiesFor(phase Phase) EventProbabilities {
	return p.Probabilities[phase]
}

// Validate checks the parameters are internally consistent.
func (p SimulationParams) Validate() error {
	if p.Node.MinSectionSize < 1 {
		return ErrInvalidMinSectionSize
	}
	if p.Node.SplitBuffer < 0 {
		return ErrInvalidSplitBuffer
	}
	if p.MaxDelay < 1 {
		return ErrInvalidMaxDelay
	}
	if p.StableSteps < 1 {
		return ErrInvalidStableSteps
	}
	return nil
}

func (p SimulationParams) String() string {
	return fmt.Sprintf("SimulationParams{min_section_size=%d, max_delay=%d, stable_steps=%d}",
		p.Node.MinSectionSize, p.MaxDelay, p.StableSteps)
}

// DefaultNodeParams mirrors the original's defaults: an 8-node minimum
// section, a 1-node split buffer, and generous churn timeouts.
func DefaultNodeParams() NodeParams {
	return NodeParams{
		MinSectionSize:           8,
		SplitBuffer:              1,
		JoinTimeout:              20,
		RemoveConvergenceTimeout: 20,
		SelfShutdownTimeout:      100,
		MaxConflictingBlocks:     100,
	}
}

// DefaultParams returns the baseline preset: moderate churn, 20-step
// message delay, 50-step stable phases.
func DefaultParams() SimulationParams {
	return SimulationParams{
		Node:          DefaultNodeParams(),
		MaxDelay:      20,
		StableSteps:   50,
		GrowthTarget:  32,
		MaxExtraSteps: 1000,
		Probabilities: map[Phase]EventProbabilities{
			PhaseStarting:  {Join: 1.0, Drop: 0, Disconnect: 0, Reconnect: 0},
			PhaseGrowth:    {Join: 0.2, Drop: 0.02, Disconnect: 0.01, Reconnect: 0.05},
			PhaseStable:    {Join: 0.05, Drop: 0.05, Disconnect: 0.02, Reconnect: 0.1},
			PhaseShrinking: {Join: 0.02, Drop: 0.2, Disconnect: 0.01, Reconnect: 0.05},
			PhaseFinishing: {Join: 0, Drop: 0, Disconnect: 0, Reconnect: 0},
		},
	}
}

// SmallParams is a fast-running preset for unit and scenario tests: small
// sections, short delays, short stable phases.
func SmallParams() SimulationParams {
	p := DefaultParams()
	p.Node.MinSectionSize = 4
	p.Node.SplitBuffer = 1
	p.Node.JoinTimeout = 10
	p.Node.RemoveConvergenceTimeout = 10
	p.Node.SelfShutdownTimeout = 30
	p.MaxDelay = 5
	p.StableSteps = 10
	p.GrowthTarget = 12
	return p
}

// StressParams is a high-churn preset for exercising splits, merges and
// adversarial network conditions harder than DefaultParams.
func StressParams() SimulationParams {
	p := DefaultParams()
	p.Node.MinSectionSize = 8
	p.MaxDelay = 30
	p.StableSteps = 80
	p.GrowthTarget = 128
	probs := p.Probabilities
	probs[PhaseStable] = EventProbabilities{Join: 0.1, Drop: 0.1, Disconnect: 0.05, Reconnect: 0.2}
	p.Probabilities = probs
	return p
}

// Builder assembles a SimulationParams from a preset plus overrides, the
// way CLI flag parsing composes a final config.
type Builder struct {
	params SimulationParams
}

// NewBuilder starts from DefaultParams.
func NewBuilder() *Builder {
	return &Builder{params: DefaultParams()}
}

// FromPreset starts from a named preset: "default", "small", or "stress".
func FromPreset(preset string) (*Builder, error) {
	switch preset {
	case "", "default":
		return &Builder{params: DefaultParams()}, nil
	case "small":
		return &Builder{params: SmallParams()}, nil
	case "stress":
		return &Builder{params: StressParams()}, nil
	default:
		return nil, fmt.Errorf("unknown preset %q", preset)
	}
}

// WithMinSectionSize overrides the node minimum section size.
func (b *Builder) WithMinSectionSize(n int) *Builder {
	b.params.Node.MinSectionSize = n
	return b
}

// WithMaxDelay overrides the network's maximum message delay.
func (b *Builder) WithMaxDelay(steps uint64) *Builder {
	b.params.MaxDelay = steps
	return b
}

// WithStableSteps overrides the stable-phase duration.
func (b *Builder) WithStableSteps(steps uint64) *Builder {
	b.params.StableSteps = steps
	return b
}

// WithGrowthTarget overrides the node count at which Growth yields to Stable.
func (b *Builder) WithGrowthTarget(n int) *Builder {
	b.params.GrowthTarget = n
	return b
}

// Build validates and returns the assembled parameters.
func (b *Builder) Build() (SimulationParams, error) {
	if err := b.params.Validate(); err != nil {
		return SimulationParams{}, err
	}
	return b.params, nil
}
