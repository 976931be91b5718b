package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/logging"
	"github.com/michaelsproul/ewok/name"
)

// requireNoConflictBreach asserts the driver ran to termination without
// rules.ErrTooManyConflictingBlocks surfacing (d.Run wraps that error and
// aborts rather than returning a result), satisfying the "no
// max_conflicting_blocks breach occurred" half of every worked scenario.
func requireNoConflictBreach(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err, "scenario must run without a max_conflicting_blocks breach")
}

func smallTestParams() config.SimulationParams {
	p := config.SmallParams()
	p.Node.MinSectionSize = 4
	p.GrowthTarget = 4
	p.StableSteps = 8
	p.MaxExtraSteps = 200
	for phase, probs := range p.Probabilities {
		probs.Join = 0
		probs.Drop = 0
		p.Probabilities[phase] = probs
	}
	return p
}

// TestTwoDropsForceMerge reproduces the spec's six-node-single-section
// scenario: drop two members at step 0, expecting the remaining four
// members to stay as one consistent section.
func TestTwoDropsForceMerge(t *testing.T) {
	params := smallTestParams()
	params.Node.MinSectionSize = 2

	sections := map[name.Prefix]int{name.Empty: 6}
	rng := randsrc.New(42)
	schedule := EmptySchedule()

	d, err := NewFromSections(sections, params, logging.NoLog{}, nil, rng, schedule)
	require.NoError(t, err)

	var toRemove []name.Name
	for n := range d.nodes {
		toRemove = append(toRemove, n)
		if len(toRemove) == 2 {
			break
		}
	}
	schedule.byStep[0] = []Event{
		{Kind: EventRemoveNode, Name: toRemove[0]},
		{Kind: EventRemoveNode, Name: toRemove[1]},
	}

	result, err := d.Run()
	requireNoConflictBreach(t, err)

	total := 0
	for _, b := range result {
		total += b.Members.Len()
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, 4, len(d.nodes))
}

// TestFourSectionsCoverNamespace exercises GenerateNetwork across
// multiple prefixes and checks the consistency invariant holds
// immediately, with no churn at all.
func TestFourSectionsCoverNamespace(t *testing.T) {
	params := smallTestParams()
	params.Node.MinSectionSize = 3

	sections := map[name.Prefix]int{
		name.New(2, name.Name(0)):                           3,
		name.New(2, name.Name(1)<<62):                       3,
		name.New(2, name.Name(2)<<62):                       3,
		name.New(2, name.Name(3)<<62):                       3,
	}
	rng := randsrc.New(7)
	d, err := NewFromSections(sections, params, logging.NoLog{}, nil, rng, EmptySchedule())
	require.NoError(t, err)

	result, err := CheckConsistency(d.nodes, params.Node.MinSectionSize)
	require.NoError(t, err)
	assert.Len(t, result, 4)
}

func quadrantSections(perSection int) map[name.Prefix]int {
	return map[name.Prefix]int{
		name.New(2, name.Name(0)):     perSection,
		name.New(2, name.Name(1)<<62): perSection,
		name.New(2, name.Name(2)<<62): perSection,
		name.New(2, name.Name(3)<<62): perSection,
	}
}

func namesInPrefix(d *Driver, p name.Prefix) []name.Name {
	var out []name.Name
	for n := range d.nodes {
		if p.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}

// TestFourSectionsTwoTargetedDrops reproduces the spec's four-section
// scenario: two drops from neighbouring quadrants force them to merge,
// while the other two quadrants are untouched.
func TestFourSectionsTwoTargetedDrops(t *testing.T) {
	params := smallTestParams()
	params.Node.MinSectionSize = 4

	rng := randsrc.New(11)
	d, err := NewFromSections(quadrantSections(4), params, logging.NoLog{}, nil, rng, EmptySchedule())
	require.NoError(t, err)

	p00 := name.New(2, name.Name(0))
	p01 := name.New(2, name.Name(1)<<62)

	schedule := EmptySchedule()
	schedule.byStep[0] = []Event{
		{Kind: EventRemoveNode, Name: namesInPrefix(d, p00)[0]},
		{Kind: EventRemoveNode, Name: namesInPrefix(d, p01)[0]},
	}
	d.schedule = schedule

	result, err := d.Run()
	requireNoConflictBreach(t, err)
	assert.GreaterOrEqual(t, len(result), 3)
	for prefix, b := range result {
		assert.GreaterOrEqual(t, b.Members.Len(), params.Node.MinSectionSize, "section %s below minimum", prefix)
	}
}

// TestCascadingMerge drops one member from a three-section namespace,
// expecting the deficit to cascade back to a single section.
func TestCascadingMerge(t *testing.T) {
	params := smallTestParams()
	params.Node.MinSectionSize = 3

	sections := map[name.Prefix]int{
		name.New(1, name.Name(0)):     3,
		name.New(2, name.Name(2)<<62): 3,
		name.New(2, name.Name(3)<<62): 3,
	}
	rng := randsrc.New(13)
	d, err := NewFromSections(sections, params, logging.NoLog{}, nil, rng, EmptySchedule())
	require.NoError(t, err)

	p0 := name.New(1, name.Name(0))
	schedule := EmptySchedule()
	schedule.byStep[0] = []Event{
		{Kind: EventRemoveNode, Name: namesInPrefix(d, p0)[0]},
	}
	d.schedule = schedule

	result, err := d.Run()
	requireNoConflictBreach(t, err)
	assert.Len(t, result, 1)

	total := 0
	for _, b := range result {
		total += b.Members.Len()
	}
	assert.Equal(t, 3*params.Node.MinSectionSize-1, total)
}

// TestOneJoinOneDrop exercises a drop and a join in the same section one
// step apart, expecting the section count and total size to be
// unchanged at termination.
func TestOneJoinOneDrop(t *testing.T) {
	params := smallTestParams()
	params.Node.MinSectionSize = 4

	sections := map[name.Prefix]int{
		name.New(1, name.Name(0)):           4,
		name.New(1, name.Name(1)<<63):       4,
	}
	rng := randsrc.New(17)
	d, err := NewFromSections(sections, params, logging.NoLog{}, nil, rng, EmptySchedule())
	require.NoError(t, err)

	p0 := name.New(1, name.Name(0))
	dropped := namesInPrefix(d, p0)[0]

	schedule := EmptySchedule()
	schedule.byStep[0] = []Event{{Kind: EventRemoveNode, Name: dropped}}
	joiner, err := generateNameWithPrefix(p0, rng)
	require.NoError(t, err)
	schedule.byStep[1] = []Event{{Kind: EventAddNode, Name: joiner}}
	d.schedule = schedule

	result, err := d.Run()
	requireNoConflictBreach(t, err)
	assert.Len(t, result, 2)

	total := 0
	for _, b := range result {
		total += b.Members.Len()
	}
	assert.Equal(t, 8, total)
}

// TestParallelMerges removes one node from each of two non-adjacent
// quadrants at once, expecting each to merge with its sibling
// independently, leaving two sections.
func TestParallelMerges(t *testing.T) {
	params := smallTestParams()
	params.Node.MinSectionSize = 4

	rng := randsrc.New(19)
	d, err := NewFromSections(quadrantSections(4), params, logging.NoLog{}, nil, rng, EmptySchedule())
	require.NoError(t, err)

	p00 := name.New(2, name.Name(0))
	p11 := name.New(2, name.Name(3)<<62)

	schedule := EmptySchedule()
	schedule.byStep[0] = []Event{
		{Kind: EventRemoveNode, Name: namesInPrefix(d, p00)[0]},
		{Kind: EventRemoveNode, Name: namesInPrefix(d, p11)[0]},
	}
	d.schedule = schedule

	result, err := d.Run()
	requireNoConflictBreach(t, err)
	assert.Len(t, result, 2)
}
