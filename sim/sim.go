// Package sim implements the simulation driver: the phase machine,
// random-event generator, scheduled-event injection, and the consistency
// check that judges a run's outcome.
package sim

import (
	"fmt"
	"sort"

	"github.com/luxfi/log"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/metrics"
	"github.com/michaelsproul/ewok/name"
	"github.com/michaelsproul/ewok/network"
	"github.com/michaelsproul/ewok/node"
)

// stepLine renders the per-step banner in the exact format the original
// analysis tooling's STEP_RE expects.
func stepLine(step uint64, phase config.Phase, nodeCount int) string {
	return fmt.Sprintf("-- step %d (%s) %d nodes --", step, phase.String(), nodeCount)
}

// queueLine renders the post-send queue depth in the exact format the
// original analysis tooling's QUEUE_RE expects.
func queueLine(queued int) string {
	return fmt.Sprintf("- %d messages still in queue", queued)
}

type pair struct {
	lower, higher name.Name
}

// sortedPairs returns the elements of s in a deterministic order, since
// pair has no natural cmp.Ordered instance for xset.Sorted to use.
func sortedPairs(s xset.Set[pair]) []pair {
	out := make([]pair, 0, s.Len())
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].lower != out[j].lower {
			return out[i].lower < out[j].lower
		}
		return out[i].higher < out[j].higher
	})
	return out
}

func newPair(a, b name.Name) pair {
	if a < b {
		return pair{lower: a, higher: b}
	}
	return pair{lower: b, higher: a}
}

// Driver runs a simulation to termination: it owns the node table, the
// network delay model, and the phase/event machinery that injects churn.
type Driver struct {
	nodes   map[name.Name]*node.Node
	network *network.Network

	genesis []block.Block

	params config.SimulationParams
	logger log.Logger
	rng    *randsrc.Source
	mx     *metrics.Metrics

	schedule     *EventSchedule
	randomEvents *RandomEvents

	connections  xset.Set[pair]
	disconnected xset.Set[pair]

	step       uint64
	phase      config.Phase
	phaseSince uint64
}

// New starts a driver with a single genesis node owning the whole
// namespace.
func New(params config.SimulationParams, logger log.Logger, mx *metrics.Metrics, rng *randsrc.Source, schedule *EventSchedule) *Driver {
	firstName := name.Name(rng.Uint64())
	genesis := []block.Block{block.Genesis(firstName)}

	nodes := map[name.Name]*node.Node{
		firstName: node.NewGenesis(firstName, params.Node, logger, 0),
	}

	return &Driver{
		nodes:        nodes,
		network:      network.New(params.MaxDelay, logger),
		genesis:      genesis,
		params:       params,
		logger:       logger,
		rng:          rng,
		mx:           mx,
		schedule:     schedule,
		randomEvents: NewRandomEvents(params.Node, rng),
		connections:  xset.New[pair](0),
		disconnected: xset.New[pair](0),
		phase:        config.PhaseStarting,
	}
}

// NewFromSections starts a driver with pre-built sections, as used by the
// worked scenarios in the specification.
func NewFromSections(sections map[name.Prefix]int, params config.SimulationParams, logger log.Logger, mx *metrics.Metrics, rng *randsrc.Source, schedule *EventSchedule) (*Driver, error) {
	nodes, genesis, err := GenerateNetwork(sections, params.Node, logger, rng, 0)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		nodes:        nodes,
		network:      network.New(params.MaxDelay, logger),
		genesis:      genesis,
		params:       params,
		logger:       logger,
		rng:          rng,
		mx:           mx,
		schedule:     schedule,
		randomEvents: NewRandomEvents(params.Node, rng),
		connections:  xset.New[pair](0),
		disconnected: xset.New[pair](0),
		phase:        config.PhaseStable,
		phaseSince:   0,
	}
	for _, a := range xset.Sorted(d.liveNames()) {
		for _, b := range xset.Sorted(d.liveNames()) {
			if a != b {
				d.connections.Add(newPair(a, b))
			}
		}
	}
	return d, nil
}

func (d *Driver) liveNames() xset.Set[name.Name] {
	out := xset.New[name.Name](len(d.nodes))
	for n := range d.nodes {
		out.Add(n)
	}
	return out
}

// Run executes the simulation to termination, returning the final
// prefix -> block map on success or an error if invariants were violated.
func (d *Driver) Run() (map[name.Prefix]block.Block, error) {
	maxSteps := d.params.StableSteps*4 + d.params.MaxExtraSteps
	emptySteps := uint64(0)

	for d.step = 0; d.step < maxSteps; d.step++ {
		d.advancePhase()
		d.logger.Info(stepLine(d.step, d.phase, len(d.nodes)))

		if d.phase != config.PhaseFinishing {
			d.injectEvents()
		} else if d.network.QueueIsEmpty() {
			emptySteps++
			if emptySteps > d.params.Node.JoinTimeout {
				break
			}
		} else {
			emptySteps = 0
		}

		d.injectConnectivityChurn()

		delivered := d.network.Receive(d.rng, d.step)
		var toSend []message.Message

		for _, m := range delivered {
			n, alive := d.nodes[m.Recipient]
			if !alive {
				d.logger.Debug("dropping message for dead node", "recipient", m.Recipient.String())
				continue
			}
			if !d.messageAllowed(m) {
				continue
			}
			toSend = append(toSend, n.HandleMessage(m, d.step)...)
		}

		for n := range d.nodes {
			if d.nodes[n].ShouldShutdown(d.step) {
				toSend = append(toSend, d.shutdownNode(n)...)
				continue
			}
			msgs, err := d.nodes[n].UpdateState(d.step)
			if err != nil {
				dump := d.nodes[n].Dump()
				d.logger.Error("aborting: too many conflicting blocks", "name", n.String(), "err", err.Error())
				return nil, fmt.Errorf("sim: node %s: %w\n%s", n, err, dump)
			}
			toSend = append(toSend, msgs...)
		}

		d.network.Send(d.step, toSend)
		d.logger.Info(queueLine(d.network.MessagesInQueue()))
		d.reportMetrics()
	}

	if d.phase != config.PhaseFinishing {
		return nil, fmt.Errorf("sim: simulation did not reach Finishing before the step budget ran out")
	}

	return CheckConsistency(d.nodes, d.params.Node.MinSectionSize)
}

func (d *Driver) reportMetrics() {
	if d.mx == nil {
		return
	}
	d.mx.SetStep(d.step)
	d.mx.SetLiveNodes(len(d.nodes))
	d.mx.SetMessagesQueued(d.network.MessagesInQueue())

	currentIDs := xset.New[block.BlockID](0)
	for _, n := range d.nodes {
		currentIDs.Union(n.CurrentBlocks())
	}
	d.mx.SetCurrentBlocks(currentIDs.Len())
}

// advancePhase moves the driver through Starting -> Growth -> Stable ->
// Shrinking -> Finishing, deterministically on node count and elapsed
// stable-steps, per spec.
func (d *Driver) advancePhase() {
	switch d.phase {
	case config.PhaseStarting:
		if len(d.nodes) > 0 {
			d.phase = config.PhaseGrowth
			d.phaseSince = d.step
		}
	case config.PhaseGrowth:
		if len(d.nodes) >= d.params.GrowthTarget {
			d.phase = config.PhaseStable
			d.phaseSince = d.step
		}
	case config.PhaseStable:
		if d.step-d.phaseSince >= d.params.StableSteps {
			d.phase = config.PhaseShrinking
			d.phaseSince = d.step
		}
	case config.PhaseShrinking:
		if d.step-d.phaseSince >= d.params.StableSteps {
			d.phase = config.PhaseFinishing
			d.phaseSince = d.step
		}
	case config.PhaseFinishing:
	}
}

// injectEvents polls the schedule, samples random events, normalises them
// and broadcasts the resulting joins/removes.
func (d *Driver) injectEvents() {
	events := append([]Event{}, d.schedule.At(d.step)...)
	events = append(events, d.randomEvents.Sample(d.params.ProbabilitiesFor(d.phase), d.nodes)...)

	liveNames := xset.Sorted(d.liveNames())

	var toSend []message.Message
	for _, e := range events {
		normalised, ok := e.normalise(liveNames)
		if !ok {
			continue
		}

		switch normalised.Kind {
		case EventAddNode:
			toSend = append(toSend, d.joinNode(normalised.Name)...)
		case EventRemoveNode:
			toSend = append(toSend, d.dropNode(normalised.Name)...)
		}
	}

	d.network.Send(d.step, toSend)
}

// joinNode activates a new node seeded from the original genesis set,
// connects it to every other live node, and broadcasts its NodeJoined
// notification.
func (d *Driver) joinNode(joining name.Name) []message.Message {
	if _, exists := d.nodes[joining]; exists {
		return nil
	}
	d.nodes[joining] = node.NewFromGenesisSet(joining, d.genesis, d.params.Node, d.logger, d.step)

	recipients := make([]name.Name, 0, len(d.nodes))
	for n := range d.nodes {
		if n == joining {
			continue
		}
		recipients = append(recipients, n)
		d.connections.Add(newPair(joining, n))
	}

	return Event{Kind: EventAddNode, Name: joining}.broadcastTo(recipients)
}

// dropNode kills a node, notifying its connected peers and severing its
// connections.
func (d *Driver) dropNode(leaving name.Name) []message.Message {
	if _, exists := d.nodes[leaving]; !exists {
		return nil
	}

	var recipients []name.Name
	for n := range d.nodes {
		if n != leaving && d.connections.Contains(newPair(n, leaving)) {
			recipients = append(recipients, n)
		}
	}

	delete(d.nodes, leaving)
	for other := range d.nodes {
		d.connections.Remove(newPair(other, leaving))
		d.disconnected.Remove(newPair(other, leaving))
	}

	return Event{Kind: EventRemoveNode, Name: leaving}.broadcastTo(recipients)
}

// shutdownNode is the driver's reaction to a node observing its own
// isolation: it is removed exactly like a driver-initiated drop.
func (d *Driver) shutdownNode(n name.Name) []message.Message {
	d.logger.Info("node shutting down", "name", n.String())
	return d.dropNode(n)
}

// injectConnectivityChurn samples a random disconnect and attempts
// reconnects for pending disconnected pairs.
func (d *Driver) injectConnectivityChurn() {
	probs := d.params.ProbabilitiesFor(d.phase)
	var toSend []message.Message

	if d.rng.WithProbability(probs.Disconnect) {
		toSend = append(toSend, d.disconnectRandomPair()...)
	}

	for _, p := range sortedPairs(d.disconnected) {
		if d.rng.WithProbability(probs.Reconnect) {
			toSend = append(toSend, d.reconnectPair(p)...)
		}
	}

	d.network.Send(d.step, toSend)
}

func (d *Driver) disconnectRandomPair() []message.Message {
	names := xset.Sorted(d.liveNames())
	if len(names) < 2 {
		return nil
	}
	idxs := d.rng.Sample(len(names), 2)
	if len(idxs) != 2 {
		return nil
	}
	p := newPair(names[idxs[0]], names[idxs[1]])
	if d.disconnected.Contains(p) {
		return nil
	}

	d.connections.Remove(p)
	d.disconnected.Add(p)

	return []message.Message{
		{Sender: p.lower, Recipient: p.higher, Content: message.Content{Kind: message.KindDisconnect}},
		{Sender: p.higher, Recipient: p.lower, Content: message.Content{Kind: message.KindDisconnect}},
	}
}

func (d *Driver) reconnectPair(p pair) []message.Message {
	d.disconnected.Remove(p)
	d.connections.Add(p)

	return []message.Message{
		{Sender: p.lower, Recipient: p.higher, Content: message.Content{Kind: message.KindConnect}},
		{Sender: p.higher, Recipient: p.lower, Content: message.Content{Kind: message.KindConnect}},
	}
}

// messageAllowed implements the driver's link-layer view: gossip messages
// require both directions of the link to be up; Disconnect always gets
// through; NodeJoined/Connect require the pair to already be marked
// connected.
func (d *Driver) messageAllowed(m message.Message) bool {
	switch m.Content.Kind {
	case message.KindDisconnect:
		return true
	case message.KindNodeJoined, message.KindConnect:
		return d.connections.Contains(newPair(m.Sender, m.Recipient))
	default:
		return d.connections.Contains(newPair(m.Sender, m.Recipient))
	}
}
