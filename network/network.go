// Package network models an in-process, per-pair delay queue with
// probabilistic in-order delivery, standing in for a real transport.
package network

import (
	"fmt"
	"math"
	"sort"

	"github.com/michaelsproul/ewok/internal/bag"
	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/name"

	"github.com/luxfi/log"
)

type connKey struct {
	sender    name.Name
	recipient name.Name
}

// Network is the delay-queue model: per (sender, recipient) ordered pair,
// messages are held by the step they were sent at until delivered.
type Network struct {
	maxDelay    uint64
	probDeliver float64
	messages    map[connKey]map[uint64][]message.Message
	logger      log.Logger
}

// New returns a Network with the given maximum guaranteed-delivery delay,
// in steps.
func New(maxDelay uint64, logger log.Logger) *Network {
	return &Network{
		maxDelay:    maxDelay,
		probDeliver: deliveryProbability(maxDelay),
		messages:    make(map[connKey]map[uint64][]message.Message),
		logger:      logger,
	}
}

// deliveryProbability solves p_drop = (1-p)^maxDelay for p, so that a
// message undelivered after maxDelay independent per-step trials has
// roughly a 5% chance of still being stuck (ignoring the in-order
// coupling between consecutive sends on the same pair, which makes this
// an approximation rather than an exact bound).
func deliveryProbability(maxDelay uint64) float64 {
	const pDrop = 0.05
	if maxDelay == 0 {
		return 1
	}
	return 1 - math.Pow(pDrop, 1/float64(maxDelay))
}

// Send enqueues messages as having been sent at step.
func (n *Network) Send(step uint64, messages []message.Message) {
	counts := bag.New[name.Name]()
	for _, m := range messages {
		counts.Add(m.Sender)
		key := connKey{sender: m.Sender, recipient: m.Recipient}
		conn, ok := n.messages[key]
		if !ok {
			conn = make(map[uint64][]message.Message)
			n.messages[key] = conn
		}
		conn[step] = append(conn[step], m)
	}
	for _, sender := range sortedNames(counts.Keys()) {
		n.logger.Info(sendLine(sender, counts.Count(sender)))
	}
}

// sendLine renders a per-sender sent-message count in the exact format the
// original analysis tooling's SENT_RE expects.
func sendLine(sender name.Name, count int) string {
	return fmt.Sprintf("Network: sent %d messages from %s", count, sender.Short())
}

// Receive returns the messages delivered at step, across every pair,
// honouring in-order delivery within each pair.
func (n *Network) Receive(rng *randsrc.Source, step uint64) []message.Message {
	startStep := uint64(0)
	if step > n.maxDelay {
		startStep = step - n.maxDelay
	}

	var delivered []message.Message
	for key, conn := range n.messages {
		delivered = append(delivered, receiveFromConn(rng, conn, n.probDeliver, n.maxDelay, startStep, step)...)
		if len(conn) == 0 {
			delete(n.messages, key)
		}
	}
	return delivered
}

// receiveFromConn delivers due messages from a single pair's queue,
// in send order, stopping at the first step that doesn't fully drain so
// nothing from a later step jumps ahead of it.
func receiveFromConn(rng *randsrc.Source, conn map[uint64][]message.Message, probDeliver float64, maxDelay, startStep, endStep uint64) []message.Message {
	var delivered []message.Message

	steps := make([]uint64, 0, len(conn))
	for s := range conn {
		if s >= startStep && s < endStep {
			steps = append(steps, s)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })

	for _, stepSent := range steps {
		msgs := conn[stepSent]

		if stepSent == startStep && endStep >= maxDelay {
			// Force delivery: this message's deadline has arrived.
			delivered = append(delivered, msgs...)
			delete(conn, stepSent)
			continue
		}

		numDelivered := 0
		for numDelivered < len(msgs) && rng.WithProbability(probDeliver) {
			numDelivered++
		}

		delivered = append(delivered, msgs[:numDelivered]...)
		remaining := msgs[numDelivered:]
		if len(remaining) > 0 {
			conn[stepSent] = remaining
			break
		}
		delete(conn, stepSent)
	}

	return delivered
}

// QueueIsEmpty reports whether any message remains undelivered.
func (n *Network) QueueIsEmpty() bool {
	return n.MessagesInQueue() == 0
}

// MessagesInQueue returns the total number of messages still in flight.
func (n *Network) MessagesInQueue() int {
	total := 0
	for _, conn := range n.messages {
		for _, msgs := range conn {
			total += len(msgs)
		}
	}
	return total
}

func sortedNames(names []name.Name) []name.Name {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
