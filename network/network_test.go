package network

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/logging"
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/name"
)

func testMessage(kind message.Kind) message.Message {
	return message.Message{
		Sender:    name.Name(0),
		Recipient: name.Name(1),
		Content:   message.Content{Kind: kind},
	}
}

func TestInOrderDeliveryDiffStep(t *testing.T) {
	connect := testMessage(message.KindConnect)
	disconnect := testMessage(message.KindDisconnect)

	maxDelay := uint64(20)
	startStep := uint64(45)
	endStep := startStep + maxDelay
	probDeliver := 0.5

	rng := randsrc.New(7)

	for i := 0; i < 50; i++ {
		conn := map[uint64][]message.Message{
			50: {connect},
			51: {disconnect},
		}

		delivered := receiveFromConn(rng, conn, probDeliver, maxDelay, startStep, endStep)
		if len(delivered) > 0 {
			assert.NotEqual(t, disconnect, delivered[0])
		}
	}
}

func TestInOrderDeliverySameStep(t *testing.T) {
	connect := testMessage(message.KindConnect)
	disconnect := testMessage(message.KindDisconnect)

	maxDelay := uint64(20)
	startStep := uint64(45)
	endStep := startStep + maxDelay
	probDeliver := 0.5

	rng := randsrc.New(11)

	for i := 0; i < 50; i++ {
		conn := map[uint64][]message.Message{
			50: {connect, disconnect},
		}

		delivered := receiveFromConn(rng, conn, probDeliver, maxDelay, startStep, endStep)
		if len(delivered) > 0 {
			assert.NotEqual(t, disconnect, delivered[0])
		}
	}
}

func TestNoMessageDeliveredBeyondMaxDelay(t *testing.T) {
	n := New(5, logging.NoLog{})
	rng := randsrc.New(1)

	n.Send(0, []message.Message{testMessage(message.KindVote)})

	var delivered []message.Message
	for step := uint64(1); step <= 5; step++ {
		delivered = append(delivered, n.Receive(rng, step)...)
	}
	assert.Len(t, delivered, 1)
	assert.True(t, n.QueueIsEmpty())
}
