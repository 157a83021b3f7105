package memory

import (
	"sync"
	"time"

	"github.com/syntrixbase/livequery/internal/pubsub"
)

// message implements pubsub.Message. The first of Ack, Nak or Term wins;
// later calls are no-ops.
type message struct {
	data         []byte
	subject      string
	timestamp    time.Time
	numDelivered uint64
	sub          *subscription

	mu      sync.Mutex
	settled bool
}

func (m *message) Data() []byte    { return m.data }
func (m *message) Subject() string { return m.subject }

func (m *message) Ack() error {
	m.settle()
	return nil
}

// Nak requeues the message on its subscription without blocking. It is
// dropped when the buffer is full or the subscription is gone.
func (m *message) Nak() error {
	if !m.settle() {
		return nil
	}

	redelivery := &message{
		data:         m.data,
		subject:      m.subject,
		timestamp:    m.timestamp,
		numDelivered: m.numDelivered + 1,
		sub:          m.sub,
	}

	// The channel may be closed by a concurrent unsubscribe.
	defer func() { _ = recover() }()
	select {
	case <-m.sub.ctx.Done():
	case m.sub.msgCh <- redelivery:
	default:
	}
	return nil
}

func (m *message) Term() error {
	m.settle()
	return nil
}

func (m *message) Metadata() (pubsub.MessageMetadata, error) {
	return pubsub.MessageMetadata{
		NumDelivered: m.numDelivered,
		Timestamp:    m.timestamp,
		Subject:      m.subject,
	}, nil
}

// settle marks the message handled and reports whether this call did it.
func (m *message) settle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return false
	}
	m.settled = true
	return true
}
