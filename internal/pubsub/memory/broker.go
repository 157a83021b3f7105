package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/livequery/internal/pubsub"
)

// broker routes published messages to the subscriptions whose pattern
// matches. Publishing blocks while a matching subscriber's buffer is full.
type broker struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	closed        atomic.Bool
}

type subscription struct {
	pattern string
	msgCh   chan pubsub.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

func newBroker() *broker {
	return &broker{subscriptions: make(map[string]*subscription)}
}

func (b *broker) publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrEngineClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for pattern, sub := range b.subscriptions {
		if !matchSubject(pattern, subject) {
			continue
		}
		msg := &message{
			data:         append([]byte(nil), data...),
			subject:      subject,
			timestamp:    time.Now(),
			numDelivered: 1,
			sub:          sub,
		}
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.ctx.Done():
		}
	}
	return nil
}

// subscribe registers pattern and returns its channel and an unsubscribe
// function that closes it.
func (b *broker) subscribe(ctx context.Context, pattern string, bufSize int) (<-chan pubsub.Message, func(), error) {
	if b.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions[pattern] != nil {
		return nil, nil, ErrPatternSubscribed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		pattern: pattern,
		msgCh:   make(chan pubsub.Message, bufSize),
		ctx:     subCtx,
		cancel:  cancel,
	}
	b.subscriptions[pattern] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.subscriptions[pattern] == sub {
			delete(b.subscriptions, pattern)
			cancel()
			close(sub.msgCh)
		}
	}
	return sub.msgCh, unsubscribe, nil
}

func (b *broker) close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.cancel()
		close(sub.msgCh)
	}
	b.subscriptions = nil
	return nil
}
