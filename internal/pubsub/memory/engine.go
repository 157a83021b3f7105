package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/livequery/internal/pubsub"
)

var _ pubsub.Provider = (*Engine)(nil)

// Engine is an in-process pubsub.Provider. Stream names and storage
// options are accepted and ignored.
type Engine struct {
	broker *broker
}

// New creates an in-memory engine.
func New() *Engine {
	return &Engine{broker: newBroker()}
}

// NewPublisher creates a Publisher on the engine.
func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &publisher{broker: e.broker, opts: opts}, nil
}

// NewConsumer creates a Consumer on the engine.
func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &consumer{broker: e.broker, opts: opts}, nil
}

// Close shuts down the engine and closes every consumer channel.
func (e *Engine) Close() error {
	return e.broker.close()
}

func (e *Engine) IsClosed() bool {
	return e.broker.closed.Load()
}

type publisher struct {
	broker *broker
	opts   pubsub.PublisherOptions
	closed atomic.Bool
}

func (p *publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}

	start := time.Now()
	full := pubsub.JoinSubject(p.opts.SubjectPrefix, subject)
	err := p.broker.publish(ctx, full, data)
	if p.opts.OnPublish != nil {
		p.opts.OnPublish(full, err, time.Since(start))
	}
	return err
}

func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}

type consumer struct {
	broker *broker
	opts   pubsub.ConsumerOptions
}

// Subscribe registers the consumer's filter subject. Without one it
// subscribes to "<stream>.>", or to every subject when no stream is named.
func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	pattern := c.opts.FilterSubject
	if pattern == "" {
		pattern = ">"
		if c.opts.StreamName != "" {
			pattern = c.opts.StreamName + ".>"
		}
	}

	bufSize := c.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}

	msgCh, unsubscribe, err := c.broker.subscribe(ctx, pattern, bufSize)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return msgCh, nil
}
