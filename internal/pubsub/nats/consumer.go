package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/livequery/internal/pubsub"
)

// ephemeralInactivity is how long the server keeps an ephemeral consumer
// after its subscriber went away.
const ephemeralInactivity = 30 * time.Second

type consumer struct {
	js   JetStream
	opts pubsub.ConsumerOptions
}

// NewConsumer creates a Consumer backed by JetStream.
func NewConsumer(js JetStream, opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	return &consumer{js: js, opts: opts}, nil
}

// Subscribe ensures the stream and consumer exist and starts pushing
// messages into the returned channel until ctx is done.
func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	filter := c.opts.FilterSubject
	if filter == "" {
		filter = c.opts.StreamName + ".>"
	}

	if _, err := c.js.CreateOrUpdateStream(ctx, streamConfig(c.opts.StreamName, filter, c.opts.Storage)); err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	cfg := jetstream.ConsumerConfig{
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: filter,
	}
	if c.opts.ConsumerName != "" {
		cfg.Durable = c.opts.ConsumerName
	} else {
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
		cfg.InactiveThreshold = ephemeralInactivity
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgCh := make(chan pubsub.Message, c.opts.ChannelBufSize)

	// mu orders handler sends against the close of msgCh.
	var (
		mu      sync.RWMutex
		closing bool
	)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		mu.RLock()
		defer mu.RUnlock()
		if closing {
			_ = msg.Nak()
			return
		}
		select {
		case msgCh <- WrapMessage(msg):
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		close(msgCh)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	slog.Info("Consumer subscribed", "stream", c.opts.StreamName, "filter", filter)

	go func() {
		<-ctx.Done()
		cc.Stop()
		mu.Lock()
		closing = true
		close(msgCh)
		mu.Unlock()
		slog.Info("Consumer stopped", "stream", c.opts.StreamName)
	}()

	return msgCh, nil
}
