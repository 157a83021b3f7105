package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/livequery/internal/pubsub"
)

type publisher struct {
	js   JetStream
	opts pubsub.PublisherOptions
}

// NewPublisher creates a Publisher backed by JetStream. When a stream name
// is given, the stream is created or updated to cover the subject prefix.
func NewPublisher(ctx context.Context, js JetStream, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}

	if opts.StreamName != "" {
		prefix := opts.SubjectPrefix
		if prefix == "" {
			prefix = opts.StreamName
		}
		if _, err := js.CreateOrUpdateStream(ctx, streamConfig(opts.StreamName, prefix+".>", opts.Storage)); err != nil {
			return nil, fmt.Errorf("failed to ensure stream: %w", err)
		}
	}

	return &publisher{js: js, opts: opts}, nil
}

func (p *publisher) Publish(ctx context.Context, subject string, data []byte) error {
	start := time.Now()
	full := pubsub.JoinSubject(p.opts.SubjectPrefix, subject)

	var publishOpts []jetstream.PublishOpt
	if p.opts.RetryAttempts > 0 {
		publishOpts = append(publishOpts, jetstream.WithRetryAttempts(p.opts.RetryAttempts))
	}

	_, err := p.js.Publish(ctx, full, data, publishOpts...)
	if p.opts.OnPublish != nil {
		p.opts.OnPublish(full, err, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", full, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the Provider.
func (p *publisher) Close() error {
	return nil
}

func streamConfig(name, subject string, storage pubsub.StorageType) jetstream.StreamConfig {
	cfg := jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  jetstream.MemoryStorage,
	}
	if storage == pubsub.FileStorage {
		cfg.Storage = jetstream.FileStorage
	}
	return cfg
}
