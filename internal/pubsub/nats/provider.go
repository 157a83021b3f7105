package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/syntrixbase/livequery/internal/pubsub"
)

var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// natsConnect dials url. Swapped out in tests.
var natsConnect = func(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("livequery"))
}

// jetStreamFactory creates the JetStream context. Swapped out in tests.
var jetStreamFactory = NewJetStream

// Provider implements pubsub.Provider on a NATS connection it owns.
type Provider struct {
	url string
	nc  *nats.Conn
	js  JetStream
}

// NewProvider creates an unconnected provider for url.
func NewProvider(url string) *Provider {
	return &Provider{url: url}
}

// Connect dials the server and initializes JetStream.
func (p *Provider) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nc, err := natsConnect(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := jetStreamFactory(nc)
	if err != nil {
		if nc != nil {
			nc.Close()
		}
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.nc, p.js = nc, js
	slog.Info("Connected to NATS", "url", p.url)
	return nil
}

func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewPublisher(context.Background(), p.js, opts)
}

func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewConsumer(p.js, opts)
}

// Close drops the connection. It is safe to call on an unconnected provider.
func (p *Provider) Close() error {
	if p.nc != nil {
		slog.Info("Closing NATS connection", "url", p.url)
		p.nc.Close()
	}
	p.nc, p.js = nil, nil
	return nil
}
