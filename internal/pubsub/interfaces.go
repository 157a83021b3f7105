// Package pubsub abstracts the message transport the change feed rides on.
package pubsub

import (
	"context"
	"io"
	"time"
)

// Message is a received message with acknowledgment controls.
type Message interface {
	// Data returns the raw payload.
	Data() []byte

	// Subject returns the subject the message was published to.
	Subject() string

	// Ack acknowledges successful processing.
	Ack() error

	// Nak signals processing failure, requesting redelivery.
	Nak() error

	// Term terminates the message. It is never redelivered.
	Term() error

	// Metadata returns delivery metadata.
	Metadata() (MessageMetadata, error)
}

// MessageMetadata contains delivery information about a message.
type MessageMetadata struct {
	NumDelivered uint64
	Timestamp    time.Time
	Subject      string
	Stream       string
	Consumer     string
}

// Publisher publishes messages to a stream.
type Publisher interface {
	// Publish sends data to subject. The configured prefix is prepended.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases resources.
	Close() error
}

// Consumer consumes messages from a stream.
type Consumer interface {
	// Subscribe starts consuming and returns a channel that is closed when
	// ctx is done. The caller must Ack, Nak or Term every message.
	Subscribe(ctx context.Context) (<-chan Message, error)
}

// Provider creates publishers and consumers over one broker.
type Provider interface {
	io.Closer

	NewPublisher(opts PublisherOptions) (Publisher, error)
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable is implemented by providers that must dial before use.
type Connectable interface {
	Connect(ctx context.Context) error
}
