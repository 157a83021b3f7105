package pubsub

import "time"

// StorageType defines the storage backend for streams.
type StorageType int

const (
	// MemoryStorage keeps stream data in memory (default).
	MemoryStorage StorageType = iota
	// FileStorage keeps stream data on disk.
	FileStorage
)

// ParseStorage maps "memory" and "file" to a StorageType.
func ParseStorage(s string) (StorageType, bool) {
	switch s {
	case "", "memory":
		return MemoryStorage, true
	case "file":
		return FileStorage, true
	default:
		return MemoryStorage, false
	}
}

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the stream to publish to. When set, the stream is
	// created if missing.
	StreamName string

	// SubjectPrefix is prepended to all subjects.
	SubjectPrefix string

	// RetryAttempts is the number of publish retries. 0 means none.
	RetryAttempts int

	// Storage is the storage type for the stream.
	Storage StorageType

	// OnPublish is called after each publish attempt.
	OnPublish func(subject string, err error, latency time.Duration)
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// StreamName is the stream to consume from.
	StreamName string

	// ConsumerName is the durable consumer name. An empty name creates an
	// ephemeral consumer that only sees messages published after Subscribe.
	ConsumerName string

	// FilterSubject filters messages by subject pattern. Defaults to
	// "<StreamName>.>".
	FilterSubject string

	// ChannelBufSize is the buffer size of the message channel.
	ChannelBufSize int

	// Storage is the storage type for the stream.
	Storage StorageType
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}

// JoinSubject prefixes subject with prefix, if any.
func JoinSubject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}
