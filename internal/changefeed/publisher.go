package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/internal/pubsub"
)

var _ livequery.ChangeNotifier = (*Publisher)(nil)

// Publisher forwards the Manager's persisted mutations to a pubsub stream.
type Publisher struct {
	pub    pubsub.Publisher
	origin string
	now    func() time.Time
}

// NewPublisher publishes changes tagged with origin on pub.
func NewPublisher(pub pubsub.Publisher, origin string) *Publisher {
	return &Publisher{pub: pub, origin: origin, now: time.Now}
}

// Origin returns the identity stamped on every published change.
func (p *Publisher) Origin() string {
	return p.origin
}

// Notify implements livequery.ChangeNotifier.
func (p *Publisher) Notify(ctx context.Context, change livequery.Change) error {
	c := Change{
		Origin:    p.origin,
		Op:        change.Op,
		Before:    change.Before,
		After:     change.After,
		Timestamp: p.now().UTC(),
	}
	data, err := Encode(c)
	if err != nil {
		ChangesPublished.WithLabelValues(string(change.Op), "invalid").Inc()
		return err
	}

	start := time.Now()
	err = p.pub.Publish(ctx, c.Subject(), data)
	PublishLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		ChangesPublished.WithLabelValues(string(change.Op), "error").Inc()
		return fmt.Errorf("publish %s change: %w", change.Op, err)
	}
	ChangesPublished.WithLabelValues(string(change.Op), "ok").Inc()
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.pub.Close()
}
