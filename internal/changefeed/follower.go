package changefeed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/internal/pubsub"
	"github.com/syntrixbase/livequery/pkg/model"
)

// Applier fans remote mutations out to local subscriptions.
// *livequery.Manager implements it.
type Applier interface {
	ApplyInsert(doc model.Document)
	ApplyRemove(doc model.Document)
	ApplyUpdate(before, after model.Document)
}

var _ Applier = (*livequery.Manager)(nil)

// Follower replays changes published by other processes into a local
// Applier. Changes stamped with its own origin are acknowledged and
// dropped.
type Follower struct {
	consumer pubsub.Consumer
	target   Applier
	origin   string
	logger   *slog.Logger
}

// NewFollower creates a Follower. A nil logger means slog.Default().
func NewFollower(consumer pubsub.Consumer, target Applier, origin string, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{
		consumer: consumer,
		target:   target,
		origin:   origin,
		logger:   logger.With("component", "changefeed"),
	}
}

// Run consumes until ctx is done or the consumer channel closes.
func (f *Follower) Run(ctx context.Context) error {
	msgCh, err := f.consumer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	f.logger.Info("Change feed follower started", "origin", f.origin)
	for msg := range msgCh {
		f.handle(msg)
	}
	f.logger.Info("Change feed follower stopped")
	return nil
}

func (f *Follower) handle(msg pubsub.Message) {
	change, err := Decode(msg.Data())
	if err != nil {
		f.logger.Error("Invalid change payload", "subject", msg.Subject(), "error", err)
		ChangesReceived.WithLabelValues("unknown", "invalid").Inc()
		if termErr := msg.Term(); termErr != nil {
			f.logger.Warn("Failed to terminate message", "error", termErr)
		}
		return
	}

	op := string(change.Op)
	if change.Origin == f.origin {
		ChangesReceived.WithLabelValues(op, "skipped").Inc()
		f.ack(msg)
		return
	}

	switch change.Op {
	case livequery.OpInsert:
		f.target.ApplyInsert(change.After)
	case livequery.OpRemove:
		f.target.ApplyRemove(change.Before)
	case livequery.OpUpdate:
		f.target.ApplyUpdate(change.Before, change.After)
	}
	ChangesReceived.WithLabelValues(op, "applied").Inc()
	f.logger.Debug("Applied remote change", "op", op, "origin", change.Origin)
	f.ack(msg)
}

func (f *Follower) ack(msg pubsub.Message) {
	if err := msg.Ack(); err != nil {
		f.logger.Warn("Failed to ack message", "subject", msg.Subject(), "error", err)
	}
}
