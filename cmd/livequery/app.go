package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/syntrixbase/livequery/internal/changefeed"
	"github.com/syntrixbase/livequery/internal/comparator"
	"github.com/syntrixbase/livequery/internal/config"
	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/internal/logging"
	"github.com/syntrixbase/livequery/internal/predicate"
	"github.com/syntrixbase/livequery/internal/pubsub"
	pubsubmem "github.com/syntrixbase/livequery/internal/pubsub/memory"
	pubsubnats "github.com/syntrixbase/livequery/internal/pubsub/nats"
	"github.com/syntrixbase/livequery/internal/storage"
	"github.com/syntrixbase/livequery/internal/writer"
)

// app is the wired process: store, manager and, when configured, the
// change feed and the single-writer queue.
type app struct {
	cfg      *config.Config
	store    storage.Store
	manager  *livequery.Manager
	writer   *writer.Queue
	provider pubsub.Provider
	feed     *changefeed.Publisher
	origin   string
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.ConfigDir, opts.DataDir)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Console.Level = "debug"
		cfg.Logging.File.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return nil, err
	}

	tag, err := cfg.Storage.Language()
	if err != nil {
		return nil, err
	}
	compiler, err := predicate.NewCompiler()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, origin: changefeed.NewOrigin()}

	a.store, err = storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	managerOpts := []livequery.Option{
		livequery.WithLogger(slog.Default()),
		livequery.WithComparatorOptions(comparator.WithLocale(tag)),
		livequery.WithDefaultPageSize(cfg.Cache.DefaultPageSize),
		livequery.WithMaxPageSize(cfg.Cache.MaxPageSize),
	}

	if cfg.ChangeFeed.Enabled {
		if err := a.openFeed(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
		managerOpts = append(managerOpts, livequery.WithChangeNotifier(a.feed))
	}

	a.manager = livequery.NewManager(a.store, compiler, managerOpts...)
	if cfg.Cache.WriterQueue > 0 {
		a.writer = writer.New(a.manager, cfg.Cache.WriterQueue)
	}

	slog.Debug("Application ready",
		"backend", cfg.Storage.Backend,
		"locale", tag.String(),
		"changefeed", cfg.ChangeFeed.Enabled,
		"origin", a.origin,
	)
	return a, nil
}

func (a *app) openFeed(ctx context.Context) error {
	feedCfg := a.cfg.ChangeFeed

	switch feedCfg.Provider {
	case config.FeedProviderMemory:
		a.provider = pubsubmem.New()
	case config.FeedProviderNATS:
		a.provider = pubsubnats.NewProvider(feedCfg.URL)
	default:
		return fmt.Errorf("unknown changefeed provider: %q", feedCfg.Provider)
	}
	if c, ok := a.provider.(pubsub.Connectable); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	pub, err := a.provider.NewPublisher(pubsub.PublisherOptions{
		StreamName:    feedCfg.StreamName,
		SubjectPrefix: feedCfg.SubjectPrefix,
		RetryAttempts: feedCfg.RetryAttempts,
		Storage:       feedCfg.StorageType(),
	})
	if err != nil {
		return fmt.Errorf("create change publisher: %w", err)
	}
	a.feed = changefeed.NewPublisher(pub, a.origin)
	return nil
}

// follower returns a Follower replaying remote changes into the manager,
// or nil when the change feed is disabled.
func (a *app) follower() (*changefeed.Follower, error) {
	if a.provider == nil {
		return nil, nil
	}
	feedCfg := a.cfg.ChangeFeed
	consumer, err := a.provider.NewConsumer(pubsub.ConsumerOptions{
		StreamName:     feedCfg.StreamName,
		FilterSubject:  feedCfg.SubjectPrefix + ".>",
		ChannelBufSize: feedCfg.BufferSize,
		Storage:        feedCfg.StorageType(),
	})
	if err != nil {
		return nil, fmt.Errorf("create change consumer: %w", err)
	}
	return changefeed.NewFollower(consumer, a.manager, a.origin, slog.Default()), nil
}

// mutator is where insert, update and remove go.
func (a *app) mutator() writer.Target {
	if a.writer != nil {
		return a.writer
	}
	return a.manager
}

// Close releases everything in reverse order of creation.
func (a *app) Close(ctx context.Context) {
	if a.writer != nil {
		a.writer.Close()
	}
	if a.manager != nil {
		a.manager.Close()
	}
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			slog.Warn("Failed to close change publisher", "error", err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			slog.Warn("Failed to close pubsub provider", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}
	if err := logging.Shutdown(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to close log files:", err)
	}
}
