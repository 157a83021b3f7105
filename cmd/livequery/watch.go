package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/pkg/model"
	"golang.org/x/sync/errgroup"
)

const defaultOrder = "id:asc:string"

type watchOptions struct {
	Filter   string
	Order    string
	PageSize int
	Follow   bool
	Metrics  bool
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the events of one live query as JSON lines",
		Long: `Subscribe to a query and page through every matching document.

Each event is written to stdout as a single JSON object: {"count":n},
{"data":[...]}, {"deleteItem":{...}} or {"exhausted":bool}. With --follow
the subscription stays open and replays changes from the change feed until
interrupted.`,
		Example: `  livequery watch --order 'rank:desc:number,id:asc:string' --page-size 20
  livequery watch --filter '{"filters":[{"field":"group","op":"==","value":"a"}]}' --follow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "query as JSON, e.g. {\"filters\":[...],\"or\":[...]}")
	cmd.Flags().StringVar(&opts.Order, "order", defaultOrder, "sort keys as field:dir:type, comma separated")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "documents per data event (0 uses cache.default_page_size)")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep the subscription open and apply remote changes")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "serve Prometheus metrics while following")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, root *rootOptions, opts *watchOptions) error {
	query, err := parseQuery(opts.Filter)
	if err != nil {
		return err
	}
	order, err := model.ParseOrder(opts.Order)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	sub, err := a.manager.Subscribe(query, order, opts.PageSize)
	if err != nil {
		return err
	}
	defer a.manager.Unsubscribe(sub)

	// Events arrive from Run and, when following, from the feed goroutine.
	enc := json.NewEncoder(out)
	var mu sync.Mutex
	sub.OnEvent(func(e livequery.Event) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(e); err != nil {
			slog.Warn("Failed to write event", "event", e.String(), "error", err)
		}
	})

	if !opts.Follow {
		return sub.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	follower, err := a.follower()
	if err != nil {
		return err
	}
	if follower != nil {
		g.Go(func() error { return follower.Run(gctx) })
	} else {
		slog.Warn("Change feed is disabled; only local changes are observed")
	}

	if opts.Metrics || a.cfg.Metrics.Enabled {
		srv := newMetricsServer(a.cfg.Metrics.Addr, a.cfg.Metrics.Path)
		g.Go(func() error {
			slog.Info("Serving metrics", "addr", srv.Addr, "path", a.cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if err := sub.Run(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, model.ErrCanceled) {
		return nil
	}
	return err
}

func newMetricsServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
