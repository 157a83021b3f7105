// Package writer serializes mutations against a Manager so that concurrent
// callers observe them as if issued one at a time.
package writer

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/syntrixbase/livequery/pkg/model"
)

// ErrClosed is returned by operations submitted after Close.
var ErrClosed = errors.New("writer queue closed")

// QueueDepth tracks operations waiting for the writer goroutine.
var QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "livequery_writer_queue_depth",
	Help: "Number of mutations waiting in the single-writer queue",
})

func init() {
	prometheus.MustRegister(QueueDepth)
}

// Target is the mutation surface being serialized. *livequery.Manager
// implements it.
type Target interface {
	Insert(ctx context.Context, doc model.Document) error
	Remove(ctx context.Context, q model.Query) error
	Update(ctx context.Context, q model.Query, doc model.Document) error
}

type op struct {
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
}

// Queue executes mutations on one goroutine, strictly in submission order.
type Queue struct {
	target Target
	ops    chan *op

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Target = (*Queue)(nil)

// New starts a Queue in front of target. bufSize bounds how many operations
// may wait before submitters block.
func New(target Target, bufSize int) *Queue {
	if bufSize < 0 {
		bufSize = 0
	}
	q := &Queue{
		target: target,
		ops:    make(chan *op, bufSize),
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *Queue) Insert(ctx context.Context, doc model.Document) error {
	return q.submit(ctx, func(ctx context.Context) error {
		return q.target.Insert(ctx, doc)
	})
}

func (q *Queue) Remove(ctx context.Context, query model.Query) error {
	return q.submit(ctx, func(ctx context.Context) error {
		return q.target.Remove(ctx, query)
	})
}

func (q *Queue) Update(ctx context.Context, query model.Query, doc model.Document) error {
	return q.submit(ctx, func(ctx context.Context) error {
		return q.target.Update(ctx, query, doc)
	})
}

// Close stops accepting operations, runs those already queued and waits
// for the writer goroutine to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// submit enqueues run and waits for its result. When ctx ends first the
// caller gets ErrCanceled; an operation that has not started yet is then
// skipped.
func (q *Queue) submit(ctx context.Context, run func(ctx context.Context) error) error {
	o := &op{ctx: ctx, run: run, result: make(chan error, 1)}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrClosed
	}
	select {
	case q.ops <- o:
		QueueDepth.Inc()
	case <-ctx.Done():
		q.mu.RUnlock()
		return model.ErrCanceled
	}
	q.mu.RUnlock()

	select {
	case err := <-o.result:
		return err
	case <-ctx.Done():
		return model.ErrCanceled
	}
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for o := range q.ops {
		QueueDepth.Dec()
		if o.ctx.Err() != nil {
			o.result <- model.ErrCanceled
			continue
		}
		o.result <- o.run(o.ctx)
	}
}
