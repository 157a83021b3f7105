package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/internal/predicate"
	"github.com/syntrixbase/livequery/internal/storage/memory"
	"github.com/syntrixbase/livequery/pkg/model"
)

// recordingTarget logs calls and detects overlapping execution.
type recordingTarget struct {
	mu      sync.Mutex
	calls   []string
	active  int
	overlap bool
	gate    chan struct{}
	err     error
}

func (r *recordingTarget) enter(call string) error {
	r.mu.Lock()
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.calls = append(r.calls, call)
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return r.err
}

func (r *recordingTarget) Insert(_ context.Context, doc model.Document) error {
	return r.enter("insert " + doc.GetID())
}

func (r *recordingTarget) Remove(_ context.Context, q model.Query) error {
	return r.enter(fmt.Sprintf("remove %v", q.Filters[0].Value))
}

func (r *recordingTarget) Update(_ context.Context, q model.Query, doc model.Document) error {
	return r.enter(fmt.Sprintf("update %v", q.Filters[0].Value))
}

func (r *recordingTarget) snapshot() ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), r.overlap
}

func TestQueue_SubmissionOrder(t *testing.T) {
	target := &recordingTarget{}
	q := New(target, 4)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Insert(ctx, model.Document{"id": "a"}))
	require.NoError(t, q.Update(ctx, model.ByID("a"), model.Document{"id": "a"}))
	require.NoError(t, q.Remove(ctx, model.ByID("a")))

	calls, _ := target.snapshot()
	assert.Equal(t, []string{"insert a", "update a", "remove a"}, calls)
}

func TestQueue_Serializes(t *testing.T) {
	target := &recordingTarget{}
	q := New(target, 8)
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, q.Insert(context.Background(), model.Document{"id": fmt.Sprintf("d%02d", i)}))
		}(i)
	}
	wg.Wait()

	calls, overlap := target.snapshot()
	assert.Len(t, calls, 50)
	assert.False(t, overlap)
}

func TestQueue_PropagatesErrors(t *testing.T) {
	target := &recordingTarget{err: model.ErrNotFound}
	q := New(target, 0)
	defer q.Close()

	assert.ErrorIs(t, q.Remove(context.Background(), model.ByID("x")), model.ErrNotFound)
}

func TestQueue_CanceledWhileWaiting(t *testing.T) {
	target := &recordingTarget{gate: make(chan struct{})}
	q := New(target, 4)

	go func() { _ = q.Insert(context.Background(), model.Document{"id": "slow"}) }()
	require.Eventually(t, func() bool {
		calls, _ := target.snapshot()
		return len(calls) == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- q.Insert(ctx, model.Document{"id": "queued"}) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, model.ErrCanceled)
	case <-time.After(time.Second):
		t.Fatal("canceled submit did not return")
	}

	close(target.gate)
	q.Close()

	// The canceled operation never reached the target.
	calls, _ := target.snapshot()
	assert.Equal(t, []string{"insert slow"}, calls)
}

func TestQueue_Close(t *testing.T) {
	target := &recordingTarget{}
	q := New(target, 2)
	q.Close()
	q.Close()

	err := q.Insert(context.Background(), model.Document{"id": "late"})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestQueue_FrontsManager(t *testing.T) {
	store, err := memory.New()
	require.NoError(t, err)
	compiler, err := predicate.NewCompiler()
	require.NoError(t, err)
	m := livequery.NewManager(store, compiler)
	q := New(m, 16)
	defer q.Close()

	order := []model.Order{{Field: "id", Direction: model.Asc, Type: model.TypeString}}
	sub, err := m.Subscribe(model.Query{}, order, 5)
	require.NoError(t, err)
	require.NoError(t, sub.Run(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, q.Insert(context.Background(), model.Document{"id": fmt.Sprintf("d%02d", i)}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, sub.Count())
	assert.Equal(t, 20, sub.Cursor())
	assert.Equal(t, 20, store.Len())
}
