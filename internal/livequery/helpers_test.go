package livequery

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/livequery/internal/predicate"
	"github.com/syntrixbase/livequery/internal/storage/memory"
	"github.com/syntrixbase/livequery/pkg/model"
)

var byID = []model.Order{{Field: "id", Direction: model.Asc, Type: model.TypeString}}

var byRank = []model.Order{
	{Field: "rank", Direction: model.Asc, Type: model.TypeNumber},
	{Field: "id", Direction: model.Asc, Type: model.TypeString},
}

func record(i int) model.Document {
	return model.Document{"id": fmt.Sprintf("r%02d", i), "rank": i * 10, "group": "a"}
}

// newFixture returns a manager over a memory store seeded with n records
// r00..r(n-1), rank = 10*i.
func newFixture(t *testing.T, n int, opts ...Option) (*Manager, *memory.Store) {
	t.Helper()
	store, err := memory.New()
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, store.InsertOne(ctx, record(i)))
	}
	compiler, err := predicate.NewCompiler()
	require.NoError(t, err)
	return NewManager(store, compiler, opts...), store
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func listen(sub *Subscription) *recorder {
	r := &recorder{}
	sub.OnEvent(func(e Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

// take returns the events received since the last call.
func (r *recorder) take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func docIDs(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.GetID()
	}
	return out
}

// describe renders events compactly: data and deleteItem carry ids only.
func describe(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		switch e.Kind {
		case EventData:
			out[i] = fmt.Sprintf("data%v", docIDs(e.Data))
		case EventDeleteItem:
			out[i] = "delete:" + e.Item.GetID()
		default:
			out[i] = e.String()
		}
	}
	return out
}

func subscribe(t *testing.T, m *Manager, q model.Query, order []model.Order, pageSize int) (*Subscription, *recorder) {
	t.Helper()
	sub, err := m.Subscribe(q, order, pageSize)
	require.NoError(t, err)
	return sub, listen(sub)
}

func advance(t *testing.T, sub *Subscription, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		require.NoError(t, sub.Advance(context.Background()))
	}
}

// storeIDs returns the ids of every store record matching q.
func storeIDs(t *testing.T, store Store, q model.Query) []string {
	t.Helper()
	docs, err := store.Read(context.Background(), q, byID, 0, 0)
	require.NoError(t, err)
	return docIDs(docs)
}
