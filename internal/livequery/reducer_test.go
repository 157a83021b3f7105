package livequery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/livequery/pkg/model"
)

func TestReduce(t *testing.T) {
	a := model.Document{"id": "a"}
	b := model.Document{"id": "b"}
	c := model.Document{"id": "c"}

	snap := Reduce(nil,
		CountEvent(3),
		DataEvent(a, b),
		DataEvent(c),
		ExhaustedEvent(true),
		CountEvent(2),
		DeleteEvent(model.Document{"id": "b", "stale": true}),
	)

	assert.True(t, snap.Exhausted)
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, []string{"a", "c"}, docIDs(snap.Items))
}

func TestReduce_Empty(t *testing.T) {
	snap := Reduce(nil)
	assert.False(t, snap.Exhausted)
	assert.Equal(t, 0, snap.Count)
	assert.Empty(t, snap.Items)
}

func TestReducer_DeleteRemovesFirstMatchOnly(t *testing.T) {
	sameName := func(x, y model.Document) bool { return x["name"] == y["name"] }
	r := NewReducer(sameName)
	r.Apply(DataEvent(
		model.Document{"id": "1", "name": "dup"},
		model.Document{"id": "2", "name": "dup"},
	))
	snap := r.Apply(DeleteEvent(model.Document{"name": "dup"}))
	assert.Equal(t, []string{"2"}, docIDs(snap.Items))

	snap = r.Apply(DeleteEvent(model.Document{"name": "missing"}))
	assert.Equal(t, []string{"2"}, docIDs(snap.Items))
}

func TestReducer_SnapshotsAreImmutable(t *testing.T) {
	r := NewReducer(nil)
	first := r.Apply(DataEvent(model.Document{"id": "a"}, model.Document{"id": "b"}))
	second := r.Apply(DeleteEvent(model.Document{"id": "a"}))
	third := r.Apply(DataEvent(model.Document{"id": "c"}))

	assert.Equal(t, []string{"a", "b"}, docIDs(first.Items))
	assert.Equal(t, []string{"b"}, docIDs(second.Items))
	assert.Equal(t, []string{"b", "c"}, docIDs(third.Items))
	assert.Equal(t, third, r.Snapshot())
}

func TestEqualByID(t *testing.T) {
	assert.True(t, EqualByID(model.Document{"id": "a", "v": 1}, model.Document{"id": "a", "v": 2}))
	assert.False(t, EqualByID(model.Document{"id": "a"}, model.Document{"id": "b"}))
	assert.True(t, EqualByID(model.Document{"v": 1}, model.Document{"v": 1}))
	assert.False(t, EqualByID(model.Document{"v": 1}, model.Document{"v": 2}))
}

func TestReducer_FollowsSubscription(t *testing.T) {
	m, store := newFixture(t, 12)
	sub, err := m.Subscribe(model.Query{}, byRank, 5)
	require.NoError(t, err)
	r := NewReducer(EqualByID)
	sub.OnEvent(func(e Event) { r.Apply(e) })

	ctx := context.Background()
	require.NoError(t, sub.Run(ctx))
	require.NoError(t, m.Remove(ctx, model.ByID("r04")))
	require.NoError(t, m.Insert(ctx, model.Document{"id": "n1", "rank": 1}))
	require.NoError(t, m.Update(ctx, model.ByID("r07"), model.Document{"id": "r07", "rank": 999}))

	assertConverged(t, store, sub, r.Snapshot())
	assert.Equal(t, "r07", r.Snapshot().Items[len(r.Snapshot().Items)-1].GetID())
}
