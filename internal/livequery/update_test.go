package livequery

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/livequery/pkg/model"
)

// assertConverged checks that the folded view of a settled subscription
// holds every matching store record exactly once.
func assertConverged(t *testing.T, store Store, sub *Subscription, snap Snapshot) {
	t.Helper()
	want := storeIDs(t, store, sub.Query())
	got := docIDs(snap.Items)

	assert.True(t, snap.Exhausted, "snapshot not exhausted")
	assert.Equal(t, len(want), snap.Count, "count")
	assert.Equal(t, len(want), sub.Count(), "subscription count")
	assert.ElementsMatch(t, want, got)

	seen := make(map[string]bool, len(got))
	for _, id := range got {
		assert.False(t, seen[id], "record %s delivered twice", id)
		seen[id] = true
	}
}

func TestUpdate_BoundaryTransitions(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		newRank    int
		wantEvents []string
		wantCursor int
		wantNext   string
	}{
		{
			name:       "before to before",
			id:         "r02",
			newRank:    55,
			wantEvents: []string{"{count:30}", "delete:r02", "{count:31}", "data[r02]"},
			wantCursor: 10,
			wantNext:   dataRange(10, 19),
		},
		{
			name:       "before to after",
			id:         "r02",
			newRank:    155,
			wantEvents: []string{"{count:30}", "delete:r02", "{count:31}"},
			wantCursor: 9,
			wantNext:   "data[r10 r11 r12 r13 r14 r15 r02 r16 r17 r18]",
		},
		{
			name:       "after to before",
			id:         "r20",
			newRank:    35,
			wantEvents: []string{"{count:30}", "{count:31}", "data[r20]"},
			wantCursor: 11,
			wantNext:   dataRange(10, 19),
		},
		{
			name:       "after to after",
			id:         "r20",
			newRank:    255,
			wantEvents: []string{"{count:30}", "{count:31}"},
			wantCursor: 10,
			wantNext:   dataRange(10, 19),
		},
		{
			name:       "boundary in place",
			id:         "r09",
			newRank:    90,
			wantEvents: []string{"{count:30}", "delete:r09", "{count:31}"},
			wantCursor: 9,
			wantNext:   dataRange(9, 18),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, store := newFixture(t, 31)
			sub, rec := subscribe(t, m, model.Query{}, byRank, 10)
			red := NewReducer(EqualByID)
			sub.OnEvent(func(e Event) { red.Apply(e) })

			advance(t, sub, 2)
			rec.take()

			doc := model.Document{"id": tt.id, "rank": tt.newRank, "group": "a", "updated": true}
			require.NoError(t, m.Update(ctx, model.ByID(tt.id), doc))
			assert.Equal(t, tt.wantEvents, describe(rec.take()))
			assert.Equal(t, tt.wantCursor, sub.Cursor())
			assert.Equal(t, 31, sub.Count())

			advance(t, sub, 1)
			assert.Equal(t, []string{tt.wantNext}, describe(rec.take()))

			require.NoError(t, sub.Run(ctx))
			assertConverged(t, store, sub, red.Snapshot())

			for _, item := range red.Snapshot().Items {
				if item.GetID() == tt.id {
					assert.Equal(t, true, item["updated"])
				}
			}
		})
	}
}

// TestMutations_Randomized interleaves paging with random inserts, removes
// and updates and checks that every subscription settles on the store state.
func TestMutations_Randomized(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			ctx := context.Background()
			rnd := rand.New(rand.NewSource(seed))
			m, store := newFixture(t, 25)

			live := make([]string, 0, 64)
			for i := 0; i < 25; i++ {
				live = append(live, fmt.Sprintf("r%02d", i))
			}

			queries := []model.Query{
				{},
				model.Where("group", model.OpEq, "a"),
				model.Where("rank", model.OpLt, 200),
			}
			type watched struct {
				sub *Subscription
				red *Reducer
			}
			var subs []watched
			for i, q := range queries {
				for _, size := range []int{1, 4, 9} {
					order := byRank
					if i == 1 {
						order = []model.Order{
							{Field: "rank", Direction: model.Desc, Type: model.TypeNumber},
							{Field: "id", Direction: model.Desc, Type: model.TypeString},
						}
					}
					sub, err := m.Subscribe(q, order, size)
					require.NoError(t, err)
					red := NewReducer(EqualByID)
					sub.OnEvent(func(e Event) { red.Apply(e) })
					subs = append(subs, watched{sub, red})
				}
			}

			next := 100
			randomDoc := func(id string) model.Document {
				group := "a"
				if rnd.Intn(3) == 0 {
					group = "b"
				}
				return model.Document{"id": id, "rank": rnd.Intn(400), "group": group}
			}

			for step := 0; step < 150; step++ {
				switch op := rnd.Intn(10); {
				case op < 4:
					w := subs[rnd.Intn(len(subs))]
					require.NoError(t, w.sub.Advance(ctx))
				case op < 6:
					id := fmt.Sprintf("n%03d", next)
					next++
					require.NoError(t, m.Insert(ctx, randomDoc(id)))
					live = append(live, id)
				case op < 8 && len(live) > 0:
					i := rnd.Intn(len(live))
					require.NoError(t, m.Remove(ctx, model.ByID(live[i])))
					live = append(live[:i], live[i+1:]...)
				case len(live) > 0:
					id := live[rnd.Intn(len(live))]
					require.NoError(t, m.Update(ctx, model.ByID(id), randomDoc(id)))
				}

				for _, w := range subs {
					if w.sub.State() == StatePaging {
						c, n := w.sub.Cursor(), w.sub.Count()
						require.True(t, c >= 0 && c <= n, "cursor %d count %d", c, n)
					}
				}
			}

			for _, w := range subs {
				require.NoError(t, w.sub.Run(ctx))
				assertConverged(t, store, w.sub, w.red.Snapshot())
			}
		})
	}
}

func TestPaging_Deterministic(t *testing.T) {
	run := func() []byte {
		m, _ := newFixture(t, 17)
		sub, rec := subscribe(t, m, model.Where("rank", model.OpGte, 30), byRank, 4)
		require.NoError(t, sub.Run(context.Background()))

		var out []byte
		for _, e := range rec.take() {
			b, err := e.MarshalJSON()
			require.NoError(t, err)
			out = append(out, b...)
			out = append(out, '\n')
		}
		return out
	}

	assert.Equal(t, string(run()), string(run()))
}

func TestUpdate_WithoutIDKeepsRecordID(t *testing.T) {
	ctx := context.Background()
	m, store := newFixture(t, 3)
	sub, rec := subscribe(t, m, model.Query{}, byID, 10)
	red := NewReducer(EqualByID)
	sub.OnEvent(func(e Event) { red.Apply(e) })
	require.NoError(t, sub.Run(ctx))
	rec.take()

	doc := model.Document{"rank": 99, "group": "a"}
	require.NoError(t, m.Update(ctx, model.ByID("r01"), doc))
	assert.Equal(t, []string{
		"{count:2}", "delete:r01",
		"{exhausted:false}", "{count:3}", "data[r01]", "{exhausted:true}",
	}, describe(rec.take()))
	assert.NotContains(t, doc, "id")

	stored, err := store.FindOne(ctx, model.ByID("r01"))
	require.NoError(t, err)
	assert.Equal(t, 99, stored["rank"])

	require.NoError(t, m.Remove(ctx, model.ByID("r01")))
	assert.Equal(t, []string{"{count:2}", "delete:r01", "{exhausted:true}"}, describe(rec.take()))
	assertConverged(t, store, sub, red.Snapshot())
}

func TestUpdate_IDChangeRejected(t *testing.T) {
	ctx := context.Background()
	m, store := newFixture(t, 3)
	sub, rec := subscribe(t, m, model.Query{}, byID, 10)
	require.NoError(t, sub.Run(ctx))
	rec.take()

	err := m.Update(ctx, model.ByID("r01"), model.Document{"id": "r09", "rank": 5})
	assert.ErrorIs(t, err, model.ErrIDChanged)
	assert.Empty(t, rec.take())
	assert.Equal(t, []string{"r00", "r01", "r02"}, storeIDs(t, store, model.Query{}))
}
