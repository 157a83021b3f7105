package livequery

import (
	"reflect"

	"github.com/syntrixbase/livequery/pkg/model"
)

// Snapshot is the materialized view of a subscription's event stream.
type Snapshot struct {
	Exhausted bool             `json:"exhausted"`
	Count     int              `json:"count"`
	Items     []model.Document `json:"items"`
}

// EqualFunc decides whether two records are the same record.
type EqualFunc func(a, b model.Document) bool

// EqualByID compares records by their "id" field, falling back to deep
// equality when either record has none.
func EqualByID(a, b model.Document) bool {
	idA, idB := a.GetID(), b.GetID()
	if idA == "" || idB == "" {
		return reflect.DeepEqual(a, b)
	}
	return idA == idB
}

// Reducer folds events into a Snapshot. It is not safe for concurrent use.
type Reducer struct {
	equal EqualFunc
	snap  Snapshot
}

// NewReducer starts from an empty, non-exhausted snapshot. A nil equal
// uses EqualByID.
func NewReducer(equal EqualFunc) *Reducer {
	if equal == nil {
		equal = EqualByID
	}
	return &Reducer{equal: equal, snap: Snapshot{Items: []model.Document{}}}
}

// Apply folds e into the current snapshot and returns the result.
// Snapshots returned earlier are left untouched.
func (r *Reducer) Apply(e Event) Snapshot {
	r.snap = reduce(r.snap, e, r.equal)
	return r.snap
}

// Snapshot returns the current view.
func (r *Reducer) Snapshot() Snapshot {
	return r.snap
}

// Reduce folds events starting from the empty snapshot.
func Reduce(equal EqualFunc, events ...Event) Snapshot {
	r := NewReducer(equal)
	for _, e := range events {
		r.Apply(e)
	}
	return r.Snapshot()
}

func reduce(s Snapshot, e Event, equal EqualFunc) Snapshot {
	switch e.Kind {
	case EventCount:
		s.Count = e.Count
	case EventExhausted:
		s.Exhausted = e.Exhausted
	case EventData:
		items := make([]model.Document, 0, len(s.Items)+len(e.Data))
		items = append(items, s.Items...)
		s.Items = append(items, e.Data...)
	case EventDeleteItem:
		for i, item := range s.Items {
			if equal(item, e.Item) {
				items := make([]model.Document, 0, len(s.Items)-1)
				items = append(items, s.Items[:i]...)
				s.Items = append(items, s.Items[i+1:]...)
				break
			}
		}
	}
	return s
}
