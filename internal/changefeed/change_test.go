package changefeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/pkg/model"
)

func TestChange_EncodeDecode(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Change{
		Origin:    "node-a",
		Op:        livequery.OpUpdate,
		Before:    model.Document{"id": "r1", "rank": 10},
		After:     model.Document{"id": "r1", "rank": 20},
		Timestamp: ts,
	}

	data, err := Encode(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"origin": "node-a",
		"op": "update",
		"before": {"id": "r1", "rank": 10},
		"after": {"id": "r1", "rank": 20},
		"timestamp": "2026-01-02T03:04:05Z"
	}`, string(data))

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "node-a", out.Origin)
	assert.Equal(t, livequery.OpUpdate, out.Op)
	assert.Equal(t, "r1", out.After.GetID())
	assert.Equal(t, float64(20), out.After["rank"])
	assert.True(t, ts.Equal(out.Timestamp))
	assert.Equal(t, "update", out.Subject())
}

func TestChange_Validate(t *testing.T) {
	doc := model.Document{"id": "x"}
	tests := []struct {
		name    string
		change  Change
		wantErr string
	}{
		{"insert", Change{Op: livequery.OpInsert, After: doc}, ""},
		{"insert without after", Change{Op: livequery.OpInsert, Before: doc}, "insert change without after image"},
		{"remove", Change{Op: livequery.OpRemove, Before: doc}, ""},
		{"remove without before", Change{Op: livequery.OpRemove}, "remove change without before image"},
		{"update", Change{Op: livequery.OpUpdate, Before: doc, After: doc}, ""},
		{"update missing image", Change{Op: livequery.OpUpdate, After: doc}, "update change needs before and after images"},
		{"unknown op", Change{Op: "upsert", After: doc}, `unknown change op "upsert"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.ErrorContains(t, err, "decode change")

	_, err = Decode([]byte(`{"op":"remove","origin":"a"}`))
	assert.ErrorContains(t, err, "without before image")
}

func TestNewOrigin(t *testing.T) {
	a, b := NewOrigin(), NewOrigin()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
