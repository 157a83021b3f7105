package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterOp_IsValid(t *testing.T) {
	tests := []struct {
		name string
		op   FilterOp
		want bool
	}{
		{"OpEq", OpEq, true},
		{"OpNe", OpNe, true},
		{"OpGt", OpGt, true},
		{"OpGte", OpGte, true},
		{"OpLt", OpLt, true},
		{"OpLte", OpLte, true},
		{"OpIn", OpIn, true},
		{"OpContains", OpContains, true},
		{"Invalid", FilterOp("invalid"), false},
		{"Empty", FilterOp(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.IsValid())
		})
	}
}

func TestValidOps(t *testing.T) {
	ops := ValidOps()
	assert.Len(t, ops, 8)
	assert.Contains(t, ops, OpEq)
	assert.Contains(t, ops, OpContains)
}

func TestFilter_Validate(t *testing.T) {
	assert.True(t, Filter{Field: "name", Op: OpEq, Value: "x"}.Validate())
	assert.False(t, Filter{Field: "", Op: OpEq, Value: "x"}.Validate())
	assert.False(t, Filter{Field: "name", Op: "~", Value: "x"}.Validate())
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, Query{}.Validate())
	assert.True(t, Query{}.IsEmpty())

	ok := Query{
		Filters: Filters{{Field: "age", Op: OpGt, Value: 18}},
		Or:      []Query{Where("city", OpEq, "Berlin"), Where("city", OpEq, "Hamburg")},
	}
	assert.NoError(t, ok.Validate())
	assert.False(t, ok.IsEmpty())

	bad := Query{Or: []Query{Where("", OpEq, 1)}}
	err := bad.Validate()
	assert.True(t, errors.Is(err, ErrInvalidQuery))

	bad = Where("x", "like", 1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidQuery)
}

func TestByID(t *testing.T) {
	q := ByID("abc001")
	assert.Equal(t, Filters{{Field: "id", Op: OpEq, Value: "abc001"}}, q.Filters)
}
