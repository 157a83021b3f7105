package model

import "fmt"

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpEq       FilterOp = "=="       // Equal
	OpNe       FilterOp = "!="       // Not equal
	OpGt       FilterOp = ">"        // Greater than
	OpGte      FilterOp = ">="       // Greater than or equal
	OpLt       FilterOp = "<"        // Less than
	OpLte      FilterOp = "<="       // Less than or equal
	OpIn       FilterOp = "in"       // Value in array
	OpContains FilterOp = "contains" // Array contains value
)

// ValidOps returns all valid filter operators.
func ValidOps() []FilterOp {
	return []FilterOp{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains}
}

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

// Filters is a slice of Filter.
type Filters []Filter

// Filter represents a query filter
type Filter struct {
	Field string      `json:"field" yaml:"field"`
	Op    FilterOp    `json:"op" yaml:"op"`
	Value interface{} `json:"value" yaml:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	return f.Op.IsValid()
}

// Query is the declarative description of the records a subscription selects.
//
// Every entry of Filters must hold. When Or is not empty, at least one of its
// branches must hold as well. The zero Query matches every record.
type Query struct {
	Filters Filters `json:"filters,omitempty" yaml:"filters,omitempty"`
	Or      []Query `json:"or,omitempty" yaml:"or,omitempty"`
}

// Where is shorthand for a single-filter query.
func Where(field string, op FilterOp, value interface{}) Query {
	return Query{Filters: Filters{{Field: field, Op: op, Value: value}}}
}

// ByID selects the record with the given id.
func ByID(id string) Query {
	return Where("id", OpEq, id)
}

// IsEmpty reports whether the query matches everything.
func (q Query) IsEmpty() bool {
	return len(q.Filters) == 0 && len(q.Or) == 0
}

// Validate returns ErrInvalidQuery when a filter is malformed.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !f.Validate() {
			return fmt.Errorf("%w: filter on %q with op %q", ErrInvalidQuery, f.Field, f.Op)
		}
	}
	for _, branch := range q.Or {
		if err := branch.Validate(); err != nil {
			return err
		}
	}
	return nil
}
