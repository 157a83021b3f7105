package livequery

import (
	"context"

	"github.com/syntrixbase/livequery/internal/predicate"
	"github.com/syntrixbase/livequery/pkg/model"
)

// Store is the backing collection. Reads must honour the same filter and
// order semantics the subscriptions use for classification.
type Store interface {
	// Count returns the number of records matching q.
	Count(ctx context.Context, q model.Query) (int, error)

	// Read returns up to pageSize records matching q, sorted by order,
	// starting at offset skip.
	Read(ctx context.Context, q model.Query, order []model.Order, pageSize, skip int) ([]model.Document, error)

	// FindOne returns one record matching q, or model.ErrNotFound.
	FindOne(ctx context.Context, q model.Query) (model.Document, error)

	// InsertOne stores a new record.
	InsertOne(ctx context.Context, doc model.Document) error

	// UpdateOne replaces the first record matching q with doc. A doc
	// without id keeps the replaced record's id; any other id fails with
	// model.ErrIDChanged.
	UpdateOne(ctx context.Context, q model.Query, doc model.Document) error

	// DeleteOne removes the first record matching q and returns it, or model.ErrNotFound.
	DeleteOne(ctx context.Context, q model.Query) (model.Document, error)
}

// PredicateCompiler turns a query into a document test.
type PredicateCompiler interface {
	Compile(q model.Query) (predicate.Predicate, error)
}

// ChangeOp names the kind of mutation that was applied.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpRemove ChangeOp = "remove"
)

// Change describes a mutation after it reached the Store.
type Change struct {
	Op     ChangeOp
	Before model.Document
	After  model.Document
}

// ChangeNotifier is told about every mutation the Manager persisted.
type ChangeNotifier interface {
	Notify(ctx context.Context, change Change) error
}
