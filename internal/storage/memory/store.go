// Package memory provides an in-process Store. Filtering uses the same CEL
// predicates and ordering uses the same comparators as live subscriptions.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/syntrixbase/livequery/internal/comparator"
	"github.com/syntrixbase/livequery/internal/predicate"
	"github.com/syntrixbase/livequery/pkg/model"
)

type Store struct {
	mu       sync.RWMutex
	docs     []model.Document
	compiler *predicate.Compiler
	opts     []comparator.Option
}

// New creates an empty store. Comparator options control string collation
// of Read.
func New(opts ...comparator.Option) (*Store, error) {
	compiler, err := predicate.NewCompiler()
	if err != nil {
		return nil, err
	}
	return &Store{compiler: compiler, opts: opts}, nil
}

func (s *Store) Count(ctx context.Context, q model.Query) (int, error) {
	match, err := s.prepare(ctx, q)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, doc := range s.docs {
		if match(doc) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Read(ctx context.Context, q model.Query, order []model.Order, pageSize, skip int) ([]model.Document, error) {
	match, err := s.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	compare := comparator.Build(order, s.opts...)

	s.mu.RLock()
	var matched []model.Document
	for _, doc := range s.docs {
		if match(doc) {
			matched = append(matched, doc)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return compare(matched[i], matched[j]) < 0
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(matched) {
		return []model.Document{}, nil
	}
	matched = matched[skip:]
	if pageSize > 0 && pageSize < len(matched) {
		matched = matched[:pageSize]
	}

	out := make([]model.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, q model.Query) (model.Document, error) {
	match, err := s.prepare(ctx, q)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(match); i >= 0 {
		return s.docs[i].Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (s *Store) InsertOne(ctx context.Context, doc model.Document) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	if err := doc.ValidateDocument(); err != nil {
		return err
	}
	stored := doc.Clone()
	stored.GenerateIDIfEmpty()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := stored.GetID()
	for _, existing := range s.docs {
		if existing.GetID() == id {
			return model.ErrExists
		}
	}
	s.docs = append(s.docs, stored)
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, q model.Query, doc model.Document) error {
	match, err := s.prepare(ctx, q)
	if err != nil {
		return err
	}
	if err := doc.ValidateDocument(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(match)
	if i < 0 {
		return model.ErrNotFound
	}
	replacement := doc.Clone()
	if replacement.GetID() == "" {
		replacement.SetID(s.docs[i].GetID())
	}
	if replacement.GetID() != s.docs[i].GetID() {
		return model.ErrIDChanged
	}
	s.docs[i] = replacement
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, q model.Query) (model.Document, error) {
	match, err := s.prepare(ctx, q)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(match)
	if i < 0 {
		return nil, model.ErrNotFound
	}
	removed := s.docs[i]
	s.docs = append(s.docs[:i:i], s.docs[i+1:]...)
	return removed, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) prepare(ctx context.Context, q model.Query) (predicate.Predicate, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	return s.compiler.Compile(q)
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(match predicate.Predicate) int {
	for i, doc := range s.docs {
		if match(doc) {
			return i
		}
	}
	return -1
}
