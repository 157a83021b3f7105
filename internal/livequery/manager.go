package livequery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/livequery/internal/comparator"
	"github.com/syntrixbase/livequery/pkg/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Manager owns the live subscriptions over one Store. Every mutation must
// flow through it so that each subscription observes it exactly once.
//
// Mutations are fanned out synchronously, in registration order, before the
// Store write is issued. Concurrent mutations are not serialized against
// each other; wrap the Manager in a writer.Queue when that is required.
//
// OnEvent listeners run under the Manager lock during fan-out and must not
// call back into the Manager. Subscription.Stream has no such restriction.
type Manager struct {
	store    Store
	compiler PredicateCompiler
	notifier ChangeNotifier
	logger   *slog.Logger

	comparatorOpts  []comparator.Option
	defaultPageSize int
	maxPageSize     int

	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the Manager and its subscriptions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithComparatorOptions configures the order comparators built for subscriptions.
func WithComparatorOptions(opts ...comparator.Option) Option {
	return func(m *Manager) {
		m.comparatorOpts = append(m.comparatorOpts, opts...)
	}
}

// WithChangeNotifier registers a hook told about every persisted mutation.
func WithChangeNotifier(n ChangeNotifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithDefaultPageSize sets the page size used when Subscribe gets a non-positive one.
func WithDefaultPageSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.defaultPageSize = n
		}
	}
}

// WithMaxPageSize caps the page size a subscription may request.
func WithMaxPageSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPageSize = n
		}
	}
}

// NewManager creates a Manager over store, compiling subscription queries
// with compiler.
func NewManager(store Store, compiler PredicateCompiler, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		compiler:        compiler,
		logger:          slog.Default(),
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.defaultPageSize > m.maxPageSize {
		m.defaultPageSize = m.maxPageSize
	}
	return m
}

// Subscribe registers a new subscription in the counting state. No Store
// I/O happens until its first Advance.
func (m *Manager) Subscribe(q model.Query, order []model.Order, pageSize int) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	for _, o := range order {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}
	match, err := m.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	switch {
	case pageSize <= 0:
		pageSize = m.defaultPageSize
	case pageSize > m.maxPageSize:
		pageSize = m.maxPageSize
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		query:    q,
		order:    append([]model.Order(nil), order...),
		pageSize: pageSize,
		store:    m.store,
		match:    match,
		compare:  comparator.Build(order, m.comparatorOpts...),
		state:    StateCounting,
	}
	sub.logger = m.logger.With("subscription", sub.id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, model.ErrSubscriptionClosed
	}
	m.subs = append(m.subs, sub)
	SubscriptionsActive.Inc()

	m.logger.Debug("Subscription registered", "subscription", sub.id, "page_size", pageSize)
	return sub, nil
}

// Unsubscribe detaches sub and closes it. Calling it again is a no-op.
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	m.mu.Lock()
	for i, cur := range m.subs {
		if cur == sub {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			SubscriptionsActive.Dec()
			break
		}
	}
	m.mu.Unlock()

	if sub.close() {
		m.logger.Debug("Subscription closed", "subscription", sub.id)
	}
}

// Subscriptions returns the live subscriptions in registration order.
func (m *Manager) Subscriptions() []*Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Subscription(nil), m.subs...)
}

// Len returns the number of live subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close closes every subscription. Subscribe fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.closed = true
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
		SubscriptionsActive.Dec()
	}
}

// Insert fans doc out to every subscription, then stores it. A missing id
// is generated.
func (m *Manager) Insert(ctx context.Context, doc model.Document) error {
	if err := doc.ValidateDocument(); err != nil {
		return err
	}
	doc.GenerateIDIfEmpty()

	m.fanOutInsert(doc, "local")

	start := time.Now()
	err := m.store.InsertOne(ctx, doc)
	observeStore("insert", start, err)
	if err != nil {
		return fmt.Errorf("insert %s: %w", doc.GetID(), model.WrapError(err))
	}

	m.notify(ctx, Change{Op: OpInsert, After: doc})
	return nil
}

// Remove deletes the first record matching q. The pre-image is fanned out
// before the Store delete is issued.
func (m *Manager) Remove(ctx context.Context, q model.Query) error {
	before, err := m.findOne(ctx, q)
	if err != nil {
		return err
	}

	m.fanOutRemove(before, "local")

	start := time.Now()
	_, err = m.store.DeleteOne(ctx, q)
	observeStore("delete", start, err)
	if errors.Is(err, model.ErrNotFound) {
		// Another writer removed it first and owns the notification.
		m.logger.Debug("Record already removed", "id", before.GetID())
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", before.GetID(), model.WrapError(err))
	}

	m.notify(ctx, Change{Op: OpRemove, Before: before})
	return nil
}

// Update replaces the first record matching q with doc. Subscriptions see
// the old image removed and the new image inserted before the Store write.
// A doc without id keeps the replaced record's id; a different id fails
// with model.ErrIDChanged. doc itself is never modified.
func (m *Manager) Update(ctx context.Context, q model.Query, doc model.Document) error {
	if err := doc.ValidateDocument(); err != nil {
		return err
	}

	before, err := m.findOne(ctx, q)
	if err != nil {
		return err
	}
	after, err := replacement(before, doc)
	if err != nil {
		return err
	}

	m.fanOutUpdate(before, after, "local")

	start := time.Now()
	err = m.store.UpdateOne(ctx, q, after)
	observeStore("update", start, err)
	if err != nil {
		return fmt.Errorf("update %s: %w", before.GetID(), model.WrapError(err))
	}

	m.notify(ctx, Change{Op: OpUpdate, Before: before, After: after})
	return nil
}

// replacement returns the image doc leaves in the store once it replaces
// before.
func replacement(before, doc model.Document) (model.Document, error) {
	after := doc.Clone()
	switch id := after.GetID(); {
	case id == "":
		after.SetID(before.GetID())
	case id != before.GetID():
		return nil, fmt.Errorf("update %s to id %s: %w", before.GetID(), id, model.ErrIDChanged)
	}
	return after, nil
}

// ApplyInsert fans an insert out without touching the Store. It is meant
// for mutations another process already persisted.
func (m *Manager) ApplyInsert(doc model.Document) {
	m.fanOutInsert(doc, "remote")
}

// ApplyRemove fans a delete of doc out without touching the Store.
func (m *Manager) ApplyRemove(doc model.Document) {
	m.fanOutRemove(doc, "remote")
}

// ApplyUpdate fans the delete of before, then the insert of after, out
// without touching the Store.
func (m *Manager) ApplyUpdate(before, after model.Document) {
	m.fanOutUpdate(before, after, "remote")
}

func (m *Manager) fanOutInsert(doc model.Document, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	MutationsApplied.WithLabelValues(string(OpInsert), source).Inc()
	for _, sub := range m.subs {
		sub.onInsert(doc)
	}
}

func (m *Manager) fanOutRemove(doc model.Document, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	MutationsApplied.WithLabelValues(string(OpRemove), source).Inc()
	for _, sub := range m.subs {
		sub.onDelete(doc, false)
	}
}

func (m *Manager) fanOutUpdate(before, after model.Document, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	MutationsApplied.WithLabelValues(string(OpUpdate), source).Inc()
	for _, sub := range m.subs {
		sub.onDelete(before, true)
	}
	for _, sub := range m.subs {
		sub.onInsert(after)
	}
}

func (m *Manager) findOne(ctx context.Context, q model.Query) (model.Document, error) {
	start := time.Now()
	doc, err := m.store.FindOne(ctx, q)
	observeStore("find", start, err)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find pre-image: %w", model.WrapError(err))
	}
	if doc == nil {
		return nil, model.ErrNotFound
	}
	return doc, nil
}

func (m *Manager) notify(ctx context.Context, change Change) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, change); err != nil {
		m.logger.Warn("Failed to publish change", "op", change.Op, "error", err)
	}
}
