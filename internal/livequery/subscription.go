package livequery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syntrixbase/livequery/internal/comparator"
	"github.com/syntrixbase/livequery/internal/predicate"
	"github.com/syntrixbase/livequery/pkg/model"
)

// State is the position of a Subscription in its lifecycle.
type State int

const (
	StateCounting State = iota
	StatePaging
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCounting:
		return "counting"
	case StatePaging:
		return "paging"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type listener struct {
	fn func(Event)
}

// Subscription is one subscriber's live, paginated view over the records
// matching its query. It is created by Manager.Subscribe and driven forward
// with Advance.
//
// Listeners registered with OnEvent are invoked synchronously while the
// subscription is locked and, during mutation fan-out, while the Manager
// is locked. They must not call the subscription or its Manager: no
// Advance, Unsubscribe, Subscribe, Insert, Update or Remove. Consumers
// that react to events with such calls read from Stream instead.
type Subscription struct {
	id       string
	query    model.Query
	order    []model.Order
	pageSize int

	store   Store
	match   predicate.Predicate
	compare comparator.Comparator
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	count     int
	cursor    int
	boundary  model.Document
	inFlight  bool
	epoch     uint64
	listeners []*listener
	streams   []*stream
}

func (s *Subscription) ID() string { return s.id }
func (s *Subscription) Query() model.Query { return s.query }
func (s *Subscription) Order() []model.Order { return s.order }
func (s *Subscription) PageSize() int { return s.pageSize }

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Subscription) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// HasTask reports whether Advance still has Store work to do.
func (s *Subscription) HasTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateCounting || s.state == StatePaging
}

// OnEvent registers fn to receive every event emitted from now on.
// The returned func removes the registration.
func (s *Subscription) OnEvent(fn func(Event)) (cancel func()) {
	l := &listener{fn: fn}

	s.mu.Lock()
	if s.state != StateClosed {
		s.listeners = append(s.listeners, l)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.removeListener(l)
		})
	}
}

func (s *Subscription) removeListener(l *listener) {
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Stream returns a channel carrying every event emitted from now on, in
// order. The channel never blocks the emitter; it is closed once the
// subscription is closed and all buffered events are consumed, or as soon
// as ctx is done.
func (s *Subscription) Stream(ctx context.Context) <-chan Event {
	st := newStream()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		st.finish()
		go st.pump(ctx)
		return st.out
	}
	l := &listener{fn: st.push}
	s.listeners = append(s.listeners, l)
	s.streams = append(s.streams, st)
	s.mu.Unlock()

	go func() {
		st.pump(ctx)
		s.mu.Lock()
		s.removeListener(l)
		for i, cur := range s.streams {
			if cur == st {
				s.streams = append(s.streams[:i:i], s.streams[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()
	return st.out
}

// Advance performs the next pending Store call: the count while counting,
// the next page while paging. It is a no-op once idle.
func (s *Subscription) Advance(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == StateClosed:
		s.mu.Unlock()
		return model.ErrSubscriptionClosed
	case s.state == StateIdle:
		s.mu.Unlock()
		return nil
	case s.inFlight:
		s.mu.Unlock()
		return model.ErrTaskInFlight
	}
	s.inFlight = true
	state, cursor, epoch := s.state, s.cursor, s.epoch
	s.mu.Unlock()

	switch state {
	case StateCounting:
		return s.fetchCount(ctx, epoch)
	default:
		return s.fetchPage(ctx, cursor, epoch)
	}
}

// Run advances until the subscription has no pending task.
func (s *Subscription) Run(ctx context.Context) error {
	for s.HasTask() {
		if err := ctx.Err(); err != nil {
			return model.WrapError(err)
		}
		if err := s.Advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subscription) fetchCount(ctx context.Context, epoch uint64) error {
	start := time.Now()
	n, err := s.store.Count(ctx, s.query)
	observeStore("count", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		return fmt.Errorf("count subscription %s: %w", s.id, model.WrapError(err))
	}
	if s.state != StateCounting {
		return nil
	}
	if s.epoch != epoch {
		s.logger.Debug("Discarding stale count", "subscription", s.id)
		return nil
	}

	s.count = n
	s.emit(CountEvent(n))
	if n == 0 {
		s.emit(ExhaustedEvent(true))
		s.becomeIdle()
		return nil
	}
	s.state = StatePaging
	return nil
}

func (s *Subscription) fetchPage(ctx context.Context, cursor int, epoch uint64) error {
	start := time.Now()
	page, err := s.store.Read(ctx, s.query, s.order, s.pageSize, cursor)
	observeStore("read", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		return fmt.Errorf("read page of subscription %s at %d: %w", s.id, cursor, model.WrapError(err))
	}
	if s.state != StatePaging {
		return nil
	}
	if s.epoch != epoch || s.cursor != cursor {
		s.logger.Debug("Discarding stale page", "subscription", s.id, "skip", cursor)
		return nil
	}

	if len(page) == 0 {
		// The store holds fewer matches than we counted.
		s.count = s.cursor
		s.emit(CountEvent(s.count))
		s.emit(ExhaustedEvent(true))
		s.becomeIdle()
		return nil
	}

	s.emit(DataEvent(page...))
	s.cursor += len(page)
	s.boundary = page[len(page)-1]
	if s.cursor >= s.count {
		s.emit(ExhaustedEvent(true))
		s.becomeIdle()
	}
	return nil
}

// onInsert classifies a new record against the delivered window.
func (s *Subscription) onInsert(item model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverClassification("insert", item)

	if !s.match(item) {
		return
	}

	switch s.state {
	case StateCounting:
		s.epoch++
	case StateIdle:
		s.epoch++
		s.count++
		s.cursor = s.count
		s.emit(ExhaustedEvent(false))
		s.emit(CountEvent(s.count))
		s.emit(DataEvent(item))
		s.emit(ExhaustedEvent(true))
	case StatePaging:
		s.epoch++
		s.count++
		s.emit(CountEvent(s.count))
		if s.boundary != nil && s.compare(s.boundary, item) > 0 {
			s.cursor++
			s.emit(DataEvent(item))
		}
	}
}

// onDelete classifies a removed record against the delivered window.
// moreFollow suppresses the trailing exhausted event of an idle
// subscription when an insert for the same logical change is coming.
func (s *Subscription) onDelete(item model.Document, moreFollow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverClassification("delete", item)

	if !s.match(item) {
		return
	}

	switch s.state {
	case StateCounting:
		s.epoch++
	case StateIdle:
		s.epoch++
		s.count--
		s.cursor = s.count
		s.emit(CountEvent(s.count))
		s.emit(DeleteEvent(item))
		if !moreFollow {
			s.emit(ExhaustedEvent(true))
		}
	case StatePaging:
		s.epoch++
		s.count--
		s.emit(CountEvent(s.count))
		if s.delivered(item) {
			s.cursor--
			s.emit(DeleteEvent(item))
		}
		if s.cursor >= s.count {
			s.emit(ExhaustedEvent(true))
			s.becomeIdle()
		}
	}
}

// delivered reports whether item lies inside the already delivered window.
// The boundary record itself counts as delivered.
func (s *Subscription) delivered(item model.Document) bool {
	if s.boundary == nil {
		return false
	}
	c := s.compare(s.boundary, item)
	if c > 0 {
		return true
	}
	return c == 0 && s.boundary.GetID() != "" && s.boundary.GetID() == item.GetID()
}

func (s *Subscription) recoverClassification(op string, item model.Document) {
	if r := recover(); r != nil {
		ClassificationFailures.Inc()
		s.logger.Error("Failed to classify mutation",
			"subscription", s.id, "op", op, "id", item.GetID(), "panic", r)
	}
}

func (s *Subscription) becomeIdle() {
	s.state = StateIdle
	s.cursor = s.count
	s.boundary = nil
}

// close moves the subscription to its terminal state and releases every
// listener. It reports whether this call did the transition.
func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	s.boundary = nil
	s.listeners = nil
	for _, st := range s.streams {
		st.finish()
	}
	s.streams = nil
	return true
}

// emit must be called with s.mu held.
func (s *Subscription) emit(e Event) {
	EventsEmitted.WithLabelValues(e.Kind.String()).Inc()
	for _, l := range s.listeners {
		l.fn(e)
	}
}

// stream is an unbounded ordered queue feeding a channel.
type stream struct {
	mu     sync.Mutex
	queue  []Event
	done   bool
	notify chan struct{}
	out    chan Event
}

func newStream() *stream {
	return &stream{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}
}

func (st *stream) push(e Event) {
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return
	}
	st.queue = append(st.queue, e)
	st.mu.Unlock()
	st.wake()
}

func (st *stream) finish() {
	st.mu.Lock()
	st.done = true
	st.mu.Unlock()
	st.wake()
}

func (st *stream) wake() {
	select {
	case st.notify <- struct{}{}:
	default:
	}
}

func (st *stream) pump(ctx context.Context) {
	defer close(st.out)
	for {
		st.mu.Lock()
		if len(st.queue) == 0 {
			done := st.done
			st.mu.Unlock()
			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-st.notify:
			}
			continue
		}
		e := st.queue[0]
		st.queue[0] = Event{}
		st.queue = st.queue[1:]
		st.mu.Unlock()

		select {
		case st.out <- e:
		case <-ctx.Done():
			return
		}
	}
}
