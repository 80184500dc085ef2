package fetch

import "sync"

// Store owns one hook's snapshot. Transitions are serialized and every subscriber sees them in order.
// Subscribers may read the store but must not dispatch to it.
type Store[T any] struct {
	notifyMu sync.Mutex
	mu       sync.Mutex
	snapshot Snapshot[T]
	subs     map[int]func(Snapshot[T])
	nextID   int
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		snapshot: Snapshot[T]{Status: StatusIdle},
		subs:     make(map[int]func(Snapshot[T])),
	}
}

func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot
}

func (s *Store[T]) Dispatch(event Event[T]) Snapshot[T] {
	return s.Update(func(current Snapshot[T]) Snapshot[T] {
		return Transition(current, event)
	})
}

// Update applies fn to the current snapshot. Hooks use it for edits the generic events do not cover, such as
// prepending a created map to a loaded list.
func (s *Store[T]) Update(fn func(Snapshot[T]) Snapshot[T]) Snapshot[T] {
	next, _ := s.apply(func() bool { return true }, fn)
	return next
}

// DispatchIf dispatches event only if ok still holds once the store is locked. Nothing is published otherwise.
func (s *Store[T]) DispatchIf(ok func() bool, event Event[T]) (Snapshot[T], bool) {
	return s.apply(ok, func(current Snapshot[T]) Snapshot[T] {
		return Transition(current, event)
	})
}

func (s *Store[T]) apply(ok func() bool, fn func(Snapshot[T]) Snapshot[T]) (Snapshot[T], bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !ok() {
		current := s.snapshot
		s.mu.Unlock()
		return current, false
	}
	s.snapshot = fn(s.snapshot)
	next := s.snapshot
	subs := make([]func(Snapshot[T]), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
	return next, true
}

// Subscribe registers fn for every future transition and returns its unsubscribe func.
func (s *Store[T]) Subscribe(fn func(Snapshot[T])) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
