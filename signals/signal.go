// Package signals provides a small observable state cell. Each state
// container owns a set of cells; subscribers (persistence hooks, the UI,
// the socket drain loop) are notified synchronously after every write.
package signals

import "sync"

// Signal holds a value and a list of subscribers.
type Signal[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[int]func(T)
	next  int
}

// New creates a signal holding the given initial value.
func New[T any](initial T) *Signal[T] {
	return &Signal[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies all subscribers.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	// Notify outside the lock so subscribers may read or write signals.
	for _, fn := range subs {
		fn(value)
	}
}

// Update applies fn to the current value and stores the result.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	value := fn(s.value)
	s.value = value
	subs := make([]func(T), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(value)
	}
}

// Subscribe registers fn to run after every write. It returns an
// unsubscribe function. The subscriber is not called with the current
// value on registration.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
