package sim

import (
	"sort"
	"sync"

	"github.com/st-keller/introspection-agent/toolkit"
)

// signal is a list of connected slots, emitted in connection order.
type signal[T any] struct {
	mu    sync.Mutex
	next  int
	slots map[int]func(T)
}

func (s *signal[T]) connect(fn func(T)) toolkit.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots == nil {
		s.slots = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.slots[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.slots, id)
	}
}

func (s *signal[T]) emit(v T) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.slots[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *signal[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
