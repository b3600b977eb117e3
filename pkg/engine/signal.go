package engine

import "sync"

// Signal wakes a reader, typically a plotting loop, whenever the builder
// has binned new data. Notifications coalesce: several Notify calls before a
// Wait count once.
type Signal struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ready  bool
	active bool
}

func NewSignal() *Signal {
	s := &Signal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Signal) Notify() {
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Wait blocks until a notification is pending or the signal is activated.
// It consumes the notification and reports whether there was one.
func (s *Signal) Wait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.ready && !s.active {
		s.cond.Wait()
	}
	ready := s.ready
	s.ready = false
	return ready
}

// Activate releases every waiter, now and in the future, until Reset.
func (s *Signal) Activate() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.ready = false
}

func (s *Signal) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
