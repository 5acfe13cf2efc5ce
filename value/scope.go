package value

import "sync"

// Releaser is anything carrying a free capability.
type Releaser interface {
	Release()
}

// Scope collects releasers and frees them together, newest first.
// The zero value is ready to use.
type Scope struct {
	items  []Releaser
	mu     sync.Mutex
	closed bool
}

// Track adds r to the scope. Tracking on a closed scope releases r at once.
func (s *Scope) Track(r Releaser) {
	if r == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		r.Release()
		return
	}
	s.items = append(s.items, r)
	s.mu.Unlock()
}

// Close releases every tracked item in reverse order. It is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.closed = true
	s.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		items[i].Release()
	}
}
