package highlight

import "sync"

// Selector holds one selection at a time. Selecting a new target replaces
// the previous one whatever its kind; selecting the current target again
// clears it.
type Selector struct {
	mu  sync.Mutex
	sel Selection
}

// Current returns the active selection.
func (s *Selector) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Select makes next the active selection, or clears it when next is already
// active. It returns the resulting selection.
func (s *Selector) Select(next Selection) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next == s.sel {
		s.sel = Selection{}
	} else {
		s.sel = next
	}
	return s.sel
}

// Clear removes any selection.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.sel = Selection{}
	s.mu.Unlock()
}
