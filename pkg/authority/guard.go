package authority

import (
	"sync"
	"time"
)

// DefaultGuardWindow is how long after an own edit store notifications are
// still treated as echoes of that edit.
const DefaultGuardWindow = 100 * time.Millisecond

// Guard marks the span of the authority's own edits. Store notifications
// that arrive while it is held, or within the window after release, are
// echoes and are not pushed to sessions.
type Guard struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	held  int
	until time.Time
}

// NewGuard returns a guard with the given trailing window.
func NewGuard(window time.Duration) *Guard {
	if window < 0 {
		window = 0
	}
	return &Guard{window: window, now: time.Now}
}

// Acquire holds the guard until the returned release is called. Release is
// safe to call more than once.
func (g *Guard) Acquire() (release func()) {
	g.mu.Lock()
	g.held++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.held--
			if until := g.now().Add(g.window); until.After(g.until) {
				g.until = until
			}
			g.mu.Unlock()
		})
	}
}

// Active reports whether notifications should be suppressed now.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held > 0 || g.now().Before(g.until)
}
