package document

import (
	"context"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu       sync.Mutex
	content  string
	history  *History
	saved    string
	hasSaved bool
	subs     subscribers

	// persist, when set, runs under the lock before a save is recorded.
	persist func(ctx context.Context, content string) error
}

// NewMemory returns a store holding content with an empty history.
func NewMemory(content string) *Memory {
	return &Memory{content: content, history: NewHistory(DefaultHistoryLimit)}
}

// Content implements Store.
func (m *Memory) Content() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

// Replace implements Store.
func (m *Memory) Replace(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.set(content) {
		return nil
	}
	m.subs.notify(Change{Kind: ChangeEdit, Content: content})
	return nil
}

// SetExternal replaces the content as if another program edited it. The
// change is undoable and reported as ChangeExternal.
func (m *Memory) SetExternal(content string) {
	if m.set(content) {
		m.subs.notify(Change{Kind: ChangeExternal, Content: content})
	}
}

func (m *Memory) set(content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if content == m.content {
		return false
	}
	m.history.Record(m.content)
	m.content = content
	return true
}

// Undo implements Store.
func (m *Memory) Undo(ctx context.Context) (bool, error) {
	return m.step(ctx, (*History).Undo)
}

// Redo implements Store.
func (m *Memory) Redo(ctx context.Context) (bool, error) {
	return m.step(ctx, (*History).Redo)
}

func (m *Memory) step(ctx context.Context, move func(*History, string) (string, bool)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	next, ok := move(m.history, m.content)
	if ok {
		m.content = next
	}
	m.mu.Unlock()
	if ok {
		m.subs.notify(Change{Kind: ChangeEdit, Content: next})
	}
	return ok, nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	content := m.content
	if m.persist != nil {
		if err := m.persist(ctx, content); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.saved, m.hasSaved = content, true
	m.mu.Unlock()
	m.subs.notify(Change{Kind: ChangeSaved, Content: content})
	return nil
}

// Saved implements Store.
func (m *Memory) Saved() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, m.hasSaved
}

// Subscribe implements Store.
func (m *Memory) Subscribe(fn func(Change)) func() {
	return m.subs.add(fn)
}
