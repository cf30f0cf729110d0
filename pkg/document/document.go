// Package document holds the text of a graph document together with its
// undo history and saved state.
//
// A [Store] is the single source of truth the authority edits. Two
// implementations are provided:
//   - [Memory]: in-process storage for tests and embedding
//   - [File]: a file on disk, saved atomically and watched for external edits
//
// Subscribers are told about every content change, including the ones the
// subscriber made itself; telling them apart is up to the caller.
package document

import (
	"context"
	"sort"
	"sync"
)

// DefaultHistoryLimit bounds the undo and redo stacks.
const DefaultHistoryLimit = 100

// ChangeKind classifies a content change.
type ChangeKind int

const (
	// ChangeEdit is a change made through Replace, Undo or Redo.
	ChangeEdit ChangeKind = iota
	// ChangeExternal is a change made outside the store, such as another
	// editor writing the file.
	ChangeExternal
	// ChangeSaved reports that the current content was persisted.
	ChangeSaved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeEdit:
		return "edit"
	case ChangeExternal:
		return "external"
	case ChangeSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers.
type Change struct {
	Kind    ChangeKind
	Content string
}

// Store is an editable document.
type Store interface {
	// Content returns the current text.
	Content() string
	// Replace swaps the whole text as one undoable step. Replacing with
	// identical text is a no-op.
	Replace(ctx context.Context, content string) error
	// Undo reverts the last step. It reports false when there is nothing
	// to undo.
	Undo(ctx context.Context) (bool, error)
	// Redo reapplies the last undone step.
	Redo(ctx context.Context) (bool, error)
	// Save persists the current text.
	Save(ctx context.Context) error
	// Saved returns the text as of the last Save, if any.
	Saved() (string, bool)
	// Subscribe registers fn for change notifications and returns a
	// function that removes it.
	Subscribe(fn func(Change)) (cancel func())
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

// notify calls subscribers in registration order, outside the lock.
func (s *subscribers) notify(c Change) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), len(ids))
	for i, id := range ids {
		fns[i] = s.fns[id]
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
