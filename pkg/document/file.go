package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/codeflow/pkg/errors"
)

// DefaultWatchDebounce coalesces bursts of filesystem events for one write.
const DefaultWatchDebounce = 50 * time.Millisecond

// File is a Store backed by a file on disk. Edits stay in memory until
// Save writes them back.
type File struct {
	*Memory

	path     string
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	written string
}

// FileOption configures a File.
type FileOption func(*File)

// WithWatchDebounce sets how long Watch waits for events to settle.
func WithWatchDebounce(d time.Duration) FileOption {
	return func(f *File) { f.debounce = d }
}

// WithFileLogger sets the logger for watch diagnostics.
func WithFileLogger(l *log.Logger) FileOption {
	return func(f *File) { f.logger = l }
}

// OpenFile loads path into a new store. The loaded text counts as saved.
func OpenFile(path string, opts ...FileOption) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "document not found: %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	f := &File{
		Memory:   NewMemory(string(data)),
		path:     abs,
		debounce: DefaultWatchDebounce,
		logger:   log.New(io.Discard),
		written:  string(data),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.Memory.saved, f.Memory.hasSaved = f.written, true
	f.Memory.persist = f.write
	return f, nil
}

// Path returns the absolute file path.
func (f *File) Path() string { return f.path }

// write replaces the file atomically: temp file in the same directory, then
// rename over the target.
func (f *File) write(_ context.Context, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	f.mu.Lock()
	f.written = content
	f.mu.Unlock()

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Watch reports modifications of the file made by other programs as
// ChangeExternal until ctx is done. Content this store wrote itself, or
// that equals the current text, is ignored.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors often save by rename, which drops a watch on the file itself.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watch error", "path", f.path, "err", err)
		case <-timerC:
			timerC = nil
			f.reload()
		}
	}
}

func (f *File) reload() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		// Mid-rename; the following Create event retries.
		f.logger.Debug("reload skipped", "path", f.path, "err", err)
		return
	}
	content := string(data)

	f.mu.Lock()
	self := content == f.written
	f.mu.Unlock()
	if self || content == f.Content() {
		return
	}

	f.mu.Lock()
	f.written = content
	f.mu.Unlock()

	f.logger.Debug("external change", "path", f.path, "bytes", len(content))
	f.SetExternal(content)
}
