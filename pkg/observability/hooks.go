// Package observability provides hooks for metrics and tracing.
//
// Library packages report events through the registered hooks and never
// depend on a metrics backend directly. Hooks default to no-ops; the serve
// command installs the Prometheus implementation at startup:
//
//	prom := observability.NewPrometheus(prometheus.DefaultRegisterer)
//	observability.SetLayoutHooks(prom)
//	observability.SetSyncHooks(prom)
//	observability.SetCacheHooks(prom)
//
// Libraries call hooks to emit events:
//
//	observability.Layout().OnLayoutStart(ctx, mode, len(g.Nodes))
//	// ... solve ...
//	observability.Layout().OnLayoutComplete(ctx, mode, time.Since(start), fallback)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from the layout compiler.
type LayoutHooks interface {
	OnLayoutStart(ctx context.Context, mode string, nodeCount int)

	// OnLayoutComplete reports a finished compile. fallback is true when the
	// solver failed or timed out and the grid placement was used instead.
	OnLayoutComplete(ctx context.Context, mode string, duration time.Duration, fallback bool)
}

// =============================================================================
// Sync Hooks
// =============================================================================

// SyncHooks receives events from the position sync protocol.
type SyncHooks interface {
	// OnBatch records a flushed updatePositions batch of n changes.
	OnBatch(ctx context.Context, n int)

	// OnEdit records a document edit attempted by the authority.
	// op is the message type that caused it (updatePositions, resetLayout, ...).
	OnEdit(ctx context.Context, op string, err error)

	// OnSuppressed records a store notification dropped by the self-edit guard.
	OnSuppressed(ctx context.Context)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnLayoutStart(context.Context, string, int)                    {}
func (NoopLayoutHooks) OnLayoutComplete(context.Context, string, time.Duration, bool) {}

// NoopSyncHooks is a no-op implementation of SyncHooks.
type NoopSyncHooks struct{}

func (NoopSyncHooks) OnBatch(context.Context, int)          {}
func (NoopSyncHooks) OnEdit(context.Context, string, error) {}
func (NoopSyncHooks) OnSuppressed(context.Context)          {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	layoutHooks LayoutHooks = NoopLayoutHooks{}
	syncHooks   SyncHooks   = NoopSyncHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetLayoutHooks registers layout hooks. A nil value is ignored.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetSyncHooks registers sync hooks. A nil value is ignored.
func SetSyncHooks(h SyncHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		syncHooks = h
	}
}

// SetCacheHooks registers cache hooks. A nil value is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Sync returns the registered sync hooks.
func Sync() SyncHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return syncHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	layoutHooks = NoopLayoutHooks{}
	syncHooks = NoopSyncHooks{}
	cacheHooks = NoopCacheHooks{}
}
