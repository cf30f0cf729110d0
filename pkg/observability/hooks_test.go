package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	l := NoopLayoutHooks{}
	l.OnLayoutStart(ctx, "layered", 10)
	l.OnLayoutComplete(ctx, "layered", time.Second, false)

	s := NoopSyncHooks{}
	s.OnBatch(ctx, 3)
	s.OnEdit(ctx, "updatePositions", nil)
	s.OnSuppressed(ctx)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "layout")
	c.OnCacheMiss(ctx, "layout")
	c.OnCacheSet(ctx, "layout", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Layout() should return NoopLayoutHooks by default")
	}
	if _, ok := Sync().(NoopSyncHooks); !ok {
		t.Error("Sync() should return NoopSyncHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customLayout := &testLayoutHooks{}
	SetLayoutHooks(customLayout)
	if Layout() != customLayout {
		t.Error("SetLayoutHooks should set custom hooks")
	}
	customSync := &testSyncHooks{}
	SetSyncHooks(customSync)
	if Sync() != customSync {
		t.Error("SetSyncHooks should set custom hooks")
	}
	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Reset()
	if _, ok := Sync().(NoopSyncHooks); !ok {
		t.Error("Reset() should restore NoopSyncHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testLayoutHooks{}
	SetLayoutHooks(custom)
	SetLayoutHooks(nil)

	if Layout() != custom {
		t.Error("SetLayoutHooks(nil) should be ignored")
	}
}

func TestPrometheusHooks(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheus(prometheus.NewRegistry())

	p.OnLayoutStart(ctx, "layered", 4)
	p.OnLayoutComplete(ctx, "layered", 20*time.Millisecond, false)
	p.OnLayoutComplete(ctx, "layered", 5*time.Second, true)

	p.OnBatch(ctx, 2)
	p.OnBatch(ctx, 1)
	p.OnEdit(ctx, "resetLayout", nil)
	p.OnEdit(ctx, "resetLayout", errors.New("rejected"))
	p.OnSuppressed(ctx)

	p.OnCacheMiss(ctx, "layout")
	p.OnCacheSet(ctx, "layout", 512)
	p.OnCacheHit(ctx, "layout")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"SolverPlacements", testutil.ToFloat64(p.layoutTotal.WithLabelValues("layered", "solver")), 1},
		{"FallbackPlacements", testutil.ToFloat64(p.layoutTotal.WithLabelValues("layered", "fallback")), 1},
		{"Batches", testutil.ToFloat64(p.batches), 2},
		{"EditsOK", testutil.ToFloat64(p.edits.WithLabelValues("resetLayout", "ok")), 1},
		{"EditsFailed", testutil.ToFloat64(p.edits.WithLabelValues("resetLayout", "error")), 1},
		{"Suppressed", testutil.ToFloat64(p.suppressed), 1},
		{"CacheHits", testutil.ToFloat64(p.cacheOps.WithLabelValues("layout", "hit")), 1},
		{"CacheBytes", testutil.ToFloat64(p.cacheBytes), 512},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Errorf("got %v, want %v", c.got, c.want)
			}
		})
	}
}

func TestNewPrometheusDoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice on the same registry should panic")
		}
	}()
	NewPrometheus(reg)
}

type testLayoutHooks struct{ NoopLayoutHooks }
type testSyncHooks struct{ NoopSyncHooks }
type testCacheHooks struct{ NoopCacheHooks }
