package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements every hook interface with client_golang collectors.
type Prometheus struct {
	layoutDuration *prometheus.HistogramVec
	layoutTotal    *prometheus.CounterVec
	layoutNodes    prometheus.Histogram

	batches    prometheus.Counter
	batchSize  prometheus.Histogram
	edits      *prometheus.CounterVec
	suppressed prometheus.Counter

	cacheOps   *prometheus.CounterVec
	cacheBytes prometheus.Counter
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		layoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codeflow",
			Subsystem: "layout",
			Name:      "duration_seconds",
			Help:      "Layout compile latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"mode"}),
		layoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeflow",
			Subsystem: "layout",
			Name:      "compiles_total",
			Help:      "Layout compiles by mode and placement source",
		}, []string{"mode", "placement"}),
		layoutNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codeflow",
			Subsystem: "layout",
			Name:      "nodes",
			Help:      "Number of nodes per layout request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codeflow",
			Subsystem: "sync",
			Name:      "batches_total",
			Help:      "updatePositions batches flushed by render sessions",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codeflow",
			Subsystem: "sync",
			Name:      "batch_changes",
			Help:      "Changes carried per updatePositions batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeflow",
			Subsystem: "sync",
			Name:      "edits_total",
			Help:      "Document edits by operation and status",
		}, []string{"op", "status"}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codeflow",
			Subsystem: "sync",
			Name:      "suppressed_total",
			Help:      "Store notifications dropped by the self-edit guard",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeflow",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache lookups and writes by key type and result",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codeflow",
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache",
		}),
	}

	reg.MustRegister(
		p.layoutDuration, p.layoutTotal, p.layoutNodes,
		p.batches, p.batchSize, p.edits, p.suppressed,
		p.cacheOps, p.cacheBytes,
	)
	return p
}

// OnLayoutStart implements LayoutHooks.
func (p *Prometheus) OnLayoutStart(_ context.Context, _ string, nodeCount int) {
	p.layoutNodes.Observe(float64(nodeCount))
}

// OnLayoutComplete implements LayoutHooks.
func (p *Prometheus) OnLayoutComplete(_ context.Context, mode string, d time.Duration, fallback bool) {
	placement := "solver"
	if fallback {
		placement = "fallback"
	}
	p.layoutDuration.WithLabelValues(mode).Observe(d.Seconds())
	p.layoutTotal.WithLabelValues(mode, placement).Inc()
}

// OnBatch implements SyncHooks.
func (p *Prometheus) OnBatch(_ context.Context, n int) {
	p.batches.Inc()
	p.batchSize.Observe(float64(n))
}

// OnEdit implements SyncHooks.
func (p *Prometheus) OnEdit(_ context.Context, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.edits.WithLabelValues(op, status).Inc()
}

// OnSuppressed implements SyncHooks.
func (p *Prometheus) OnSuppressed(context.Context) {
	p.suppressed.Inc()
}

// OnCacheHit implements CacheHooks.
func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements CacheHooks.
func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements CacheHooks.
func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheOps.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.Add(float64(size))
}

var (
	_ LayoutHooks = (*Prometheus)(nil)
	_ SyncHooks   = (*Prometheus)(nil)
	_ CacheHooks  = (*Prometheus)(nil)
)
