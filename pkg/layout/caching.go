package layout

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/codeflow/pkg/cache"
	"github.com/matzehuels/codeflow/pkg/observability"
)

const layoutKeyType = "layout"

// CachingSolver memoizes another solver by request.
//
// Manual overrides are not part of the request, so dragging an entity does
// not invalidate the cached placement. Cache errors are logged and treated as
// misses.
type CachingSolver struct {
	inner  Solver
	cache  cache.Cache
	keyer  cache.Keyer
	ttl    time.Duration
	logger *log.Logger
}

// NewCachingSolver wraps inner. A nil keyer uses cache.NewDefaultKeyer and a
// nil logger discards output.
func NewCachingSolver(inner Solver, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *CachingSolver {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CachingSolver{inner: inner, cache: c, keyer: keyer, ttl: cache.LayoutTTL, logger: logger}
}

// Name implements Solver.
func (s *CachingSolver) Name() string { return s.inner.Name() }

// Key returns the cache key for a request.
func (s *CachingSolver) Key(t *Tree) (string, error) {
	req, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	opts := cache.LayoutKeyOpts{Solver: s.inner.Name()}
	if t.Root != nil && t.Root.Options != nil {
		opts.Mode = t.Root.Options.Mode
		opts.Direction = t.Root.Options.Direction
	}
	return s.keyer.LayoutKey(cache.Digest(req), opts), nil
}

// Place implements Solver.
func (s *CachingSolver) Place(ctx context.Context, t *Tree) (*Tree, error) {
	key, err := s.Key(t)
	if err != nil {
		return s.inner.Place(ctx, t)
	}
	hooks := observability.Cache()

	data, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Debug("layout cache read failed", "err", err)
	} else if hit {
		var out Tree
		if err := json.Unmarshal(data, &out); err == nil && out.Root != nil {
			hooks.OnCacheHit(ctx, layoutKeyType)
			return &out, nil
		}
		s.logger.Debug("discarding unreadable layout cache entry", "key", key)
	}
	hooks.OnCacheMiss(ctx, layoutKeyType)

	out, err := s.inner.Place(ctx, t)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.logger.Debug("layout cache write failed", "err", err)
		} else {
			hooks.OnCacheSet(ctx, layoutKeyType, len(data))
		}
	}
	return out, nil
}
