// Package cache stores computed layouts so that re-rendering an unchanged
// document does not call the layout solver again.
//
// Three backends implement [Cache]:
//   - [FileCache]: one JSON file per entry under a cache directory (CLI, serve)
//   - [RedisCache]: shared cache for several serve instances
//   - [Disabled]: stores nothing, for --no-cache and unusable backends
//
// Keys are built by a [Keyer] so that every backend agrees on the layout of
// the key space.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	// A missing or expired key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Disabled returns a Cache on which every Get misses and every write is
// dropped.
func Disabled() Cache { return disabled{} }

type disabled struct{}

func (disabled) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (disabled) Delete(context.Context, string) error                     { return nil }
func (disabled) Close() error                                             { return nil }

// Default TTLs.
const (
	// LayoutTTL bounds how long a solver result is reused.
	LayoutTTL = 7 * 24 * time.Hour
)
