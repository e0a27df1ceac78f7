// Package store is a JSON key/value cache handle with helpers for
// building content-hash keys. In this module it holds the REST API's
// job-status records; the candidate enumerator takes no cache, and every
// run builds its hash grid afresh.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned by GetJSON when key is absent.
var ErrNotFound = errors.New("store: not found")

// Cache is a small JSON-marshalling key/value store. Every method is
// context-first so a cache backed by a real remote store (not shipped
// here) can honour cancellation.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) error
	SetJSON(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NewInMemoryCache returns a process-local Cache backed by a mutex and a
// map, the only Cache implementation this module ships.
func NewInMemoryCache() Cache {
	return &inMemoryCache{data: make(map[string][]byte)}
}

type inMemoryCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (c *inMemoryCache) GetJSON(ctx context.Context, key string, out any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.RLock()
	raw, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return json.Unmarshal(raw, out)
}

func (c *inMemoryCache) SetJSON(ctx context.Context, key string, value any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %q: %w", key, err)
	}

	c.mu.Lock()
	c.data[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *inMemoryCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *inMemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	c.mu.RLock()
	_, ok := c.data[key]
	c.mu.RUnlock()
	return ok, nil
}

// ContentKey derives a cache key from an ordered list of content
// fingerprints (e.g. a catalogue's row count + modtime, or a radius
// value rendered as text): callers own what goes into parts, ContentKey
// only guarantees a stable, collision-resistant digest of them.
func ContentKey(namespace string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))[:24]
}

// JoinedKey is a convenience for building ContentKey parts out of a
// catalogue name list, keeping enumerator cache keys stable regardless
// of map iteration order elsewhere in the pipeline.
func JoinedKey(names []string) string {
	return strings.Join(names, "|")
}
