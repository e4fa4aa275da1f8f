// Package databag provides the per-request shared data bag: typed, keyed
// storage that resolvers use to pass values down the execution tree. A bag is
// created once per request and carried on the request context; it is never
// shared across requests.
package databag

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when no entry exists for a key. Resolvers should
	// treat it as a field-local failure, not a fatal condition.
	ErrNotFound = errors.New("databag: key not found")
	// ErrDuplicateKey is returned by Store when the key is already present.
	// Entries are insert-only for the lifetime of the request.
	ErrDuplicateKey = errors.New("databag: key already stored")
)

// Bag is a concurrency-safe, insert-only key/value store. Keys follow the
// context.Context convention: use unexported key types to avoid collisions.
type Bag struct {
	mu      sync.RWMutex
	entries map[any]any
}

func New() *Bag {
	return &Bag{entries: make(map[any]any)}
}

// Store inserts value under key. Later resolvers may read the entry but
// nothing can replace or remove it.
func (b *Bag) Store(key, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
	}
	b.entries[key] = value
	return nil
}

func (b *Bag) lookup(key any) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.entries[key]
	return v, ok
}

// Get returns the entry stored under key as a T.
func Get[T any](b *Bag, key any) (T, error) {
	var zero T
	v, ok := b.lookup(key)
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	tv, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("databag: entry %v holds %T, not %T", key, v, zero)
	}
	return tv, nil
}

type ctxKey struct{}

// NewContext returns a copy of parent carrying bag.
func NewContext(parent context.Context, bag *Bag) context.Context {
	return context.WithValue(parent, ctxKey{}, bag)
}

// FromContext extracts the request's bag. The executor attaches one to every
// resolver invocation; the second return is false outside an execution.
func FromContext(ctx context.Context) (*Bag, bool) {
	b, ok := ctx.Value(ctxKey{}).(*Bag)
	return b, ok
}
