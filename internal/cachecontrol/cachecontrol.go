// Package cachecontrol implements advisory response caching hints. Fields and
// types declare how long their values may be cached; the collector aggregates
// hints across a response to the strictest combination (lowest max-age, most
// restrictive scope). Hints never affect execution correctness.
package cachecontrol

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Scope restricts who may share a cached response.
type Scope int

const (
	ScopePublic Scope = iota
	ScopePrivate
)

func (s Scope) String() string {
	if s == ScopePrivate {
		return "private"
	}
	return "public"
}

// Hint is one field's or type's caching annotation.
type Hint struct {
	MaxAge time.Duration
	Scope  Scope
}

// String renders the hint as an HTTP Cache-Control value.
func (h Hint) String() string {
	return fmt.Sprintf("%s, max-age=%d", h.Scope, int(h.MaxAge.Seconds()))
}

// Collector aggregates hints for one request. The zero state reports no hint,
// meaning the transport should not emit caching headers.
type Collector struct {
	mu       sync.Mutex
	strictly Hint
	seen     bool
}

func NewCollector() *Collector { return &Collector{} }

// Add merges h into the aggregate: the lowest max-age wins and ScopePrivate
// beats ScopePublic.
func (c *Collector) Add(h Hint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seen {
		c.strictly = h
		c.seen = true
		return
	}
	if h.MaxAge < c.strictly.MaxAge {
		c.strictly.MaxAge = h.MaxAge
	}
	if h.Scope == ScopePrivate {
		c.strictly.Scope = ScopePrivate
	}
}

// Hint returns the aggregated hint and whether any hint was recorded.
func (c *Collector) Hint() (Hint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strictly, c.seen
}

type ctxKey struct{}

// NewContext returns a copy of parent carrying c.
func NewContext(parent context.Context, c *Collector) context.Context {
	return context.WithValue(parent, ctxKey{}, c)
}

// AddHint records h on the request's collector, if one is attached. Resolvers
// call this to annotate dynamic cacheability.
func AddHint(ctx context.Context, h Hint) {
	if c, ok := ctx.Value(ctxKey{}).(*Collector); ok {
		c.Add(h)
	}
}
