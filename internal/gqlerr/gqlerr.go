// Package gqlerr defines located GraphQL errors: every field failure carries
// the response path it occurred at so clients can attribute it even when the
// value at that path was nulled out.
package gqlerr

import (
	"fmt"
	"strings"
	"sync"
)

// Path locates a value in the response tree. Elements are string field
// response names and int list indices, from the root down.
type Path []any

// Append returns a copy of p with elem added. The receiver is never mutated;
// sibling fields extend the same parent path concurrently.
func (p Path) Append(elem any) Path {
	next := make(Path, len(p)+1)
	copy(next, p)
	next[len(p)] = elem
	return next
}

func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		}
	}
	return b.String()
}

// Location is a position in the request document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is one entry in a response's errors array.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (path: %s)", e.Message, e.Path)
}

// Errorf builds an unlocated error.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// List collects errors during one execution. Appends are serialized because
// sibling fields may resolve concurrently; the list belongs to exactly one
// request and is drained once into the final response.
type List struct {
	mu   sync.Mutex
	errs []*Error
}

func NewList() *List { return &List{} }

// Add records err. Nothing is deduplicated: independent failures with equal
// messages still differ by path.
func (l *List) Add(err *Error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

// AddAt records an error built from err at the given path. If err is already
// a located *Error its message and extensions are kept.
func (l *List) AddAt(path Path, err error) {
	if ge, ok := err.(*Error); ok {
		l.Add(&Error{Message: ge.Message, Locations: ge.Locations, Path: path, Extensions: ge.Extensions})
		return
	}
	l.Add(&Error{Message: err.Error(), Path: path})
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

// Drain returns the accumulated errors and must be called once, after all
// execution for the request has finished.
func (l *List) Drain() []*Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.errs
	l.errs = nil
	return out
}
