package executor

import (
	"context"

	"github.com/shaipe/async-graphql/internal/cachecontrol"
	"github.com/shaipe/async-graphql/internal/databag"
	"github.com/shaipe/async-graphql/internal/eventbus"
	"github.com/shaipe/async-graphql/internal/events"
	"github.com/shaipe/async-graphql/internal/gqlerr"
	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
)

// execContext is the per-request execution state. It is created once per
// request (or once per subscription event) and shared by reference across the
// recursive executor calls of that one request; requests never share one.
type execContext struct {
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	bag            *databag.Bag
	errs           *gqlerr.List
	cache          *cachecontrol.Collector
}

func newExecContext(s *schema.Schema, doc *language.QueryDocument, vars map[string]any) *execContext {
	return &execContext{
		schema:         s,
		document:       doc,
		variableValues: vars,
		bag:            databag.New(),
		errs:           gqlerr.NewList(),
		cache:          cachecontrol.NewCollector(),
	}
}

// fieldError records a field-level failure in the response's error list and
// announces it on the event bus for observability subscribers.
func (ectx *execContext) fieldError(ctx context.Context, path gqlerr.Path, err error) {
	ectx.errs.AddAt(path, err)
	msg := err.Error()
	if ge, ok := err.(*gqlerr.Error); ok {
		msg = ge.Message
	}
	eventbus.Publish(ctx, events.FieldError{Path: path.String(), Message: msg})
}

// resolverContext attaches the request-scoped collaborators a resolver may
// reach for: the data bag, the cache-hint collector, and its own path.
func (ectx *execContext) resolverContext(ctx context.Context, path gqlerr.Path) context.Context {
	ctx = databag.NewContext(ctx, ectx.bag)
	ctx = cachecontrol.NewContext(ctx, ectx.cache)
	return withPath(ctx, path)
}

type pathCtxKey struct{}

func withPath(parent context.Context, path gqlerr.Path) context.Context {
	return context.WithValue(parent, pathCtxKey{}, path)
}

// CurrentPath returns the response path of the field whose resolver is
// running. Outside a resolver invocation it returns nil.
func CurrentPath(ctx context.Context) gqlerr.Path {
	p, _ := ctx.Value(pathCtxKey{}).(gqlerr.Path)
	return p
}
