package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
)

// mustParseQuery parses a query document and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// mustBuildSchema finalizes a builder and fails the test on validation errors.
func mustBuildSchema(t *testing.T, b *schema.Builder) *schema.Schema {
	t.Helper()
	s, err := b.Build()
	if err != nil {
		t.Fatalf("schema build error: %v", err)
	}
	return s
}

// dataJSON renders a response's data tree as JSON. Field order in the output
// is the response order, so comparisons against a literal string also check
// ordering.
func dataJSON(t *testing.T, resp *Response) string {
	t.Helper()
	if !resp.HasData {
		t.Fatalf("response has no data key; errors: %v", resp.Errors)
	}
	b, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return string(b)
}

// staticResolver returns the same value for every invocation.
func staticResolver(v any) schema.ResolverFunc {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return v, nil
	}
}

// errorResolver fails every invocation with err.
func errorResolver(err error) schema.ResolverFunc {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}
