package executor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/shaipe/async-graphql/internal/schema"
)

func TestCollect_AliasesInvokeResolverPerResponseKey(t *testing.T) {
	var calls atomic.Int64
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name: "a",
				Type: schema.NamedType("String"),
				Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
					calls.Add(1)
					return "A", nil
				},
			}},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ a renamed: a }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"a":"A","renamed":"A"}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("resolver invoked %d times, want 2", got)
	}
}

func TestCollect_SameKeySelectionsMergeIntoOneInvocation(t *testing.T) {
	var calls atomic.Int64
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name: "obj",
				Type: schema.NamedType("Obj"),
				Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
					calls.Add(1)
					return map[string]any{"a": "A", "b": "B"}, nil
				},
			}},
		}).
		AddType(&schema.Type{
			Name: "Obj",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "a", Type: schema.NamedType("String")},
				{Name: "b", Type: schema.NamedType("String")},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ obj { a } obj { b } }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"obj":{"a":"A","b":"B"}}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("resolver invoked %d times, want 1 for merged groups", got)
	}
}

func TestCollect_SkipAndInclude(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "a", Type: schema.NamedType("String"), Resolver: staticResolver("A")},
				{Name: "b", Type: schema.NamedType("String"), Resolver: staticResolver("B")},
			},
		}))
	exec := New(s)

	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  string
	}{
		{
			name:  "skip true removes field",
			query: `{ a @skip(if: true) b }`,
			want:  `{"b":"B"}`,
		},
		{
			name:  "include false removes field",
			query: `{ a @include(if: false) b }`,
			want:  `{"b":"B"}`,
		},
		{
			name:  "skip wins over include",
			query: `{ a @skip(if: true) @include(if: true) b }`,
			want:  `{"b":"B"}`,
		},
		{
			name:  "variable controls skip",
			query: `query Q($s: Boolean!) { a @skip(if: $s) b }`,
			vars:  map[string]any{"s": false},
			want:  `{"a":"A","b":"B"}`,
		},
		{
			name:  "skip on inline fragment",
			query: `{ ... @skip(if: true) { a } b }`,
			want:  `{"b":"B"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParseQuery(t, tt.query)
			resp := exec.ExecuteRequest(context.Background(), doc, "", tt.vars, nil)
			if got := dataJSON(t, resp); got != tt.want {
				t.Fatalf("data = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCollect_Typename(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "a", Type: schema.NamedType("String"), Resolver: staticResolver("A")},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ __typename a }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"__typename":"Query","a":"A"}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
}

func TestCollect_FragmentsOnAbstractTypes(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name:     "node",
				Type:     schema.NamedType("Node"),
				Resolver: staticResolver(map[string]any{"id": "u1", "name": "alice"}),
			}},
		}).
		AddType(&schema.Type{
			Name: "Node",
			Kind: schema.TypeKindInterface,
			Fields: []*schema.Field{
				{Name: "id", Type: schema.NonNullType(schema.NamedType("ID"))},
			},
			ResolveType: func(ctx context.Context, v any) (string, error) { return "User", nil },
		}).
		AddType(&schema.Type{
			Name:       "User",
			Kind:       schema.TypeKindObject,
			Interfaces: []string{"Node"},
			Fields: []*schema.Field{
				{Name: "id", Type: schema.NonNullType(schema.NamedType("ID"))},
				{Name: "name", Type: schema.NamedType("String")},
			},
		}).
		AddType(&schema.Type{
			Name:       "Robot",
			Kind:       schema.TypeKindObject,
			Interfaces: []string{"Node"},
			Fields: []*schema.Field{
				{Name: "id", Type: schema.NonNullType(schema.NamedType("ID"))},
				{Name: "serial", Type: schema.NamedType("String")},
			},
		}))
	exec := New(s)

	t.Run("inline fragment matching concrete type", func(t *testing.T) {
		doc := mustParseQuery(t, `{ node { id ... on User { name } ... on Robot { serial } } }`)
		resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
		if got, want := dataJSON(t, resp), `{"node":{"id":"u1","name":"alice"}}`; got != want {
			t.Fatalf("data = %s, want %s", got, want)
		}
	})

	t.Run("named fragment spread", func(t *testing.T) {
		doc := mustParseQuery(t, `
			{ node { ...userFields } }
			fragment userFields on User { id name }`)
		resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
		if got, want := dataJSON(t, resp), `{"node":{"id":"u1","name":"alice"}}`; got != want {
			t.Fatalf("data = %s, want %s", got, want)
		}
	})

	t.Run("interface condition on concrete object", func(t *testing.T) {
		doc := mustParseQuery(t, `{ node { ... on Node { id } } }`)
		resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
		if got, want := dataJSON(t, resp), `{"node":{"id":"u1"}}`; got != want {
			t.Fatalf("data = %s, want %s", got, want)
		}
	})
}
