package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/shaipe/async-graphql/internal/schema"
)

// nullPropSchema builds Query.outer: Outer, Outer.inner: Inner!,
// Inner.leaf: String! with the leaf failing. The null must travel from leaf
// through inner and stop at outer, the nearest nullable position.
func nullPropSchema(t *testing.T) *schema.Schema {
	return mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "outer", Type: schema.NamedType("Outer"), Resolver: staticResolver(map[string]any{})},
				{Name: "other", Type: schema.NamedType("String"), Resolver: staticResolver("ok")},
			},
		}).
		AddType(&schema.Type{
			Name: "Outer",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "inner", Type: schema.NonNullType(schema.NamedType("Inner")), Resolver: staticResolver(map[string]any{})},
			},
		}).
		AddType(&schema.Type{
			Name: "Inner",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "leaf", Type: schema.NonNullType(schema.NamedType("String")), Resolver: errorResolver(errors.New("boom"))},
			},
		}))
}

func TestNullPropagation_StopsAtNearestNullableAncestor(t *testing.T) {
	exec := New(nullPropSchema(t))
	doc := mustParseQuery(t, "{ outer { inner { leaf } } other }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"outer":null,"other":"ok"}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
	// Exactly one error for the whole chain, located at the field that failed.
	if len(resp.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %d: %v", len(resp.Errors), resp.Errors)
	}
	if got := resp.Errors[0].Path.String(); got != "outer.inner.leaf" {
		t.Fatalf("error path = %s, want outer.inner.leaf", got)
	}
}

func TestNullPropagation_NonNullLeafReturnsNull(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "obj", Type: schema.NamedType("Obj"), Resolver: staticResolver(map[string]any{})},
			},
		}).
		AddType(&schema.Type{
			Name: "Obj",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "a", Type: schema.NonNullType(schema.NamedType("String")), Resolver: staticResolver(nil)},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ obj { a } }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"obj":null}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %v", resp.Errors)
	}
	if got := resp.Errors[0].Path.String(); got != "obj.a" {
		t.Fatalf("error path = %s, want obj.a", got)
	}
}

func TestNullPropagation_RootViolationNullsData(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "a", Type: schema.NonNullType(schema.NamedType("String")), Resolver: errorResolver(errors.New("boom"))},
				{Name: "b", Type: schema.NamedType("String"), Resolver: staticResolver("B")},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ a b }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	// The violation reaches the root: the response still carries a data key,
	// but its value is null.
	if !resp.HasData {
		t.Fatal("root violation must keep the data key")
	}
	if resp.Data != nil {
		t.Fatalf("data = %v, want null", resp.Data)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %v", resp.Errors)
	}
}

func TestNullPropagation_SiblingIsolation(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "left", Type: schema.NamedType("Obj"), Resolver: staticResolver(map[string]any{"fail": true})},
				{Name: "right", Type: schema.NamedType("Obj"), Resolver: staticResolver(map[string]any{"fail": false})},
			},
		}).
		AddType(&schema.Type{
			Name: "Obj",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name: "a",
				Type: schema.NonNullType(schema.NamedType("String")),
				Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
					if source.(map[string]any)["fail"].(bool) {
						return nil, errors.New("boom")
					}
					return "A", nil
				},
			}},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ left { a } right { a } }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"left":null,"right":{"a":"A"}}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %v", resp.Errors)
	}
}

func TestNullPropagation_Lists(t *testing.T) {
	t.Run("nullable elements absorb their own failures", func(t *testing.T) {
		s := mustBuildSchema(t, schema.NewBuilder().
			SetQueryType("Query").
			AddType(&schema.Type{
				Name: "Query",
				Kind: schema.TypeKindObject,
				Fields: []*schema.Field{{
					Name:     "nums",
					Type:     schema.ListType(schema.NamedType("Int")),
					Resolver: staticResolver([]any{1, "bad", 3}),
				}},
			}))
		exec := New(s)
		doc := mustParseQuery(t, "{ nums }")

		resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		if got, want := dataJSON(t, resp), `{"nums":[1,null,3]}`; got != want {
			t.Fatalf("data = %s, want %s", got, want)
		}
		if len(resp.Errors) != 1 {
			t.Fatalf("expected one error, got %v", resp.Errors)
		}
		if got := resp.Errors[0].Path.String(); got != "nums[1]" {
			t.Fatalf("error path = %s, want nums[1]", got)
		}
	})

	t.Run("non-null element failure poisons the list", func(t *testing.T) {
		s := mustBuildSchema(t, schema.NewBuilder().
			SetQueryType("Query").
			AddType(&schema.Type{
				Name: "Query",
				Kind: schema.TypeKindObject,
				Fields: []*schema.Field{{
					Name:     "nums",
					Type:     schema.ListType(schema.NonNullType(schema.NamedType("Int"))),
					Resolver: staticResolver([]any{1, nil, 3}),
				}},
			}))
		exec := New(s)
		doc := mustParseQuery(t, "{ nums }")

		resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		if got, want := dataJSON(t, resp), `{"nums":null}`; got != want {
			t.Fatalf("data = %s, want %s", got, want)
		}
		if len(resp.Errors) != 1 {
			t.Fatalf("expected one error, got %v", resp.Errors)
		}
		if got := resp.Errors[0].Path.String(); got != "nums[1]" {
			t.Fatalf("error path = %s, want nums[1]", got)
		}
	})

	t.Run("non-null list of non-null elements propagates past the list", func(t *testing.T) {
		s := mustBuildSchema(t, schema.NewBuilder().
			SetQueryType("Query").
			AddType(&schema.Type{
				Name: "Query",
				Kind: schema.TypeKindObject,
				Fields: []*schema.Field{
					{Name: "obj", Type: schema.NamedType("Obj"), Resolver: staticResolver(map[string]any{})},
				},
			}).
			AddType(&schema.Type{
				Name: "Obj",
				Kind: schema.TypeKindObject,
				Fields: []*schema.Field{{
					Name:     "nums",
					Type:     schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Int")))),
					Resolver: staticResolver([]any{nil}),
				}},
			}))
		exec := New(s)
		doc := mustParseQuery(t, "{ obj { nums } }")

		resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		if got, want := dataJSON(t, resp), `{"obj":null}`; got != want {
			t.Fatalf("data = %s, want %s", got, want)
		}
		if len(resp.Errors) != 1 {
			t.Fatalf("expected one error, got %v", resp.Errors)
		}
		if got := resp.Errors[0].Path.String(); got != "obj.nums[0]" {
			t.Fatalf("error path = %s, want obj.nums[0]", got)
		}
	})
}
