package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaipe/async-graphql/internal/schema"
)

// delayedResolver resolves v after d, so completion order diverges from
// document order.
func delayedResolver(v any, d time.Duration) schema.ResolverFunc {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		time.Sleep(d)
		return v, nil
	}
}

func TestOrdering_DocumentOrderRegardlessOfCompletion(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "slow", Type: schema.NamedType("String"), Resolver: delayedResolver("s", 30*time.Millisecond)},
				{Name: "medium", Type: schema.NamedType("String"), Resolver: delayedResolver("m", 10*time.Millisecond)},
				{Name: "fast", Type: schema.NamedType("String"), Resolver: staticResolver("f")},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ slow medium fast }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"slow":"s","medium":"m","fast":"f"}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
}

func TestOrdering_QueryFieldsRunConcurrently(t *testing.T) {
	const n = 4
	const delay = 40 * time.Millisecond

	fields := make([]*schema.Field, n)
	for i := range fields {
		fields[i] = &schema.Field{
			Name:     string(rune('a' + i)),
			Type:     schema.NamedType("String"),
			Resolver: delayedResolver("x", delay),
		}
	}
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{Name: "Query", Kind: schema.TypeKindObject, Fields: fields}))
	exec := New(s)
	doc := mustParseQuery(t, "{ a b c d }")

	started := time.Now()
	exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	elapsed := time.Since(started)

	// Serial execution would take n*delay. Allow generous scheduling slack
	// while still ruling out serialization.
	if elapsed >= time.Duration(n)*delay {
		t.Fatalf("query fields appear to have run serially: took %v", elapsed)
	}
}

func TestOrdering_ListElementsKeepIndexOrder(t *testing.T) {
	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name:     "items",
				Type:     schema.ListType(schema.NamedType("Item")),
				Resolver: staticResolver([]any{map[string]any{"i": 0}, map[string]any{"i": 1}, map[string]any{"i": 2}}),
			}},
		}).
		AddType(&schema.Type{
			Name: "Item",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{{
				Name: "i",
				Type: schema.NamedType("Int"),
				Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
					i := source.(map[string]any)["i"].(int)
					// Later elements complete first.
					time.Sleep(time.Duration(2-i) * 10 * time.Millisecond)
					return i, nil
				},
			}},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ items { i } }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"items":[{"i":0},{"i":1},{"i":2}]}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
}

func TestOrdering_MutationRootFieldsRunSerially(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string, d time.Duration) schema.ResolverFunc {
		return func(ctx context.Context, source any, args map[string]any) (any, error) {
			time.Sleep(d)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		SetMutationType("Mutation").
		AddType(&schema.Type{
			Name:   "Query",
			Kind:   schema.TypeKindObject,
			Fields: []*schema.Field{{Name: "ok", Type: schema.NamedType("Boolean"), Resolver: staticResolver(true)}},
		}).
		AddType(&schema.Type{
			Name: "Mutation",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "first", Type: schema.NamedType("String"), Resolver: record("first", 30*time.Millisecond)},
				{Name: "second", Type: schema.NamedType("String"), Resolver: record("second", 10*time.Millisecond)},
				{Name: "third", Type: schema.NamedType("String"), Resolver: record("third", 0)},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "mutation { first second third }")

	resp := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	if got, want := dataJSON(t, resp), `{"first":"first","second":"second","third":"third"}`; got != want {
		t.Fatalf("data = %s, want %s", got, want)
	}
	// Side effects must have happened in document order even though the first
	// resolver is the slowest.
	if diff := cmp.Diff([]string{"first", "second", "third"}, order); diff != "" {
		t.Fatalf("mutation side-effect order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrdering_CanceledContextDiscardsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := mustBuildSchema(t, schema.NewBuilder().
		SetQueryType("Query").
		AddType(&schema.Type{
			Name: "Query",
			Kind: schema.TypeKindObject,
			Fields: []*schema.Field{
				{Name: "a", Type: schema.NamedType("String"), Resolver: staticResolver("A")},
				{
					Name: "b",
					Type: schema.NamedType("String"),
					Resolver: func(ctx context.Context, source any, args map[string]any) (any, error) {
						cancel()
						<-ctx.Done()
						return nil, ctx.Err()
					},
				},
			},
		}))
	exec := New(s)
	doc := mustParseQuery(t, "{ a b }")

	resp := exec.ExecuteRequest(ctx, doc, "", nil, nil)

	if resp.HasData {
		t.Fatal("canceled request must not return partial data")
	}
	if len(resp.Errors) == 0 {
		t.Fatal("canceled request must report an error")
	}
}
