package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/shaipe/async-graphql/internal/gqlerr"
	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
	"github.com/shaipe/async-graphql/internal/value"
)

// completeValue converts a resolved value into its response form according to
// the field's declared type. The second return reports a non-null violation
// at THIS position: the error is already recorded and the caller must null
// out its own level if it cannot hold a null here.
//
// A nullable position absorbs failures from below: it becomes null and
// reports violated=false, which is where propagation stops. Exactly one error
// is recorded per failure no matter how far the null travels.
func completeValue(
	ctx context.Context,
	ectx *execContext,
	fieldType *schema.TypeRef,
	fields []*language.Field,
	resolved any,
	path gqlerr.Path,
) (any, bool) {
	if fieldType.IsNonNull() {
		completed, failed := completeWrappedValue(ctx, ectx, fieldType.Unwrap(), fields, resolved, path)
		if failed {
			return nil, true
		}
		if value.IsNullish(completed) {
			ectx.fieldError(ctx, path, fmt.Errorf("cannot return null for non-nullable field %s", path.String()))
			return nil, true
		}
		return completed, false
	}

	completed, failed := completeWrappedValue(ctx, ectx, fieldType, fields, resolved, path)
	if failed {
		return nil, false
	}
	return completed, false
}

// completeWrappedValue completes a value at a position whose nullability has
// already been decided by the caller. failed=true means the value could not
// be produced and an error is recorded; the caller decides whether null is
// acceptable in its place.
func completeWrappedValue(
	ctx context.Context,
	ectx *execContext,
	fieldType *schema.TypeRef,
	fields []*language.Field,
	resolved any,
	path gqlerr.Path,
) (any, bool) {
	if value.IsNullish(resolved) {
		return nil, false
	}

	if fieldType.IsList() {
		return completeListValue(ctx, ectx, fieldType.Unwrap(), fields, resolved, path)
	}

	namedType := ectx.schema.Types[fieldType.NamedTypeName()]
	if namedType == nil {
		ectx.fieldError(ctx, path, fmt.Errorf("unknown type %q", fieldType.NamedTypeName()))
		return nil, true
	}

	switch namedType.Kind {
	case schema.TypeKindScalar:
		return completeLeafScalar(ctx, ectx, namedType, resolved, path)
	case schema.TypeKindEnum:
		return completeLeafEnum(ctx, ectx, namedType, resolved, path)
	case schema.TypeKindObject:
		if namedType.CacheHint != nil {
			ectx.cache.Add(*namedType.CacheHint)
		}
		set := mergeSelectionSets(fields)
		m, violated := executeSelectionSet(ctx, ectx, namedType, set, resolved, path, false)
		if violated {
			return nil, true
		}
		return m, false
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(ctx, ectx, namedType, fields, resolved, path)
	default:
		ectx.fieldError(ctx, path, fmt.Errorf("type %q cannot be used as an output type", namedType.Name))
		return nil, true
	}
}

// completeListValue completes each element of a resolved slice concurrently,
// keeping index order. A failing non-null element poisons the whole list; a
// failing nullable element becomes a null entry and the rest survive.
func completeListValue(
	ctx context.Context,
	ectx *execContext,
	elementType *schema.TypeRef,
	fields []*language.Field,
	resolved any,
	path gqlerr.Path,
) (any, bool) {
	rv := reflect.ValueOf(resolved)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		ectx.fieldError(ctx, path, fmt.Errorf("expected a list for field %s but resolver returned %T", path.String(), resolved))
		return nil, true
	}

	n := rv.Len()
	out := make([]any, n)
	violations := make([]bool, n)

	if n > 1 {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i], violations[i] = completeValue(ctx, ectx, elementType, fields, rv.Index(i).Interface(), path.Append(i))
			}(i)
		}
		wg.Wait()
	} else {
		for i := 0; i < n; i++ {
			out[i], violations[i] = completeValue(ctx, ectx, elementType, fields, rv.Index(i).Interface(), path.Append(i))
		}
	}

	for _, v := range violations {
		if v {
			return nil, true
		}
	}
	return out, false
}

func completeLeafScalar(ctx context.Context, ectx *execContext, t *schema.Type, resolved any, path gqlerr.Path) (any, bool) {
	if t.Serialize == nil {
		return resolved, false
	}
	serialized, err := t.Serialize(resolved)
	if err != nil {
		ectx.fieldError(ctx, path, fmt.Errorf("cannot serialize value as %s: %v", t.Name, err))
		return nil, true
	}
	return serialized, false
}

func completeLeafEnum(ctx context.Context, ectx *execContext, t *schema.Type, resolved any, path gqlerr.Path) (any, bool) {
	symbol, ok := resolved.(string)
	if !ok || !t.HasEnumValue(symbol) {
		ectx.fieldError(ctx, path, fmt.Errorf("value %v is not a member of enum %s", resolved, t.Name))
		return nil, true
	}
	return symbol, false
}

// completeAbstractValue resolves the concrete runtime type of an interface or
// union value, then completes it as that object type. The reported type must
// be a declared possible type of the abstract type.
func completeAbstractValue(
	ctx context.Context,
	ectx *execContext,
	abstractType *schema.Type,
	fields []*language.Field,
	resolved any,
	path gqlerr.Path,
) (any, bool) {
	if abstractType.ResolveType == nil {
		ectx.fieldError(ctx, path, fmt.Errorf("abstract type %s has no type resolver", abstractType.Name))
		return nil, true
	}
	typeName, err := abstractType.ResolveType(ctx, resolved)
	if err != nil {
		ectx.fieldError(ctx, path, err)
		return nil, true
	}
	if !ectx.schema.IsPossibleType(abstractType.Name, typeName) {
		ectx.fieldError(ctx, path, fmt.Errorf("runtime type %q is not a possible type of %q", typeName, abstractType.Name))
		return nil, true
	}
	concreteType := ectx.schema.Types[typeName]
	if concreteType.CacheHint != nil {
		ectx.cache.Add(*concreteType.CacheHint)
	}

	set := mergeSelectionSets(fields)
	m, violated := executeSelectionSet(ctx, ectx, concreteType, set, resolved, path, false)
	if violated {
		return nil, true
	}
	return m, false
}
