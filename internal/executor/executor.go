// Package executor implements selection-set execution: it walks a validated
// query document against the type registry, invokes resolver capabilities,
// and completes values according to the GraphQL null-propagation rules while
// accumulating located errors for partial success.
//
// Sibling fields of query operations and list elements resolve concurrently;
// the response always follows document and index order regardless of
// completion order. Mutation root fields run strictly sequentially. A failing
// field nulls out exactly the chain up to its nearest nullable ancestor and
// never disturbs its siblings.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/shaipe/async-graphql/internal/gqlerr"
	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
	"github.com/shaipe/async-graphql/internal/value"
)

// Executor runs operations against one immutable schema. It is safe for
// concurrent use by any number of requests.
type Executor struct {
	schema *schema.Schema
}

func New(s *schema.Schema) *Executor {
	return &Executor{schema: s}
}

// ExecuteRequest executes the query or mutation operation selected by
// operationName (subscriptions go through ExecuteSubscription). The document
// is assumed to have passed validation; variableValues are raw client inputs.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	rootValue any,
) *Response {
	operation := getOperation(document, operationName)
	if operation == nil {
		return errorResponse(gqlerr.Errorf("operation not found"))
	}
	if operation.Operation == language.Subscription {
		return errorResponse(gqlerr.Errorf("subscription operations must be executed through a subscription transport"))
	}

	coercedVariables, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return errorResponse(gqlerr.Errorf("%s", err.Error()))
	}

	var rootType *schema.Type
	serial := false
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
		serial = true
	}
	if rootType == nil {
		return errorResponse(gqlerr.Errorf("root type not found for %s operation", operation.Operation))
	}

	ectx := newExecContext(e.schema, document, coercedVariables)
	data, violated := executeSelectionSet(ctx, ectx, rootType, operation.SelectionSet, rootValue, gqlerr.Path{}, serial)

	if ctx.Err() != nil {
		// Canceled requests discard partial results rather than returning them.
		return errorResponse(gqlerr.Errorf("operation canceled: %s", ctx.Err()))
	}

	resp := &Response{HasData: true, Errors: ectx.errs.Drain()}
	if !violated {
		resp.Data = data
	}
	if hint, ok := ectx.cache.Hint(); ok {
		h := hint
		resp.CacheControl = &h
	}
	return resp
}

// getOperation selects the operation from the document: by name, or the sole
// operation when no name is given.
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

// fieldResult is one resolved member of a selection set, kept in document
// order while siblings complete concurrently.
type fieldResult struct {
	name     string
	val      any
	violated bool
}

// executeSelectionSet resolves the merged fields of selectionSet against
// objectValue. It returns the ordered result map, or (nil, true) when a
// non-null child forced this level to null out.
//
// serial forces strict document-order execution, required for mutation root
// fields whose side effects must not interleave.
func executeSelectionSet(
	ctx context.Context,
	ectx *execContext,
	objectType *schema.Type,
	selectionSet language.SelectionSet,
	objectValue any,
	path gqlerr.Path,
	serial bool,
) (*value.Map, bool) {
	grouped := collectFields(ectx, objectType, selectionSet).orderedFields()
	results := make([]fieldResult, len(grouped))

	if serial || len(grouped) <= 1 {
		for i, cf := range grouped {
			results[i] = executeFieldGroup(ctx, ectx, objectType, objectValue, cf, path)
		}
	} else {
		var wg sync.WaitGroup
		for i, cf := range grouped {
			wg.Add(1)
			go func(i int, cf collectedField) {
				defer wg.Done()
				results[i] = executeFieldGroup(ctx, ectx, objectType, objectValue, cf, path)
			}(i, cf)
		}
		wg.Wait()
	}

	resultMap := value.NewMap()
	for _, r := range results {
		if r.name == "" {
			// Unknown field: error already recorded, key excluded from output.
			continue
		}
		if r.violated {
			// A non-null child failed; this whole level nulls out, bubbling to
			// the nearest nullable ancestor. Siblings at higher levels are
			// unaffected.
			return nil, true
		}
		resultMap.Set(r.name, r.val)
	}
	return resultMap, false
}

// executeFieldGroup resolves one merged field group: bind arguments, invoke
// the resolver capability, complete the value against the declared type.
func executeFieldGroup(
	ctx context.Context,
	ectx *execContext,
	objectType *schema.Type,
	objectValue any,
	cf collectedField,
	parentPath gqlerr.Path,
) fieldResult {
	field := cf.Fields[0]
	path := parentPath.Append(cf.ResponseName)

	if field.Name == "__typename" {
		return fieldResult{name: cf.ResponseName, val: objectType.Name}
	}

	fieldDef := objectType.Field(field.Name)
	if fieldDef == nil {
		ectx.fieldError(ctx, path, fmt.Errorf("cannot query field %q on type %q", field.Name, objectType.Name))
		return fieldResult{}
	}

	if ctx.Err() != nil {
		// The request is being torn down; partial results are discarded by
		// ExecuteRequest, so skip the resolver call entirely.
		return fieldResult{name: cf.ResponseName}
	}

	if fieldDef.CacheHint != nil {
		ectx.cache.Add(*fieldDef.CacheHint)
	}

	args, ok := coerceArgumentValues(ctx, ectx, fieldDef, field.Arguments, path)
	if !ok {
		return fieldResult{name: cf.ResponseName, violated: schema.IsNonNull(fieldDef.Type)}
	}

	resolved, err := invokeResolver(ctx, ectx, fieldDef, objectValue, args, path)
	if err != nil {
		ectx.fieldError(ctx, path, err)
		return fieldResult{name: cf.ResponseName, violated: schema.IsNonNull(fieldDef.Type)}
	}

	completed, violated := completeValue(ctx, ectx, fieldDef.Type, cf.Fields, resolved, path)
	return fieldResult{name: cf.ResponseName, val: completed, violated: violated}
}

// invokeResolver calls the field's resolver capability with the request
// context annotated for this field. Panics become field errors; they never
// take down sibling resolution.
func invokeResolver(
	ctx context.Context,
	ectx *execContext,
	fieldDef *schema.Field,
	source any,
	args map[string]any,
	path gqlerr.Path,
) (result any, err error) {
	if fieldDef.Resolver == nil {
		return defaultResolve(source, fieldDef.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fieldDef.Resolver(ectx.resolverContext(ctx, path), source, args)
}

// defaultResolve serves fields without a declared resolver by projecting the
// field name out of a map source.
func defaultResolve(source any, fieldName string) (any, error) {
	switch src := source.(type) {
	case map[string]any:
		return src[fieldName], nil
	case *value.Map:
		v, _ := src.Get(fieldName)
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("no resolver for field %q and source %T is not a map", fieldName, source)
	}
}
