package executor

import (
	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
	})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

// collectFields merges a selection set into ordered field groups for the given
// concrete object type, descending into fragments whose type condition
// matches and dropping selections excluded by @skip/@include.
func collectFields(ectx *execContext, objectType *schema.Type, selectionSet language.SelectionSet) *collectedFieldMap {
	grouped := newCollectedFieldMap()
	visitedFragments := make(map[string]bool)
	collectFieldsImpl(ectx, objectType, selectionSet, grouped, visitedFragments)
	return grouped
}

func collectFieldsImpl(ectx *execContext, objectType *schema.Type, selectionSet language.SelectionSet, grouped *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !shouldIncludeNode(ectx, sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *language.InlineFragment:
			if !shouldIncludeNode(ectx, sel.Directives) {
				continue
			}
			if !fragmentTypeApplies(ectx, objectType, sel.TypeCondition) {
				continue
			}
			collectFieldsImpl(ectx, objectType, sel.SelectionSet, grouped, visitedFragments)

		case *language.FragmentSpread:
			if !shouldIncludeNode(ectx, sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			// Unresolved names are a validation-stage failure; tolerate them
			// here by skipping.
			fragmentDef := ectx.document.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if !fragmentTypeApplies(ectx, objectType, fragmentDef.TypeCondition) {
				continue
			}
			if !shouldIncludeNode(ectx, fragmentDef.Directives) {
				continue
			}
			collectFieldsImpl(ectx, objectType, fragmentDef.SelectionSet, grouped, visitedFragments)
		}
	}
}

// fragmentTypeApplies reports whether a fragment with the given type condition
// selects into objectType: either the condition names the concrete type
// itself, or the concrete type is among the condition's possible types
// (interface implementations, union members).
func fragmentTypeApplies(ectx *execContext, objectType *schema.Type, condition string) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	return ectx.schema.IsPossibleType(condition, objectType.Name)
}

// shouldIncludeNode evaluates @skip and @include against literals and bound
// variables. @skip wins when both are present.
func shouldIncludeNode(ectx *execContext, directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := directiveIfArgument(ectx, skip); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := directiveIfArgument(ectx, include); ok && !v {
			return false
		}
	}
	return true
}

func directiveIfArgument(ectx *execContext, directive *language.Directive) (bool, bool) {
	for _, arg := range directive.Arguments {
		if arg.Name == "if" {
			v := valueFromASTWithVars(arg.Value, ectx.variableValues)
			b, ok := v.(bool)
			return b, ok
		}
	}
	return false, false
}

// mergeSelectionSets concatenates the nested selections of all fields grouped
// under one response name.
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
