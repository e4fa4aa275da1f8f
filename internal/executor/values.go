package executor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shaipe/async-graphql/internal/gqlerr"
	"github.com/shaipe/async-graphql/internal/language"
	"github.com/shaipe/async-graphql/internal/schema"
)

// coerceVariableValues coerces the provided variables against the operation's
// variable definitions, applying declared defaults. A missing or null value
// for a required variable is a request-fatal error.
func coerceVariableValues(
	s *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	if variableValues == nil {
		variableValues = make(map[string]any)
	}
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				val = astValueToGo(varDef.DefaultValue)
			} else if t.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(s, val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues binds a field's arguments from literals and variables,
// applying declared defaults when the argument (or the variable behind it) is
// absent. Coercion failures are recorded as field errors and reported through
// ok, so the caller can skip the resolver invocation.
func coerceArgumentValues(
	ctx context.Context,
	ectx *execContext,
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	path gqlerr.Path,
) (_ map[string]any, ok bool) {
	ok = true
	coerced := make(map[string]any)
	for _, arg := range arguments {
		argDef := fieldDef.Argument(arg.Name)
		if argDef == nil {
			continue
		}
		if arg.Value != nil && arg.Value.Kind == language.Variable {
			if _, bound := ectx.variableValues[arg.Value.Raw]; !bound {
				// Unbound variable: fall through to the argument default below.
				continue
			}
		}
		val := valueFromASTWithVars(arg.Value, ectx.variableValues)
		cv, err := coerceValue(ectx.schema, val, argDef.Type)
		if err != nil {
			ectx.fieldError(ctx, path, fmt.Errorf("argument %q cannot be coerced: %v", arg.Name, err))
			ok = false
			continue
		}
		coerced[arg.Name] = cv
	}
	for _, argDef := range fieldDef.Arguments {
		if _, bound := coerced[argDef.Name]; bound {
			continue
		}
		if argDef.DefaultValue != nil {
			coerced[argDef.Name] = argDef.DefaultValue
		} else if schema.IsNonNull(argDef.Type) {
			ectx.fieldError(ctx, path, fmt.Errorf("argument %q of required type %s was not provided", argDef.Name, argDef.Type))
			ok = false
		}
	}
	return coerced, ok
}

// valueFromASTWithVars converts an AST value to a runtime value with variable
// substitution.
func valueFromASTWithVars(v *language.Value, variableValues map[string]any) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return variableValues[v.Raw]
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = valueFromASTWithVars(c.Value, variableValues)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range v.Children {
			m[f.Name] = valueFromASTWithVars(f.Value, variableValues)
		}
		return m
	default:
		return astValueToGo(v)
	}
}

// astValueToGo converts a literal AST value to a Go value.
func astValueToGo(v *language.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.IntValue:
		// An out-of-range literal is kept as its raw text so scalar coercion
		// rejects it instead of seeing a silent zero.
		iv, err := strconv.Atoi(v.Raw)
		if err != nil {
			return v.Raw
		}
		return iv
	case language.FloatValue:
		fv, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return v.Raw
		}
		return fv
	case language.StringValue, language.BlockValue:
		return v.Raw
	case language.BooleanValue:
		return v.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return v.Raw
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range v.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

// coerceValue coerces an input value to the target type: non-null and list
// wrappers, built-in scalars, enum symbols, and input objects. Custom scalars
// pass through untouched.
func coerceValue(s *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type %s", targetType)
		}
		return coerceValue(s, value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		return coerceListValue(s, value, targetType)
	}

	named := schema.NamedTypeName(targetType)
	switch named {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	}

	t := s.Types[named]
	if t == nil {
		return value, nil
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		symbol, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("enum %s expects a symbol, got %T", named, value)
		}
		if !t.HasEnumValue(symbol) {
			return nil, fmt.Errorf("%q is not a value of enum %s", symbol, named)
		}
		return symbol, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(s, t, value)
	default:
		// Custom scalars are passed through for the resolver to interpret.
		return value, nil
	}
}

func coerceListValue(s *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	inner := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		coerced := make([]any, len(slice))
		for i, item := range slice {
			cv, err := coerceValue(s, item, inner)
			if err != nil {
				return nil, err
			}
			coerced[i] = cv
		}
		return coerced, nil
	}
	// A single value coerces to a list of one.
	cv, err := coerceValue(s, value, inner)
	if err != nil {
		return nil, err
	}
	return []any{cv}, nil
}

func coerceInputObject(s *schema.Schema, t *schema.Type, value any) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input object %s expects a mapping, got %T", t.Name, value)
	}
	coerced := make(map[string]any, len(fields))
	for name := range fields {
		known := false
		for _, f := range t.InputFields {
			if f.Name == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("input object %s has no field %q", t.Name, name)
		}
	}
	for _, f := range t.InputFields {
		raw, present := fields[f.Name]
		if !present {
			if f.DefaultValue != nil {
				coerced[f.Name] = f.DefaultValue
				continue
			}
			if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("input object %s requires field %q", t.Name, f.Name)
			}
			continue
		}
		cv, err := coerceValue(s, raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", f.Name, err)
		}
		coerced[f.Name] = cv
	}
	return coerced, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case float32:
		if v == float32(int(v)) {
			return int(v), nil
		}
	case string:
		if iv, err := strconv.Atoi(v); err == nil {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
