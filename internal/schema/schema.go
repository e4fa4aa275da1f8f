// Package schema implements the type registry: a read-only catalogue of named
// types built once at schema-construction time and shared by every execution.
// Construction problems (duplicate names, dangling type references, interface
// cycles) are reported by Build, never at request time.
package schema

import (
	"context"

	"github.com/shaipe/async-graphql/internal/cachecontrol"
)

// ResolverFunc produces a field's value from its parent value and coerced
// arguments. The executor never inspects how a resolver is implemented.
type ResolverFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// SourceFunc establishes the event stream behind a subscription root field.
// Implementations typically subscribe to a broker topic and return the
// subscriber handle.
type SourceFunc func(ctx context.Context, args map[string]any) (EventStream, error)

// EventStream is a lazy sequence of published events feeding a subscription.
type EventStream interface {
	// Events yields published payloads. The channel is closed when the stream
	// ends.
	Events() <-chan any
	// Close releases the stream. Undelivered buffered events are discarded.
	Close()
}

// TypeResolverFunc maps a runtime value of an abstract type to the name of its
// concrete object type. Every possible result must be a declared member of the
// abstract type.
type TypeResolverFunc func(ctx context.Context, value any) (string, error)

// SerializeFunc turns a scalar or enum value into a JSON-safe Go value.
type SerializeFunc func(value any) (any, error)

// Schema is the registry of all named types. It is immutable after Build.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
	Directives       map[string]*Directive
	Description      string
}

// GetQueryType returns the root query type (nil if absent).
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (nil if absent).
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (nil if absent).
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// PossibleTypes returns the concrete object type names behind name: the type
// itself for objects, the declared or derived members for unions and
// interfaces, nil otherwise.
func (s *Schema) PossibleTypes(name string) []string {
	t := s.Types[name]
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeKindObject:
		return []string{t.Name}
	case TypeKindInterface, TypeKindUnion:
		return t.PossibleTypes
	default:
		return nil
	}
}

// IsPossibleType reports whether concrete is a member of abstract's possible
// types. Used for fragment type-condition matching.
func (s *Schema) IsPossibleType(abstract, concrete string) bool {
	for _, name := range s.PossibleTypes(abstract) {
		if name == concrete {
			return true
		}
	}
	return false
}

// Type is a named GraphQL type (object, interface, union, scalar, enum, input).
type Type struct {
	Name          string
	Kind          TypeKind
	Description   string
	Fields        []*Field      // OBJECT and INTERFACE
	Interfaces    []string      // OBJECT: implemented interfaces
	PossibleTypes []string      // UNION: declared; INTERFACE: derived by Build
	EnumValues    []*EnumValue  // ENUM
	InputFields   []*InputValue // INPUT_OBJECT

	// ResolveType is the runtime type discriminant for INTERFACE and UNION.
	ResolveType TypeResolverFunc
	// Serialize overrides leaf serialization for SCALAR. Built-in scalars get
	// one automatically.
	Serialize SerializeFunc
	// CacheHint applies whenever a value of this type appears in a response.
	CacheHint *cachecontrol.Hint
}

// Field looks up a field by name.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// HasEnumValue reports whether symbol is a declared member of an enum type.
func (t *Type) HasEnumValue(symbol string) bool {
	for _, ev := range t.EnumValues {
		if ev.Name == symbol {
			return true
		}
	}
	return false
}

// Field represents a field on an object or interface.
type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Arguments   []*InputValue

	// Resolver produces the field's value. For subscription root fields it is
	// the per-event filter/transform resolver.
	Resolver ResolverFunc
	// Source establishes the event stream; only set on subscription root fields.
	Source SourceFunc
	// CacheHint applies to this field's subtree.
	CacheHint *cachecontrol.Hint
}

// Argument looks up an argument definition by name.
func (f *Field) Argument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// TypeKind represents the kind of GraphQL type.
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef references a type, possibly wrapped in List/NonNull modifiers.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // LIST and NON_NULL
	Named  string   // NAMED
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefKindList {
		return true
	}
	return t.Kind == TypeRefKindNonNull && t.OfType != nil && t.OfType.Kind == TypeRefKindList
}

// Unwrap removes one layer of NonNull or List wrapping.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// NamedTypeName returns the innermost named type.
func (t *TypeRef) NamedTypeName() string {
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Named != "" {
			return cur.Named
		}
	}
	return ""
}

func (t *TypeRef) String() string {
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Named
	}
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// NamedTypeName returns the innermost named type for the given reference.
func NamedTypeName(t *TypeRef) string { return t.NamedTypeName() }

type EnumValue struct {
	Name        string
	Description string
}

type InputValue struct {
	Name         string
	Description  string
	Type         *TypeRef
	DefaultValue any
}

type Directive struct {
	Name        string
	Description string
	Locations   []string
	Arguments   []*InputValue
}
