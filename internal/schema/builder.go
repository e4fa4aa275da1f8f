package schema

import (
	"errors"
	"fmt"
	"sort"
)

// Builder assembles a Schema. Problems are collected as they are reported and
// surfaced together by Build; no partially validated schema ever reaches the
// executor.
type Builder struct {
	schema *Schema
	errs   []error
}

// NewBuilder returns a builder pre-populated with the built-in scalars and the
// @skip/@include directives.
func NewBuilder() *Builder {
	b := &Builder{schema: &Schema{
		Types:      make(map[string]*Type),
		Directives: make(map[string]*Directive),
	}}
	b.AddType(stringType).
		AddType(intType).
		AddType(floatType).
		AddType(booleanType).
		AddType(idType)
	b.AddDirective(includeDirective).
		AddDirective(skipDirective)
	return b
}

func (b *Builder) SetDescription(desc string) *Builder {
	b.schema.Description = desc
	return b
}

func (b *Builder) SetQueryType(name string) *Builder {
	b.schema.QueryType = name
	return b
}

func (b *Builder) SetMutationType(name string) *Builder {
	b.schema.MutationType = name
	return b
}

func (b *Builder) SetSubscriptionType(name string) *Builder {
	b.schema.SubscriptionType = name
	return b
}

// AddType registers t. A second type with the same name is a build error.
func (b *Builder) AddType(t *Type) *Builder {
	if _, ok := b.schema.Types[t.Name]; ok {
		b.errs = append(b.errs, fmt.Errorf("duplicate type name %q", t.Name))
		return b
	}
	b.schema.Types[t.Name] = t
	return b
}

func (b *Builder) AddDirective(d *Directive) *Builder {
	if _, ok := b.schema.Directives[d.Name]; ok {
		b.errs = append(b.errs, fmt.Errorf("duplicate directive name %q", d.Name))
		return b
	}
	b.schema.Directives[d.Name] = d
	return b
}

// Build validates the registry and returns it. After Build succeeds the schema
// is immutable and safe for unsynchronized concurrent reads.
func (b *Builder) Build() (*Schema, error) {
	b.validateRoots()
	for _, t := range b.schema.Types {
		b.validateType(t)
	}
	b.deriveInterfacePossibleTypes()
	b.checkInterfaceCycles()
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("schema build failed: %w", errors.Join(b.errs...))
	}
	return b.schema, nil
}

func (b *Builder) addErrf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *Builder) validateRoots() {
	s := b.schema
	if s.QueryType == "" {
		b.addErrf("schema must declare a query root type")
	}
	for _, root := range []string{s.QueryType, s.MutationType, s.SubscriptionType} {
		if root == "" {
			continue
		}
		t, ok := s.Types[root]
		if !ok {
			b.addErrf("root type %q is not declared", root)
			continue
		}
		if t.Kind != TypeKindObject {
			b.addErrf("root type %q must be an object, got %s", root, t.Kind)
		}
	}
}

func (b *Builder) validateType(t *Type) {
	switch t.Kind {
	case TypeKindObject, TypeKindInterface:
		for _, f := range t.Fields {
			b.checkTypeRef(t.Name, f.Name, f.Type)
			for _, arg := range f.Arguments {
				b.checkTypeRef(t.Name, f.Name+"."+arg.Name, arg.Type)
			}
		}
		for _, iface := range t.Interfaces {
			it, ok := b.schema.Types[iface]
			if !ok {
				b.addErrf("type %q implements undeclared interface %q", t.Name, iface)
				continue
			}
			if it.Kind != TypeKindInterface {
				b.addErrf("type %q implements %q which is a %s, not an interface", t.Name, iface, it.Kind)
			}
		}
	case TypeKindUnion:
		if len(t.PossibleTypes) == 0 {
			b.addErrf("union %q has no member types", t.Name)
		}
		for _, member := range t.PossibleTypes {
			mt, ok := b.schema.Types[member]
			if !ok {
				b.addErrf("union %q references undeclared type %q", t.Name, member)
				continue
			}
			if mt.Kind != TypeKindObject {
				b.addErrf("union %q member %q must be an object, got %s", t.Name, member, mt.Kind)
			}
		}
	case TypeKindEnum:
		if len(t.EnumValues) == 0 {
			b.addErrf("enum %q has no values", t.Name)
		}
	case TypeKindInputObject:
		for _, f := range t.InputFields {
			b.checkTypeRef(t.Name, f.Name, f.Type)
		}
	}
}

func (b *Builder) checkTypeRef(typeName, fieldName string, ref *TypeRef) {
	if ref == nil {
		b.addErrf("%s.%s has no type", typeName, fieldName)
		return
	}
	named := ref.NamedTypeName()
	if _, ok := b.schema.Types[named]; !ok {
		b.addErrf("%s.%s references undeclared type %q", typeName, fieldName, named)
	}
}

// deriveInterfacePossibleTypes fills each interface's PossibleTypes from the
// memberships objects declare. Membership is closed at build time; execution
// never discovers implementations dynamically.
func (b *Builder) deriveInterfacePossibleTypes() {
	members := make(map[string][]string)
	for _, t := range sortedTypes(b.schema.Types) {
		if t.Kind != TypeKindObject {
			continue
		}
		for _, iface := range t.Interfaces {
			members[iface] = append(members[iface], t.Name)
		}
	}
	for name, t := range b.schema.Types {
		if t.Kind == TypeKindInterface {
			t.PossibleTypes = members[name]
		}
	}
}

// checkInterfaceCycles rejects interfaces that transitively implement
// themselves.
func (b *Builder) checkInterfaceCycles() {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return false
		case done:
			return true
		}
		state[name] = visiting
		if t, ok := b.schema.Types[name]; ok && t.Kind == TypeKindInterface {
			for _, parent := range t.Interfaces {
				if !visit(parent) {
					b.addErrf("interface cycle involving %q", name)
				}
			}
		}
		state[name] = done
		return true
	}

	for _, t := range sortedTypes(b.schema.Types) {
		if t.Kind == TypeKindInterface {
			visit(t.Name)
		}
	}
}

func sortedTypes(types map[string]*Type) []*Type {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Type, len(names))
	for i, name := range names {
		out[i] = types[name]
	}
	return out
}
