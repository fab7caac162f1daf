package dsl

import (
	"errors"
	"fmt"

	"github.com/reoring/conformance"
)

type objectBuilder struct {
	name     string
	props    []conformance.PropertyConstraint
	required map[string]struct{}
	allOf    []string
	anyOf    []string
	oneOf    []string
	errs     []error
}

type fieldStep struct {
	b   *objectBuilder
	idx int
}

// Object creates a new builder for the named schema.
func Object(name string) *objectBuilder {
	return &objectBuilder{name: name, required: map[string]struct{}{}}
}

// Field appends a property. Declaration order is validation order.
func (b *objectBuilder) Field(name string, p *Prop) *fieldStep {
	if p == nil {
		p = Any()
	}
	if p.err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s.%s: %w", b.name, name, p.err))
	}
	c := p.c
	c.Name = name
	b.props = append(b.props, c)
	return &fieldStep{b: b, idx: len(b.props) - 1}
}

// Required marks the field as required and returns the builder.
func (f *fieldStep) Required() *objectBuilder {
	f.b.props[f.idx].Required = true
	return f.b
}

// Optional leaves the field optional (default) and returns the builder.
func (f *fieldStep) Optional() *objectBuilder { return f.b }

// Field continues with the next property of the same object.
func (f *fieldStep) Field(name string, p *Prop) *fieldStep  { return f.b.Field(name, p) }
func (f *fieldStep) AllOf(schemas ...string) *objectBuilder { return f.b.AllOf(schemas...) }
func (f *fieldStep) AnyOf(props ...string) *objectBuilder   { return f.b.AnyOf(props...) }
func (f *fieldStep) OneOf(props ...string) *objectBuilder   { return f.b.OneOf(props...) }
func (f *fieldStep) Def() (conformance.SchemaDef, error)    { return f.b.Def() }

// Require marks several fields as required at once.
func (b *objectBuilder) Require(names ...string) *objectBuilder {
	for _, n := range names {
		b.required[n] = struct{}{}
	}
	return b
}

// AllOf appends the properties of the named schemas after this object's own.
func (b *objectBuilder) AllOf(schemas ...string) *objectBuilder {
	b.allOf = append(b.allOf, schemas...)
	return b
}

// AnyOf requires at least one of the named properties to carry a value.
func (b *objectBuilder) AnyOf(props ...string) *objectBuilder {
	b.anyOf = append(b.anyOf, props...)
	return b
}

// OneOf requires exactly one of the named properties to carry a value.
func (b *objectBuilder) OneOf(props ...string) *objectBuilder {
	b.oneOf = append(b.oneOf, props...)
	return b
}

// Def returns the schema definition.
func (b *objectBuilder) Def() (conformance.SchemaDef, error) {
	if len(b.errs) > 0 {
		return conformance.SchemaDef{}, errors.Join(b.errs...)
	}
	props := make([]conformance.PropertyConstraint, len(b.props))
	copy(props, b.props)
	seen := map[string]bool{}
	for i := range props {
		seen[props[i].Name] = true
		if _, ok := b.required[props[i].Name]; ok {
			props[i].Required = true
		}
	}
	for n := range b.required {
		if !seen[n] {
			return conformance.SchemaDef{}, fmt.Errorf("%s: required field %q is not declared", b.name, n)
		}
	}
	return conformance.SchemaDef{
		Name:       b.name,
		Properties: props,
		AllOf:      append([]string(nil), b.allOf...),
		AnyOf:      append([]string(nil), b.anyOf...),
		OneOf:      append([]string(nil), b.oneOf...),
	}, nil
}

// Definer is anything that yields a schema definition: an object builder, or
// the field step a builder chain ends on.
type Definer interface {
	Def() (conformance.SchemaDef, error)
}

type modelBuilder struct {
	objects   []Definer
	responses []conformance.ResponseDef
	payloads  []string
	payloadOn bool
}

// Model starts a model from the given objects.
func Model(objects ...Definer) *modelBuilder {
	return &modelBuilder{objects: objects}
}

// Schema adds more objects.
func (m *modelBuilder) Schema(objects ...Definer) *modelBuilder {
	m.objects = append(m.objects, objects...)
	return m
}

// Response maps an operation and status code to a schema.
func (m *modelBuilder) Response(operationID string, code int, schema string) *modelBuilder {
	m.responses = append(m.responses, conformance.ResponseDef{OperationID: operationID, Code: code, Schema: schema})
	return m
}

// Payloads sets the ordered payload candidates.
func (m *modelBuilder) Payloads(schemas ...string) *modelBuilder {
	m.payloads = append(m.payloads, schemas...)
	m.payloadOn = true
	return m
}

// Build assembles the immutable model.
func (m *modelBuilder) Build() (*conformance.Model, error) {
	defs := make([]conformance.SchemaDef, 0, len(m.objects))
	var errs []error
	for _, o := range m.objects {
		d, err := o.Def()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	var opts []conformance.ModelOption
	if m.payloadOn {
		opts = append(opts, conformance.WithPayloadSchemas(m.payloads...))
	}
	return conformance.NewModel(defs, m.responses, opts...)
}

// MustBuild is Build that panics on error.
func (m *modelBuilder) MustBuild() *conformance.Model {
	mdl, err := m.Build()
	if err != nil {
		panic(err)
	}
	return mdl
}
