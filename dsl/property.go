package dsl

import (
	"fmt"

	"github.com/reoring/conformance"
	"github.com/shopspring/decimal"
)

// Prop describes one property before it is attached to an object.
type Prop struct {
	c   conformance.PropertyConstraint
	err error
}

func scalar(t conformance.ScalarType) *Prop {
	return &Prop{c: conformance.PropertyConstraint{Shape: conformance.Shape{Kind: conformance.ShapeScalar, Type: t}}}
}

// String declares a string property.
func String() *Prop { return scalar(conformance.ScalarString) }

// Number declares a numeric property.
func Number() *Prop { return scalar(conformance.ScalarNumber) }

// Integer declares an integral numeric property.
func Integer() *Prop { return scalar(conformance.ScalarInteger) }

// Bool declares a boolean property.
func Bool() *Prop { return scalar(conformance.ScalarBoolean) }

// Any declares a scalar property of unconstrained JSON type.
func Any() *Prop { return scalar(conformance.ScalarAny) }

// Ref declares a property holding a single object of the named schema.
func Ref(schema string) *Prop {
	return &Prop{c: conformance.PropertyConstraint{Shape: conformance.Shape{Kind: conformance.ShapeNested, Schema: schema}}}
}

// ArrayOf declares an ordered array of objects of the named schema.
func ArrayOf(schema string) *Prop {
	return &Prop{c: conformance.PropertyConstraint{Shape: conformance.Shape{Kind: conformance.ShapeArray, Schema: schema}}}
}

// SetOf declares an unordered collection of objects of the named schema.
func SetOf(schema string) *Prop {
	return &Prop{c: conformance.PropertyConstraint{Shape: conformance.Shape{Kind: conformance.ShapeCollection, Schema: schema}}}
}

// Strings declares an array of strings.
func Strings() *Prop {
	return &Prop{c: conformance.PropertyConstraint{Shape: conformance.Shape{Kind: conformance.ShapeArray, Type: conformance.ScalarString}}}
}

func (p *Prop) format() *conformance.ValueFormat {
	if p.c.Format == nil {
		p.c.Format = &conformance.ValueFormat{}
	}
	return p.c.Format
}

// Format replaces the property's value format.
func (p *Prop) Format(f conformance.ValueFormat) *Prop {
	p.c.Format = &f
	return p
}

// Named sets the format name shown in error descriptions.
func (p *Prop) Named(name string) *Prop {
	p.format().Name = name
	return p
}

// Pattern sets a regular expression the whole value must match.
func (p *Prop) Pattern(expr string) *Prop {
	p.format().Pattern = expr
	return p
}

// Min sets an inclusive decimal lower bound.
func (p *Prop) Min(v string) *Prop {
	d, err := parseBound("minimum", v)
	if err != nil {
		p.err = err
		return p
	}
	p.format().Min = &d
	return p
}

// Max sets an inclusive decimal upper bound.
func (p *Prop) Max(v string) *Prop {
	d, err := parseBound("maximum", v)
	if err != nil {
		p.err = err
		return p
	}
	p.format().Max = &d
	return p
}

// URI requires the value to be an RFC 3986 URI reference.
func (p *Prop) URI() *Prop {
	p.format().Semantic = conformance.SemanticURI
	return p
}

// DateTime requires the value to be an RFC 3339 timestamp.
func (p *Prop) DateTime() *Prop {
	p.format().Semantic = conformance.SemanticDateTime
	return p
}

// When makes the property's value required while the sibling property's value
// is one of values. Only the first condition of a property is honored.
func (p *Prop) When(sibling string, values ...string) *Prop {
	p.c.Conditions = append(p.c.Conditions, conformance.Condition{Property: sibling, Values: values})
	return p
}

// Override replaces the property's format while the last condition's sibling
// carries value.
func (p *Prop) Override(value string, f conformance.ValueFormat) *Prop {
	if len(p.c.Conditions) == 0 {
		p.err = fmt.Errorf("override for %q without a condition", value)
		return p
	}
	c := &p.c.Conditions[len(p.c.Conditions)-1]
	if c.Overrides == nil {
		c.Overrides = map[string]conformance.ValueFormat{}
	}
	c.Overrides[value] = f
	return p
}

func parseBound(which, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q: %w", which, v, err)
	}
	return d, nil
}
