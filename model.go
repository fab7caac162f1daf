package conformance

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"
)

// ShapeKind describes how a property's value is laid out.
type ShapeKind int

const (
	// ShapeScalar is a leaf value (string, number, boolean).
	ShapeScalar ShapeKind = iota
	// ShapeNested is a single nested object validated against another schema.
	ShapeNested
	// ShapeArray is an ordered sequence of nested objects.
	ShapeArray
	// ShapeCollection is an unordered collection of nested objects.
	ShapeCollection
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeNested:
		return "nested"
	case ShapeArray:
		return "array"
	case ShapeCollection:
		return "collection"
	default:
		return "scalar"
	}
}

// ScalarType narrows a scalar shape, or the element of a scalar array.
// The empty value accepts anything.
type ScalarType string

const (
	ScalarAny     ScalarType = ""
	ScalarString  ScalarType = "string"
	ScalarNumber  ScalarType = "number"
	ScalarInteger ScalarType = "integer"
	ScalarBoolean ScalarType = "boolean"
)

// Shape tells the validator whether to recurse into a property.
type Shape struct {
	Kind ShapeKind
	// Type narrows scalars, and scalar elements of arrays when Schema is empty.
	Type ScalarType
	// Schema names the nested schema for ShapeNested, and the element schema for
	// ShapeArray and ShapeCollection. Arrays with an empty Schema hold scalars.
	Schema string
}

// Recurses reports whether values of this shape are validated against a nested schema.
func (s Shape) Recurses() bool {
	return s.Kind != ShapeScalar && s.Schema != ""
}

// SemanticKind selects an additional, non-pattern check for string values.
type SemanticKind string

const (
	SemanticNone     SemanticKind = ""
	SemanticURI      SemanticKind = "uri"
	SemanticDateTime SemanticKind = "date-time"
)

// ValueFormat is a named value format: an optional full-match regular
// expression, optional decimal bounds and an optional semantic kind.
type ValueFormat struct {
	Name     string
	Pattern  string
	Min      *decimal.Decimal
	Max      *decimal.Decimal
	Semantic SemanticKind

	re *regexp.Regexp
}

// compiled returns a copy of f with its pattern compiled as a full match.
func (f ValueFormat) compiled() (*ValueFormat, error) {
	if f.Pattern != "" {
		re, err := regexp.Compile(`^(?:` + f.Pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("format %q: invalid pattern: %w", f.Name, err)
		}
		f.re = re
	}
	if f.Min != nil && f.Max != nil && f.Min.GreaterThan(*f.Max) {
		return nil, fmt.Errorf("format %q: minimum %s greater than maximum %s", f.Name, f.Min, f.Max)
	}
	switch f.Semantic {
	case SemanticNone, SemanticURI, SemanticDateTime:
	default:
		return nil, fmt.Errorf("format %q: unknown semantic kind %q", f.Name, f.Semantic)
	}
	return &f, nil
}

// label is the name used in error descriptions.
func (f *ValueFormat) label() string {
	if f.Name != "" {
		return f.Name
	}
	if f.Semantic != SemanticNone {
		return string(f.Semantic)
	}
	return "pattern " + f.Pattern
}

// Condition makes a property's value required when a sibling property's value
// equals one of Values. Overrides maps a trigger value to the format that
// replaces the property's own format while that value is active.
type Condition struct {
	Property  string
	Values    []string
	Overrides map[string]ValueFormat
}

// PropertyConstraint declares one property of a schema node.
type PropertyConstraint struct {
	Name     string
	Required bool
	Format   *ValueFormat
	// Conditions are evaluated in order, but only the first one is honored.
	Conditions []Condition
	Shape      Shape
}

// SchemaDef is the construction-time description of a schema node.
// At most one of AnyOf and OneOf may be set.
type SchemaDef struct {
	Name       string
	Properties []PropertyConstraint
	// AllOf names the schemas whose properties are appended, in order, after
	// the node's own properties.
	AllOf []string
	// AnyOf requires at least one of the named properties to carry a value.
	AnyOf []string
	// OneOf requires exactly one of the named properties to carry a value.
	OneOf []string
}

// CompositeKind is the composition rule active on a schema node during validation.
type CompositeKind int

const (
	CompositeNone CompositeKind = iota
	CompositeAnyOf
	CompositeOneOf
)

// SchemaNode is an immutable, resolved schema. Nodes are created by NewModel
// and shared read-only between concurrent validations.
type SchemaNode struct {
	name     string
	own      []PropertyConstraint
	allOf    []string
	choice   CompositeKind
	choiceOf []string
	resolved []PropertyConstraint
	index    map[string]int
	children map[string]*SchemaNode
}

// Name returns the schema name.
func (n *SchemaNode) Name() string { return n.name }

// DeclaredProperties returns the node's own properties, without allOf contributions.
func (n *SchemaNode) DeclaredProperties() []PropertyConstraint {
	return append([]PropertyConstraint(nil), n.own...)
}

// AllOf returns the names of the contributing schemas.
func (n *SchemaNode) AllOf() []string { return append([]string(nil), n.allOf...) }

// Composite returns the active choice rule and its property names.
func (n *SchemaNode) Composite() (CompositeKind, []string) {
	return n.choice, append([]string(nil), n.choiceOf...)
}

// Property looks up a resolved property by name. When allOf contributes the
// same name more than once, the first occurrence is returned.
func (n *SchemaNode) Property(name string) (PropertyConstraint, bool) {
	i, ok := n.index[name]
	if !ok {
		return PropertyConstraint{}, false
	}
	return n.resolved[i], true
}

// child returns the schema a recursing property points at.
func (n *SchemaNode) child(schema string) *SchemaNode { return n.children[schema] }

// ResponseDef maps an operation and HTTP status code to a schema.
type ResponseDef struct {
	OperationID string
	Code        int
	Schema      string
}

type responseKey struct {
	op   string
	code int
}

// Model is the immutable schema model: schemas by name, responses by
// operation and code, and the ordered payload candidates.
type Model struct {
	schemas    map[string]*SchemaNode
	order      []string
	responses  map[responseKey]*SchemaNode
	respOrder  []ResponseDef
	candidates []*SchemaNode
}

// ModelOption customizes NewModel.
type ModelOption func(*modelOpts)

type modelOpts struct {
	payloads    []string
	payloadsSet bool
}

// WithPayloadSchemas sets the ordered payload candidates tried by ValidatePayload.
// By default the response schemas are used in declaration order.
func WithPayloadSchemas(names ...string) ModelOption {
	return func(o *modelOpts) {
		o.payloads = append([]string(nil), names...)
		o.payloadsSet = true
	}
}

// NewModel builds an immutable Model. Every schema referenced by a property,
// an allOf list, a response or the payload candidates must be declared.
// Cyclic allOf chains are rejected; cyclic nesting through properties is allowed.
func NewModel(defs []SchemaDef, responses []ResponseDef, opts ...ModelOption) (*Model, error) {
	var o modelOpts
	for _, opt := range opts {
		opt(&o)
	}
	m := &Model{
		schemas:   make(map[string]*SchemaNode, len(defs)),
		responses: make(map[responseKey]*SchemaNode, len(responses)),
	}
	var errs []error
	for _, d := range defs {
		if d.Name == "" {
			errs = append(errs, errors.New("schema with empty name"))
			continue
		}
		if _, dup := m.schemas[d.Name]; dup {
			errs = append(errs, fmt.Errorf("schema %q declared twice", d.Name))
			continue
		}
		n, err := newNode(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.schemas[d.Name] = n
		m.order = append(m.order, d.Name)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, name := range m.order {
		n := m.schemas[name]
		props, err := m.flatten(n, map[string]bool{})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n.resolved = props
		n.index = make(map[string]int, len(props))
		for i, p := range props {
			if _, seen := n.index[p.Name]; !seen {
				n.index[p.Name] = i
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, name := range m.order {
		n := m.schemas[name]
		n.children = map[string]*SchemaNode{}
		for _, p := range n.resolved {
			if !p.Shape.Recurses() {
				continue
			}
			c, ok := m.schemas[p.Shape.Schema]
			if !ok {
				errs = append(errs, fmt.Errorf("schema %q property %q: unknown schema %q", n.name, p.Name, p.Shape.Schema))
				continue
			}
			n.children[p.Shape.Schema] = c
		}
		for _, c := range n.resolved {
			for _, cond := range c.Conditions {
				if cond.Property == "" {
					errs = append(errs, fmt.Errorf("schema %q property %q: condition without sibling property", n.name, c.Name))
				}
			}
		}
	}

	for _, r := range responses {
		n, ok := m.schemas[r.Schema]
		if !ok {
			errs = append(errs, fmt.Errorf("response %s/%d: unknown schema %q", r.OperationID, r.Code, r.Schema))
			continue
		}
		k := responseKey{op: r.OperationID, code: r.Code}
		if _, dup := m.responses[k]; dup {
			errs = append(errs, fmt.Errorf("response %s/%d declared twice", r.OperationID, r.Code))
			continue
		}
		m.responses[k] = n
		m.respOrder = append(m.respOrder, r)
	}

	payloads := o.payloads
	if !o.payloadsSet {
		seen := map[string]bool{}
		for _, r := range m.respOrder {
			if !seen[r.Schema] {
				seen[r.Schema] = true
				payloads = append(payloads, r.Schema)
			}
		}
	}
	for _, name := range payloads {
		n, ok := m.schemas[name]
		if !ok {
			errs = append(errs, fmt.Errorf("payload candidate: unknown schema %q", name))
			continue
		}
		m.candidates = append(m.candidates, n)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

func newNode(d SchemaDef) (*SchemaNode, error) {
	if len(d.AnyOf) > 0 && len(d.OneOf) > 0 {
		return nil, fmt.Errorf("schema %q: anyOf and oneOf are mutually exclusive", d.Name)
	}
	n := &SchemaNode{name: d.Name, allOf: append([]string(nil), d.AllOf...)}
	switch {
	case len(d.AnyOf) > 0:
		n.choice, n.choiceOf = CompositeAnyOf, append([]string(nil), d.AnyOf...)
	case len(d.OneOf) > 0:
		n.choice, n.choiceOf = CompositeOneOf, append([]string(nil), d.OneOf...)
	}
	for _, p := range d.Properties {
		if p.Name == "" {
			return nil, fmt.Errorf("schema %q: property with empty name", d.Name)
		}
		cp, err := freezeProperty(p)
		if err != nil {
			return nil, fmt.Errorf("schema %q property %q: %w", d.Name, p.Name, err)
		}
		n.own = append(n.own, cp)
	}
	return n, nil
}

// freezeProperty deep-copies a property and compiles its formats.
func freezeProperty(p PropertyConstraint) (PropertyConstraint, error) {
	if p.Format != nil {
		f, err := p.Format.compiled()
		if err != nil {
			return p, err
		}
		p.Format = f
	}
	if p.Shape.Kind == ShapeNested && p.Shape.Schema == "" {
		return p, errors.New("nested shape without schema")
	}
	conds := make([]Condition, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		cc := Condition{Property: c.Property, Values: append([]string(nil), c.Values...)}
		if len(c.Overrides) > 0 {
			cc.Overrides = make(map[string]ValueFormat, len(c.Overrides))
			for k, f := range c.Overrides {
				cf, err := f.compiled()
				if err != nil {
					return p, err
				}
				cc.Overrides[k] = *cf
			}
		}
		conds = append(conds, cc)
	}
	p.Conditions = conds
	return p, nil
}

// flatten computes own properties followed by each allOf contributor's
// resolved properties. Duplicate names are kept.
func (m *Model) flatten(n *SchemaNode, visiting map[string]bool) ([]PropertyConstraint, error) {
	if visiting[n.name] {
		return nil, fmt.Errorf("schema %q: cyclic allOf", n.name)
	}
	visiting[n.name] = true
	defer delete(visiting, n.name)

	out := append([]PropertyConstraint(nil), n.own...)
	for _, name := range n.allOf {
		c, ok := m.schemas[name]
		if !ok {
			return nil, fmt.Errorf("schema %q: allOf references unknown schema %q", n.name, name)
		}
		props, err := m.flatten(c, visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, props...)
	}
	return out, nil
}

// Schema returns the named schema node.
func (m *Model) Schema(name string) (*SchemaNode, bool) {
	n, ok := m.schemas[name]
	return n, ok
}

// SchemaNames returns schema names in declaration order.
func (m *Model) SchemaNames() []string { return append([]string(nil), m.order...) }

// Response returns the schema declared for an operation and status code.
func (m *Model) Response(operationID string, code int) (*SchemaNode, bool) {
	n, ok := m.responses[responseKey{op: operationID, code: code}]
	return n, ok
}

// HasCode reports whether any operation declares a response for the code.
func (m *Model) HasCode(code int) bool {
	for k := range m.responses {
		if k.code == code {
			return true
		}
	}
	return false
}

// Responses returns the response mappings in declaration order.
func (m *Model) Responses() []ResponseDef { return append([]ResponseDef(nil), m.respOrder...) }

// Operations returns the distinct operation ids, sorted.
func (m *Model) Operations() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range m.respOrder {
		if !seen[r.OperationID] {
			seen[r.OperationID] = true
			out = append(out, r.OperationID)
		}
	}
	sort.Strings(out)
	return out
}

// PayloadCandidates returns the ordered schemas tried by ValidatePayload.
func (m *Model) PayloadCandidates() []*SchemaNode {
	return append([]*SchemaNode(nil), m.candidates...)
}
