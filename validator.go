package conformance

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultMaxDepth bounds schema recursion when no explicit limit is given.
const DefaultMaxDepth = 64

// Option configures a Validator or an Engine.
type Option func(*options)

type options struct {
	maxDepth       int
	fragments      bool
	rejectDupKeys  bool
	log            zerolog.Logger
	responseStrict bool
}

func defaultOptions() options {
	return options{
		maxDepth:  DefaultMaxDepth,
		fragments: true,
		log:       zerolog.Nop(),
	}
}

// WithMaxDepth sets the nesting limit. Exceeding it is a fault (ErrDepthExceeded).
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithFragments toggles the serialized data snapshot attached to each error.
func WithFragments(on bool) Option { return func(o *options) { o.fragments = on } }

// WithDuplicateKeyRejection makes JSON input with duplicate object keys fail to decode.
func WithDuplicateKeyRejection(on bool) Option { return func(o *options) { o.rejectDupKeys = on } }

// WithStrictResponses rejects undeclared members when binding response bodies.
func WithStrictResponses(on bool) Option { return func(o *options) { o.responseStrict = on } }

// WithLogger sets the logger used for debug traces.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// Validator checks instances against schema nodes. It holds no per-call state
// and is safe for concurrent use.
type Validator struct {
	opts options
}

// NewValidator returns a Validator.
func NewValidator(opts ...Option) *Validator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Validator{opts: o}
}

// Validate walks node's resolved properties against inst and returns every
// violation found, in declaration order followed by recursion order. A non-nil
// error is a *Fault; the errors collected before the fault are still returned.
func (v *Validator) Validate(inst Instance, node *SchemaNode) (Errors, error) {
	w := &walker{opts: v.opts, errs: Errors{}}
	if inst == nil {
		return w.errs, newFault(ErrShapeMismatch, node.name, Root(), "nil instance")
	}
	err := w.node(inst, node, Root(), 0)
	return w.errs, err
}

type walker struct {
	opts options
	errs Errors
}

type nodeScope struct {
	inst     Instance
	node     *SchemaNode
	at       Location
	fragment *string
	fragOn   bool
}

func (s *nodeScope) add(w *walker, e ConformanceError) {
	if s.fragOn {
		if s.fragment == nil {
			f := Fragment(s.inst)
			s.fragment = &f
		}
		e.Fragment = *s.fragment
	}
	w.errs = append(w.errs, e)
}

func (w *walker) node(inst Instance, n *SchemaNode, at Location, depth int) error {
	if depth > w.opts.maxDepth {
		return newFault(ErrDepthExceeded, n.name, at, fmt.Sprintf("limit %d", w.opts.maxDepth))
	}
	sc := &nodeScope{inst: inst, node: n, at: at, fragOn: w.opts.fragments}

	if e, bad := checkChoice(n, inst, at); bad {
		sc.add(w, e)
	}
	for _, p := range n.resolved {
		w.property(sc, p)
	}
	for _, p := range n.resolved {
		if !p.Shape.Recurses() {
			continue
		}
		if err := w.descend(sc, p, depth); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) property(sc *nodeScope, p PropertyConstraint) {
	at := sc.at.Field(p.Name)
	val, ok := sc.inst.Lookup(p.Name)
	if !ok {
		sc.add(w, errorAt(at, KindMissingProperty, p.Name, sc.node.name))
		return
	}

	format := p.Format
	met, sibling, trigger := false, "", ""
	if len(p.Conditions) > 0 {
		c := p.Conditions[0]
		sibling = c.Property
		if sv, sok := sc.inst.Lookup(c.Property); sok && !isNull(sv) {
			trigger = Stringify(sv)
			for _, want := range c.Values {
				if want == trigger {
					met = true
					break
				}
			}
		}
		if met {
			if o, has := c.Overrides[trigger]; has {
				format = &o
			}
		}
	}

	if isNull(val) {
		switch {
		case p.Required:
			sc.add(w, errorAt(at, KindMissingValue, p.Name, sc.node.name))
		case met:
			e := errorAt(at, KindMissingValue, p.Name, sc.node.name)
			e.Message = fmt.Sprintf("Field '%s' in '%s' has NULL value but is required when '%s' is '%s'",
				p.Name, sc.node.name, sibling, trigger)
			e.Params = map[string]any{"sibling": sibling, "value": trigger}
			sc.add(w, e)
		}
		return
	}

	for _, fv := range CheckFormat(val, format) {
		e := errorAt(at, fv.Kind, p.Name, sc.node.name)
		e.Params = map[string]any{"format": fv.Format, "value": Stringify(val)}
		switch fv.Kind {
		case KindNumberTooSmall:
			e.Params["min"] = fv.Bound
		case KindNumberTooBig:
			e.Params["max"] = fv.Bound
		}
		sc.add(w, e)
	}
}

func (w *walker) descend(sc *nodeScope, p PropertyConstraint, depth int) error {
	val, ok := sc.inst.Lookup(p.Name)
	if !ok || isNull(val) {
		return nil
	}
	child := sc.node.child(p.Shape.Schema)
	at := sc.at.Field(p.Name)
	if child == nil {
		return newFault(ErrUnknownSchema, sc.node.name, at, p.Shape.Schema)
	}

	if p.Shape.Kind == ShapeNested {
		inst, ok := asInstance(val)
		if !ok {
			return newFault(ErrShapeMismatch, sc.node.name, at, fmt.Sprintf("expected object for %s, got %T", child.name, val))
		}
		return w.node(inst, child, at, depth+1)
	}

	seq, ok := asSequence(val)
	if !ok {
		return newFault(ErrShapeMismatch, sc.node.name, at, fmt.Sprintf("expected %s of %s, got %T", p.Shape.Kind, child.name, val))
	}
	for i := 0; i < seq.Len(); i++ {
		el := seq.At(i)
		elAt := at.Index(i)
		if isNull(el) {
			e := errorAt(elAt, KindMissingValue, p.Name, sc.node.name)
			e.Message = fmt.Sprintf("Element %d of '%s' in '%s' has NULL value", i, p.Name, sc.node.name)
			sc.add(w, e)
			continue
		}
		inst, ok := asInstance(el)
		if !ok {
			return newFault(ErrShapeMismatch, sc.node.name, elAt, fmt.Sprintf("expected object for %s, got %T", child.name, el))
		}
		if err := w.node(inst, child, elAt, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Fragment serializes an instance for error reports. It returns an empty
// string when the instance cannot be rendered.
func Fragment(inst Instance) string {
	var v any
	switch t := inst.(type) {
	case Snapshotter:
		v = t.Snapshot()
	case Lister:
		m := make(map[string]any)
		for _, name := range t.Names() {
			m[name], _ = inst.Lookup(name)
		}
		v = m
	default:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
