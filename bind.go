package conformance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Object is a decoded JSON object bound to a schema node. It exposes the
// node's resolved properties (absent members read as null) plus any extra
// members present in the input.
type Object struct {
	node   *SchemaNode
	fields map[string]any
	raw    map[string]any
}

func (o *Object) Lookup(name string) (any, bool) {
	if v, ok := o.fields[name]; ok {
		return v, true
	}
	if _, ok := o.node.index[name]; ok {
		return nil, true
	}
	return nil, false
}

func (o *Object) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range o.node.resolved {
		if !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, p.Name)
		}
	}
	var extra []string
	for k := range o.fields {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (o *Object) Snapshot() any { return o.raw }

// Schema returns the node the object was bound to.
func (o *Object) Schema() *SchemaNode { return o.node }

// BindError reports why decoded JSON does not fit a schema's native shape.
type BindError struct {
	Schema string
	Path   string
	Reason string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s at %s: %s", e.Schema, e.Path, e.Reason)
}

// BindOptions controls Bind.
type BindOptions struct {
	// AllowUnknown accepts members that the schema does not declare.
	AllowUnknown bool
	// MaxDepth bounds object nesting; zero means DefaultMaxDepth.
	MaxDepth int
}

// Bind fits a decoded JSON value (as produced by the source package) into the
// node's shape. A top-level value that is not an object, a member whose JSON
// type contradicts its declared shape, or (unless AllowUnknown) an undeclared
// member is a bind failure.
func Bind(node *SchemaNode, raw any, opt BindOptions) (*Object, error) {
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = DefaultMaxDepth
	}
	b := binder{opt: opt}
	return b.object(node, raw, Root())
}

type binder struct {
	opt BindOptions
}

func (b binder) fail(node *SchemaNode, at Location, format string, args ...any) error {
	return &BindError{Schema: node.name, Path: at.Pointer(), Reason: fmt.Sprintf(format, args...)}
}

func (b binder) object(node *SchemaNode, raw any, at Location) (*Object, error) {
	if at.Depth() > b.opt.MaxDepth {
		return nil, b.fail(node, at, "nesting deeper than %d", b.opt.MaxDepth)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, b.fail(node, at, "expected object, got %s", jsonTypeName(raw))
	}
	o := &Object{node: node, fields: make(map[string]any, len(m)), raw: m}
	for k, v := range m {
		p, declared := node.Property(k)
		if !declared {
			if !b.opt.AllowUnknown {
				return nil, b.fail(node, at.Field(k), "unknown property %q", k)
			}
			o.fields[k] = v
			continue
		}
		bv, err := b.value(node, p, v, at.Field(k))
		if err != nil {
			return nil, err
		}
		o.fields[k] = bv
	}
	return o, nil
}

func (b binder) value(node *SchemaNode, p PropertyConstraint, v any, at Location) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch p.Shape.Kind {
	case ShapeNested:
		return b.object(node.child(p.Shape.Schema), v, at)
	case ShapeArray, ShapeCollection:
		arr, ok := v.([]any)
		if !ok {
			return nil, b.fail(node, at, "expected array, got %s", jsonTypeName(v))
		}
		out := make([]any, len(arr))
		for i, el := range arr {
			if el == nil {
				continue
			}
			if p.Shape.Schema != "" {
				obj, err := b.object(node.child(p.Shape.Schema), el, at.Index(i))
				if err != nil {
					return nil, err
				}
				out[i] = obj
				continue
			}
			if err := b.scalar(node, p.Shape.Type, el, at.Index(i)); err != nil {
				return nil, err
			}
			out[i] = el
		}
		return out, nil
	default:
		if err := b.scalar(node, p.Shape.Type, v, at); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (b binder) scalar(node *SchemaNode, t ScalarType, v any, at Location) error {
	switch t {
	case ScalarAny:
		return nil
	case ScalarString:
		if _, ok := v.(string); ok {
			return nil
		}
	case ScalarBoolean:
		if _, ok := v.(bool); ok {
			return nil
		}
	case ScalarNumber:
		if isJSONNumber(v) {
			return nil
		}
	case ScalarInteger:
		if isJSONInteger(v) {
			return nil
		}
	}
	return b.fail(node, at, "expected %s, got %s", t, jsonTypeName(v))
}

func isJSONNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return true
	}
	return numberString(v) != ""
}

func isJSONInteger(v any) bool {
	switch t := v.(type) {
	case int, int64, int32, uint, uint64, uint32:
		return true
	case float64:
		return t == math.Trunc(t)
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return true
		}
		s := t.String()
		return !strings.ContainsAny(s, ".eE")
	}
	if s := numberString(v); s != "" {
		return !strings.ContainsAny(s, ".eE")
	}
	return false
}

// numberString returns the literal of number types from other JSON decoders.
func numberString(v any) string {
	if n, ok := v.(interface {
		String() string
		Float64() (float64, error)
	}); ok {
		return n.String()
	}
	return ""
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if isJSONNumber(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
