package conformance

import (
	"sort"
)

// Instance is the data object being validated. Lookup reports the value of a
// property and whether the instance exposes that property at all. A property
// that is exposed but carries no value reports (nil, true).
type Instance interface {
	Lookup(name string) (value any, ok bool)
}

// Lister is implemented by instances that can enumerate their property names.
type Lister interface {
	Names() []string
}

// Snapshotter is implemented by instances that can provide a JSON-encodable
// view of themselves for error fragments.
type Snapshotter interface {
	Snapshot() any
}

// Sequence is a read-only ordered collection of elements.
type Sequence interface {
	Len() int
	At(i int) any
}

// Map adapts decoded JSON objects. Every property name is exposed: a missing
// key reads as null, which matches JSON's treatment of absent members.
type Map map[string]any

func (m Map) Lookup(name string) (any, bool) { return m[name], true }

func (m Map) Names() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m Map) Snapshot() any { return map[string]any(m) }

// Fields adapts native values through an explicit accessor table. Only the
// names present in the table are exposed. Accessors must return an untyped nil
// for "no value"; Ptr helps with pointer fields.
//
//	func (p *Product) Instance() conformance.Instance {
//		return conformance.Fields{
//			"productId": func() any { return p.ID },
//			"brandName": func() any { return conformance.Ptr(p.BrandName) },
//		}
//	}
type Fields map[string]func() any

func (f Fields) Lookup(name string) (any, bool) {
	get, ok := f[name]
	if !ok {
		return nil, false
	}
	if get == nil {
		return nil, true
	}
	return get(), true
}

func (f Fields) Names() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f Fields) Snapshot() any {
	out := make(map[string]any, len(f))
	for k := range f {
		v, _ := f.Lookup(k)
		if inst, ok := v.(Snapshotter); ok {
			v = inst.Snapshot()
		}
		out[k] = v
	}
	return out
}

// Ptr dereferences p, returning an untyped nil when p is nil.
func Ptr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Items adapts a slice of instances as a Sequence.
type Items[T any] []T

func (s Items[T]) Len() int     { return len(s) }
func (s Items[T]) At(i int) any { return s[i] }

// asInstance converts a property value into an Instance for recursion.
func asInstance(v any) (Instance, bool) {
	switch t := v.(type) {
	case Instance:
		return t, true
	case map[string]any:
		return Map(t), true
	}
	return nil, false
}

// asSequence converts a property value into a Sequence for recursion.
func asSequence(v any) (Sequence, bool) {
	switch t := v.(type) {
	case Sequence:
		return t, true
	case []any:
		return Items[any](t), true
	case []Instance:
		return Items[Instance](t), true
	case []map[string]any:
		return Items[map[string]any](t), true
	case []*Object:
		return Items[*Object](t), true
	}
	return nil, false
}

// isNull reports whether v carries no value.
func isNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *Object:
		return t == nil
	}
	return false
}
