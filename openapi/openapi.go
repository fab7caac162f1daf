// Package openapi loads a conformance schema model from an OpenAPI 3 style
// YAML or JSON document.
//
// Supported subset
//   - components.schemas: properties (declaration order kept), required, allOf
//     ($ref or inline), anyOf/oneOf written as [{required: [name]}, ...], and
//     top-level $ref aliases.
//   - Properties: $ref, inline objects, arrays (uniqueItems makes a collection),
//     type, pattern, minimum, maximum, enum, format (uri, date-time, date),
//     x-cds-type (named format from the catalog or x-formats) and
//     x-conditional.
//   - paths.*.*.responses.<code>.content.<json media>.schema, including
//     #/components/responses references.
//   - Root x-payloads lists the ordered payload candidates.
package openapi

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/reoring/conformance"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const responseRefPrefix = "#/components/responses/"

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

// LoadFile reads and loads a model document.
func LoadFile(path string, opts Options) (*conformance.Model, Diag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &simpleDiag{}, fmt.Errorf("openapi: %w", err)
	}
	return Load(data, opts)
}

// Load compiles a model document into an immutable conformance.Model.
// Duplicate keys and references to undeclared schemas are errors; constructs
// outside the supported subset are reported as warnings.
func Load(data []byte, opts Options) (*conformance.Model, Diag, error) {
	d := &simpleDiag{}
	doc, err := parseStrict(data)
	if err != nil {
		return nil, d, fmt.Errorf("openapi: %w", err)
	}
	if !isMapping(doc) {
		return nil, d, errors.New("openapi: document root is not a mapping")
	}

	l := &loader{
		opts:       opts,
		d:          d,
		components: map[string]*yaml.Node{},
		formats:    Catalog(),
		defined:    map[string]bool{},
	}
	for name, f := range opts.Formats {
		l.formats[name] = f
	}
	for _, p := range pairs(get(doc, "x-formats")) {
		f := l.formatFrom(p.val)
		if f == nil {
			d.warnf("x-formats.%s declares no checks", p.key)
			continue
		}
		f.Name = p.key
		l.formats[p.key] = *f
	}

	components := get(doc, "components")
	schemas := pairs(get(components, "schemas"))
	for _, p := range schemas {
		l.components[p.key] = p.val
	}
	for _, p := range schemas {
		if l.scalarNode(p.val) {
			continue
		}
		l.schema(p.key, p.val)
	}

	responses := l.responses(get(doc, "paths"), get(components, "responses"))

	var mopts []conformance.ModelOption
	payloads := opts.Payloads
	if payloads == nil {
		payloads = strList(get(doc, "x-payloads"))
	}
	if payloads != nil {
		mopts = append(mopts, conformance.WithPayloadSchemas(payloads...))
	}

	if len(l.errs) > 0 {
		return nil, d, fmt.Errorf("openapi: %w", errors.Join(l.errs...))
	}
	m, err := conformance.NewModel(l.defs, responses, mopts...)
	if err != nil {
		return nil, d, fmt.Errorf("openapi: %w", err)
	}
	return m, d, nil
}

type loader struct {
	opts       Options
	d          *simpleDiag
	components map[string]*yaml.Node
	formats    map[string]conformance.ValueFormat
	defs       []conformance.SchemaDef
	defined    map[string]bool
	errs       []error
}

func (l *loader) fail(format string, a ...any) { l.errs = append(l.errs, fmt.Errorf(format, a...)) }

// scalarNode reports whether a schema node describes a leaf value rather than an object.
func (l *loader) scalarNode(n *yaml.Node) bool {
	switch str(get(n, "type")) {
	case "string", "number", "integer", "boolean":
		return get(n, "properties") == nil && get(n, "allOf") == nil
	}
	return false
}

// objectNode reports whether an inline node needs its own schema.
func objectNode(n *yaml.Node) bool {
	return get(n, "properties") != nil || get(n, "allOf") != nil ||
		get(n, "anyOf") != nil || get(n, "oneOf") != nil || str(get(n, "type")) == "object"
}

func (l *loader) schema(name string, n *yaml.Node) {
	if l.defined[name] {
		return
	}
	l.defined[name] = true
	def := conformance.SchemaDef{Name: name}

	if t := str(get(n, "type")); t != "" && t != "object" {
		l.d.warnf("schema %s: type %q treated as object", name, t)
	}
	if ref := str(get(n, "$ref")); ref != "" {
		if target, ok := l.ref(name, ref); ok {
			def.AllOf = append(def.AllOf, target)
		}
	}
	for i, it := range items(get(n, "allOf")) {
		if ref := str(get(it, "$ref")); ref != "" {
			if target, ok := l.ref(name, ref); ok {
				def.AllOf = append(def.AllOf, target)
			}
			continue
		}
		if !isMapping(it) {
			l.d.warnf("schema %s: allOf[%d] ignored", name, i)
			continue
		}
		anon := fmt.Sprintf("%s.allOf%d", name, i)
		l.schema(anon, it)
		def.AllOf = append(def.AllOf, anon)
	}
	def.AnyOf = l.choice(name, "anyOf", get(n, "anyOf"))
	def.OneOf = l.choice(name, "oneOf", get(n, "oneOf"))
	if len(def.AnyOf) > 0 && len(def.OneOf) > 0 {
		l.d.warnf("schema %s: both anyOf and oneOf declared; oneOf ignored", name)
		def.OneOf = nil
	}

	required := map[string]bool{}
	for _, r := range strList(get(n, "required")) {
		required[r] = true
	}
	declared := map[string]bool{}
	for _, p := range pairs(get(n, "properties")) {
		declared[p.key] = true
		def.Properties = append(def.Properties, l.property(name, p.key, p.val, required[p.key]))
	}
	for r := range required {
		if !declared[r] {
			l.d.warnf("schema %s: required %q is not a declared property", name, r)
		}
	}
	l.defs = append(l.defs, def)
}

func (l *loader) ref(owner, ref string) (string, bool) {
	name, err := refName(ref)
	if err != nil {
		l.fail("schema %s: %w", owner, err)
		return "", false
	}
	if _, ok := l.components[name]; !ok {
		l.fail("schema %s: $ref to unknown schema %q", owner, name)
		return "", false
	}
	return name, true
}

func (l *loader) choice(owner, kw string, n *yaml.Node) []string {
	var names []string
	for i, it := range items(n) {
		req := strList(get(it, "required"))
		if len(req) == 0 {
			l.d.warnf("schema %s: %s[%d] is not a required-name branch; ignored", owner, kw, i)
			continue
		}
		names = append(names, req...)
	}
	return names
}

func (l *loader) property(owner, name string, n *yaml.Node, required bool) conformance.PropertyConstraint {
	p := conformance.PropertyConstraint{Name: name, Required: required}
	p.Shape, p.Format = l.shape(owner, name, n)
	p.Conditions = l.conditions(owner, name, get(n, "x-conditional"))
	return p
}

// shape derives the property's shape, and its format for scalars.
func (l *loader) shape(owner, name string, n *yaml.Node) (conformance.Shape, *conformance.ValueFormat) {
	if ref := str(get(n, "$ref")); ref != "" {
		target, ok := l.ref(owner+"."+name, ref)
		if !ok {
			return conformance.Shape{}, nil
		}
		tn := l.components[target]
		if l.scalarNode(tn) {
			f := l.formatFrom(tn)
			if f != nil && f.Name == "" {
				f.Name = target
			}
			return conformance.Shape{Kind: conformance.ShapeScalar, Type: scalarType(str(get(tn, "type")))}, f
		}
		return conformance.Shape{Kind: conformance.ShapeNested, Schema: target}, nil
	}

	if str(get(n, "type")) == "array" {
		kind := conformance.ShapeArray
		if boolean(get(n, "uniqueItems")) {
			kind = conformance.ShapeCollection
		}
		it := get(n, "items")
		switch {
		case it == nil:
			l.d.warnf("property %s.%s: array without items", owner, name)
			return conformance.Shape{Kind: kind}, nil
		case str(get(it, "$ref")) != "":
			target, ok := l.ref(owner+"."+name, str(get(it, "$ref")))
			if !ok {
				return conformance.Shape{Kind: kind}, nil
			}
			if l.scalarNode(l.components[target]) {
				return conformance.Shape{Kind: kind, Type: scalarType(str(get(l.components[target], "type")))}, nil
			}
			return conformance.Shape{Kind: kind, Schema: target}, nil
		case objectNode(it):
			anon := owner + "." + name + "[]"
			l.schema(anon, it)
			return conformance.Shape{Kind: kind, Schema: anon}, nil
		default:
			if l.formatFrom(it) != nil {
				l.d.warnf("property %s.%s: element formats are not checked", owner, name)
			}
			return conformance.Shape{Kind: kind, Type: scalarType(str(get(it, "type")))}, nil
		}
	}

	if objectNode(n) {
		anon := owner + "." + name
		l.schema(anon, n)
		return conformance.Shape{Kind: conformance.ShapeNested, Schema: anon}, nil
	}
	return conformance.Shape{Kind: conformance.ShapeScalar, Type: scalarType(str(get(n, "type")))}, l.formatFrom(n)
}

func scalarType(t string) conformance.ScalarType {
	switch t {
	case "string":
		return conformance.ScalarString
	case "number":
		return conformance.ScalarNumber
	case "integer":
		return conformance.ScalarInteger
	case "boolean":
		return conformance.ScalarBoolean
	}
	return conformance.ScalarAny
}

// formatFrom reads x-cds-type, pattern, minimum, maximum, enum and format
// from a node. It returns nil when the node declares none of them.
func (l *loader) formatFrom(n *yaml.Node) *conformance.ValueFormat {
	var f *conformance.ValueFormat
	ensure := func() *conformance.ValueFormat {
		if f == nil {
			f = &conformance.ValueFormat{}
		}
		return f
	}
	if name := str(get(n, "x-cds-type")); name != "" {
		if cf, ok := l.formats[name]; ok {
			c := cf
			f = &c
		} else {
			l.d.warnf("unknown x-cds-type %q", name)
		}
	}
	if p := str(get(n, "pattern")); p != "" {
		ensure().Pattern = p
	} else if enum := strList(get(n, "enum")); len(enum) > 0 {
		quoted := make([]string, len(enum))
		for i, e := range enum {
			quoted[i] = regexp.QuoteMeta(e)
		}
		ensure().Pattern = strings.Join(quoted, "|")
		if f.Name == "" {
			f.Name = "enum [" + strings.Join(enum, ", ") + "]"
		}
	}
	for _, b := range []struct {
		key string
		set func(d decimal.Decimal)
	}{
		{"minimum", func(d decimal.Decimal) { ensure().Min = &d }},
		{"maximum", func(d decimal.Decimal) { ensure().Max = &d }},
	} {
		s := str(get(n, b.key))
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			l.d.warnf("invalid %s %q ignored", b.key, s)
			continue
		}
		b.set(d)
	}
	switch fm := str(get(n, "format")); fm {
	case "":
	case "uri", "uri-reference", "url":
		ensure().Semantic = conformance.SemanticURI
	case "date-time":
		ensure().Semantic = conformance.SemanticDateTime
	case "date":
		if f == nil || f.Pattern == "" {
			ds := l.formats["DateString"]
			ensure().Pattern = ds.Pattern
			if f.Name == "" {
				f.Name = ds.Name
			}
		}
	case "int32", "int64", "float", "double", "byte", "binary", "password":
	default:
		l.d.warnf("format %q not checked", fm)
	}
	return f
}

// conditions reads x-conditional, given as one mapping or a list of them.
func (l *loader) conditions(owner, name string, n *yaml.Node) []conformance.Condition {
	if n == nil {
		return nil
	}
	list := items(n)
	if isMapping(n) {
		list = append(list, n)
	}
	var out []conformance.Condition
	for i, it := range list {
		c := conformance.Condition{Property: str(get(it, "property")), Values: strList(get(it, "values"))}
		if v := str(get(it, "value")); v != "" {
			c.Values = append(c.Values, v)
		}
		if c.Property == "" || len(c.Values) == 0 {
			l.d.warnf("property %s.%s: x-conditional[%d] needs property and values; ignored", owner, name, i)
			continue
		}
		for _, fp := range pairs(get(it, "formats")) {
			var f *conformance.ValueFormat
			if fp.val.Kind == yaml.ScalarNode {
				if cf, ok := l.formats[fp.val.Value]; ok {
					f = &cf
				} else {
					l.fail("property %s.%s: x-conditional format %q is unknown", owner, name, fp.val.Value)
					continue
				}
			} else {
				f = l.formatFrom(fp.val)
			}
			if f == nil {
				continue
			}
			if c.Overrides == nil {
				c.Overrides = map[string]conformance.ValueFormat{}
			}
			c.Overrides[fp.key] = *f
		}
		out = append(out, c)
	}
	if len(out) > 1 {
		l.d.warnf("property %s.%s: only the first x-conditional is enforced", owner, name)
	}
	return out
}

func (l *loader) responses(paths, shared *yaml.Node) []conformance.ResponseDef {
	var out []conformance.ResponseDef
	for _, pp := range pairs(paths) {
		for _, mp := range pairs(pp.val) {
			if !httpMethods[strings.ToLower(mp.key)] {
				continue
			}
			op := str(get(mp.val, "operationId"))
			if op == "" {
				l.d.warnf("%s %s: no operationId; responses ignored", strings.ToUpper(mp.key), pp.key)
				continue
			}
			for _, rp := range pairs(get(mp.val, "responses")) {
				code, err := strconv.Atoi(rp.key)
				if err != nil {
					l.d.warnf("%s: response %q is not a status code; ignored", op, rp.key)
					continue
				}
				resp := rp.val
				if ref := str(get(resp, "$ref")); ref != "" {
					if !strings.HasPrefix(ref, responseRefPrefix) {
						l.fail("%s/%d: $ref %q not supported", op, code, ref)
						continue
					}
					resp = get(shared, strings.TrimPrefix(ref, responseRefPrefix))
					if resp == nil {
						l.fail("%s/%d: $ref to unknown response %q", op, code, ref)
						continue
					}
				}
				schema := jsonSchema(resp)
				if schema == nil {
					if get(resp, "content") != nil {
						if l.opts.StrictResponses {
							l.fail("%s/%d: no JSON schema", op, code)
						} else {
							l.d.warnf("%s/%d: no JSON schema; not validated", op, code)
						}
					}
					continue
				}
				var target string
				if ref := str(get(schema, "$ref")); ref != "" {
					name, ok := l.ref(fmt.Sprintf("%s/%d", op, code), ref)
					if !ok {
						continue
					}
					target = name
				} else {
					target = fmt.Sprintf("%s.%d", op, code)
					l.schema(target, schema)
				}
				out = append(out, conformance.ResponseDef{OperationID: op, Code: code, Schema: target})
			}
		}
	}
	return out
}

// jsonSchema returns the schema of the first JSON media type of a response.
func jsonSchema(resp *yaml.Node) *yaml.Node {
	for _, mp := range pairs(get(resp, "content")) {
		if strings.Contains(strings.ToLower(mp.key), "json") {
			return get(mp.val, "schema")
		}
	}
	return nil
}
