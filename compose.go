package conformance

import (
	"fmt"
	"strings"
)

// ResolvedProperties returns the node's effective property list: its own
// properties followed by each allOf contributor's properties, in order.
// Names contributed more than once are kept.
func ResolvedProperties(n *SchemaNode) []PropertyConstraint {
	return append([]PropertyConstraint(nil), n.resolved...)
}

// checkChoice evaluates the node's anyOf/oneOf rule against inst. Rules
// naming fewer than two properties are inert. Names that do not resolve
// among the node's properties count as carrying no value.
func checkChoice(n *SchemaNode, inst Instance, at Location) (ConformanceError, bool) {
	if len(n.choiceOf) < 2 {
		return ConformanceError{}, false
	}
	var withValue []string
	for _, name := range n.choiceOf {
		if _, declared := n.index[name]; !declared {
			continue
		}
		if v, ok := inst.Lookup(name); ok && !isNull(v) {
			withValue = append(withValue, name)
		}
	}
	names := "[" + strings.Join(n.choiceOf, ", ") + "]"
	switch n.choice {
	case CompositeAnyOf:
		if len(withValue) > 0 {
			return ConformanceError{}, false
		}
		e := errorAt(at, KindBrokenConstraint, "", n.name)
		e.Message = fmt.Sprintf("At least one of the %s properties of %s should have a value, but none of them have values", names, n.name)
		e.Params = map[string]any{"properties": n.choiceOf}
		return e, true
	case CompositeOneOf:
		if len(withValue) == 1 {
			return ConformanceError{}, false
		}
		e := errorAt(at, KindOneOfConstraint, "", n.name)
		e.Message = fmt.Sprintf("Exactly one of the %s properties of %s should have a value, but %d of them have values: [%s]",
			names, n.name, len(withValue), strings.Join(withValue, ", "))
		e.Params = map[string]any{"properties": n.choiceOf, "count": len(withValue)}
		return e, true
	}
	return ConformanceError{}, false
}
