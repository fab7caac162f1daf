package conformance

import (
	"strconv"
	"strings"
)

// Location builds JSON Pointer paths in a chain-safe way. The zero value is the
// document root.
type Location struct {
	parts []string
}

// Root returns the document root location.
func Root() Location { return Location{} }

// Field returns the location of a named property below l.
func (l Location) Field(name string) Location {
	if name == "" {
		return l
	}
	// escape '~' -> '~0', '/' -> '~1' per RFC6901
	esc := strings.ReplaceAll(strings.ReplaceAll(name, "~", "~0"), "/", "~1")
	return Location{parts: append(append([]string{}, l.parts...), esc)}
}

// Index returns the location of an array element below l.
func (l Location) Index(i int) Location {
	return Location{parts: append(append([]string{}, l.parts...), strconv.Itoa(i))}
}

// Pointer renders the location as a JSON Pointer.
func (l Location) Pointer() string {
	if len(l.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(l.parts, "/")
}

// Depth is the number of segments below the root.
func (l Location) Depth() int { return len(l.parts) }

// errorAt creates a ConformanceError at the location.
func errorAt(l Location, kind Kind, field, schema string) ConformanceError {
	return ConformanceError{Kind: kind, Path: l.Pointer(), Field: field, Schema: schema}
}
