package conformance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/conformance/i18n"
)

// Kind classifies a conformance violation.
type Kind string

// Error kinds. The set is closed: every violation the engine reports is one of these.
const (
	KindMissingProperty         Kind = "MISSING_PROPERTY"
	KindMissingValue            Kind = "MISSING_VALUE"
	KindPatternNotMatched       Kind = "PATTERN_NOT_MATCHED"
	KindNumberTooSmall          Kind = "NUMBER_TOO_SMALL"
	KindNumberTooBig            Kind = "NUMBER_TOO_BIG"
	KindBrokenConstraint        Kind = "BROKEN_CONSTRAINT"
	KindOneOfConstraint         Kind = "ONE_OF_CONSTRAINT"
	KindNoMatchingModel         Kind = "NO_MATCHING_MODEL"
	KindDataNotMatchingCriteria Kind = "DATA_NOT_MATCHING_CRITERIA"
)

// ConformanceError is a single violation found while validating an instance.
type ConformanceError struct {
	Kind Kind
	// Path is the JSON Pointer of the offending property (for example: /data/products/2/productId).
	Path string
	// Field is the property name, when the error concerns one.
	Field string
	// Schema is the name of the schema node being validated.
	Schema string
	// Fragment is a serialized snapshot of the data object that contained the
	// violation. It is best-effort and may be empty.
	Fragment string
	// Message overrides the rendered description when set.
	Message string
	// Params carries structured parameters (format name, min, max, values) for
	// descriptions and observability.
	Params map[string]any
}

// Description renders a human-readable sentence for the error. An explicit
// Message always wins over the kind template.
func (e ConformanceError) Description() string {
	if e.Message != "" {
		return e.Message
	}
	data := map[string]string{
		"field":  e.Field,
		"schema": e.Schema,
		"data":   e.Fragment,
		"path":   e.Path,
	}
	for k, v := range e.Params {
		data[k] = fmt.Sprint(v)
	}
	return i18n.T(string(e.Kind), data)
}

func (e ConformanceError) String() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Path, e.Description())
}

// Errors is an ordered collection of conformance errors that implements error.
type Errors []ConformanceError

// Error summarizes the first few errors.
func (es Errors) Error() string {
	if len(es) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(es)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := es[i]
		if it.Path != "" {
			fmt.Fprintf(b, "%s at %s", it.Kind, it.Path)
		} else {
			b.WriteString(string(it.Kind))
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Kinds returns the kind of each error in order.
func (es Errors) Kinds() []Kind {
	out := make([]Kind, len(es))
	for i, e := range es {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many errors have the given kind.
func (es Errors) Count(k Kind) int {
	n := 0
	for _, e := range es {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// AppendErrors appends errors to the destination, initializing the slice when
// needed so that an empty result is never nil.
func AppendErrors(dst Errors, more ...ConformanceError) Errors {
	if dst == nil {
		dst = Errors{}
	}
	return append(dst, more...)
}

// AsErrors extracts Errors from an error using errors.As internally.
func AsErrors(err error) (Errors, bool) {
	if err == nil {
		return nil, false
	}
	var es Errors
	if errors.As(err, &es) {
		return es, true
	}
	return nil, false
}

// single builds a one-element result for entry-point level failures.
func single(kind Kind, msg string) Errors {
	return Errors{{Kind: kind, Path: "/", Message: msg}}
}

// Sentinel faults. A fault means the schema model and the instance cannot be
// reconciled at all; it is never reported as a conformance error.
var (
	ErrShapeMismatch  = errors.New("instance shape incompatible with schema")
	ErrDepthExceeded  = errors.New("maximum nesting depth exceeded")
	ErrUnknownSchema  = errors.New("unknown schema")
	ErrUnknownPayload = errors.New("no payload schemas declared")
)

// Fault is an integration failure raised while validating. It wraps one of the
// sentinel errors above.
type Fault struct {
	Path   string
	Schema string
	Reason string
	Err    error
}

func (f *Fault) Error() string {
	b := &strings.Builder{}
	b.WriteString("conformance: ")
	b.WriteString(f.Err.Error())
	if f.Schema != "" {
		fmt.Fprintf(b, " (schema %s", f.Schema)
		if f.Path != "" {
			fmt.Fprintf(b, " at %s", f.Path)
		}
		b.WriteString(")")
	} else if f.Path != "" {
		fmt.Fprintf(b, " at %s", f.Path)
	}
	if f.Reason != "" {
		b.WriteString(": ")
		b.WriteString(f.Reason)
	}
	return b.String()
}

func (f *Fault) Unwrap() error { return f.Err }

func newFault(err error, schema string, p Location, reason string) *Fault {
	return &Fault{Path: p.Pointer(), Schema: schema, Reason: reason, Err: err}
}
