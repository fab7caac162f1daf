package openapi

import (
	"fmt"

	"github.com/reoring/conformance"
)

// Options controls Load.
type Options struct {
	// Formats adds to, or replaces entries of, the built-in format catalog.
	Formats map[string]conformance.ValueFormat
	// Payloads overrides the document's x-payloads list.
	Payloads []string
	// StrictResponses treats responses without a JSON schema as load errors
	// instead of warnings.
	StrictResponses bool
}

// Diag carries non-fatal warnings produced during load.
type Diag interface {
	HasWarnings() bool
	Warnings() []string
}

type simpleDiag struct{ ws []string }

func (d *simpleDiag) HasWarnings() bool        { return len(d.ws) > 0 }
func (d *simpleDiag) Warnings() []string       { return append([]string(nil), d.ws...) }
func (d *simpleDiag) warnf(f string, a ...any) { d.ws = append(d.ws, fmt.Sprintf(f, a...)) }
