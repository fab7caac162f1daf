package openapi

import (
	"github.com/reoring/conformance"
	"github.com/shopspring/decimal"
)

func bound(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Catalog returns a fresh copy of the built-in named formats, keyed by the
// name used in x-cds-type.
func Catalog() map[string]conformance.ValueFormat {
	return map[string]conformance.ValueFormat{
		"ASCIIString":         {Name: "ASCIIString", Pattern: `[\x00-\x7F]*`},
		"NaturalNumber":       {Name: "NaturalNumber", Pattern: `[0-9]+`, Min: bound("0")},
		"PositiveInteger":     {Name: "PositiveInteger", Pattern: `[0-9]+`, Min: bound("1")},
		"NegativeInteger":     {Name: "NegativeInteger", Pattern: `-[0-9]+`, Max: bound("-1")},
		"Amount":              {Name: "Amount", Pattern: `-?[0-9]{1,16}(\.[0-9]{1,16})?`},
		"AmountString":        {Name: "AmountString", Pattern: `-?[0-9]{1,16}\.[0-9]{2,16}`},
		"RateString":          {Name: "RateString", Pattern: `-?[0-9]{1,16}(\.[0-9]{1,16})?`},
		"CurrencyString":      {Name: "CurrencyString", Pattern: `[A-Z]{3}`},
		"URIString":           {Name: "URIString", Semantic: conformance.SemanticURI},
		"DateTimeString":      {Name: "DateTimeString", Semantic: conformance.SemanticDateTime},
		"DateString":          {Name: "DateString", Pattern: `[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])`},
		"MaskedPANString":     {Name: "MaskedPANString", Pattern: `(xxxx ){3}[0-9]{4}`},
		"MaskedAccountString": {Name: "MaskedAccountString", Pattern: `(xxxx ){3}[0-9]{4}|x+[0-9]{4}`},
		"DurationString":      {Name: "DurationString", Pattern: `P([0-9]+Y)?([0-9]+M)?([0-9]+W)?([0-9]+D)?(T([0-9]+H)?([0-9]+M)?([0-9]+(\.[0-9]+)?S)?)?`},
	}
}
