package conformance

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatViolation is one failed check of a value against a ValueFormat.
type FormatViolation struct {
	Kind   Kind
	Format string
	Bound  string
}

// CheckFormat checks a non-null value against f. Every failing check is
// reported: pattern, minimum, maximum, then the semantic kind. Bounds are only
// checked when the value's textual form parses as a decimal.
func CheckFormat(value any, f *ValueFormat) []FormatViolation {
	if f == nil || value == nil {
		return nil
	}
	var out []FormatViolation
	text := Stringify(value)
	if f.Pattern != "" {
		re := f.re
		if re == nil {
			// formats built outside NewModel are compiled on demand
			if cf, err := f.compiled(); err == nil {
				re = cf.re
			}
		}
		if re != nil && !re.MatchString(text) {
			out = append(out, FormatViolation{Kind: KindPatternNotMatched, Format: f.label()})
		}
	}
	if f.Min != nil || f.Max != nil {
		if d, ok := numeric(value, text); ok {
			if f.Min != nil && d.LessThan(*f.Min) {
				out = append(out, FormatViolation{Kind: KindNumberTooSmall, Format: f.label(), Bound: f.Min.String()})
			}
			if f.Max != nil && d.GreaterThan(*f.Max) {
				out = append(out, FormatViolation{Kind: KindNumberTooBig, Format: f.label(), Bound: f.Max.String()})
			}
		}
	}
	switch f.Semantic {
	case SemanticURI:
		if !IsURI(text) {
			out = append(out, FormatViolation{Kind: KindPatternNotMatched, Format: f.label()})
		}
	case SemanticDateTime:
		if _, err := parseRFC3339(text); err != nil {
			out = append(out, FormatViolation{Kind: KindPatternNotMatched, Format: f.label()})
		}
	}
	return out
}

func numeric(v any, text string) (decimal.Decimal, bool) {
	switch v.(type) {
	case bool, map[string]any, []any:
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Stringify renders a scalar the way it appears in JSON text, without quotes.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// IsURI reports whether s is a URI reference per RFC 3986: only unreserved,
// reserved and percent-encoded characters, and a structure net/url accepts.
func IsURI(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("-._~:/?#[]@!$&'()*+,;=", c) >= 0:
		case c == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return false
			}
			i += 2
		default:
			return false
		}
	}
	_, err := url.Parse(s)
	return err == nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}
