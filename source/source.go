// Package source decodes JSON text into the generic values the conformance
// engine binds: map[string]any, []any, string, bool, nil and json.Number.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"
)

var (
	// ErrBlank is returned for input that is empty or only whitespace.
	ErrBlank = errors.New("blank json text")
	// ErrTrailingData is returned when more than one JSON value is present.
	ErrTrailingData = errors.New("trailing data after json value")
)

// Options controls Decode.
type Options struct {
	// RejectDuplicateKeys fails decoding when an object repeats a key.
	RejectDuplicateKeys bool
}

// DuplicateKeyError reports a repeated object key with its JSON Pointer.
type DuplicateKeyError struct {
	Key  string
	Path string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q at %s", e.Key, e.Path)
}

// Decode parses exactly one JSON value. Numbers are kept as json.Number so
// that decimal bounds see the literal text.
func Decode(data []byte, opt Options) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrBlank
	}
	if opt.RejectDuplicateKeys {
		if err := detectDuplicateKeys(j.NewDecoder(bytes.NewReader(data))); err != nil {
			return nil, err
		}
	}
	dec := j.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return v, nil
}

// DecodeReader reads r fully and decodes it with Decode.
func DecodeReader(r io.Reader, opt Options) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data, opt)
}

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type dupFrame struct {
	kind         containerKind
	keys         map[string]struct{}
	expectingKey bool
	key          string
	index        int
}

func pointer(stack []dupFrame, leaf string) string {
	b := &strings.Builder{}
	for _, f := range stack[:len(stack)-1] {
		b.WriteByte('/')
		if f.kind == kindArray {
			b.WriteString(strconv.Itoa(f.index))
			continue
		}
		b.WriteString(escape(f.key))
	}
	b.WriteByte('/')
	b.WriteString(escape(leaf))
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// detectDuplicateKeys walks the token stream and fails on the first repeated
// key. Syntax errors are returned as-is.
func detectDuplicateKeys(dec *j.Decoder) error {
	var stack []dupFrame

	valueSeen := func() {
		if len(stack) == 0 {
			return
		}
		top := &stack[len(stack)-1]
		switch top.kind {
		case kindArray:
			top.index++
		case kindObject:
			top.expectingKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case j.Delim:
			switch v {
			case '{':
				stack = append(stack, dupFrame{kind: kindObject, keys: make(map[string]struct{}), expectingKey: true})
			case '[':
				stack = append(stack, dupFrame{kind: kindArray})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				valueSeen()
			}
		case string:
			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				if top.kind == kindObject && top.expectingKey {
					if _, ok := top.keys[v]; ok {
						return &DuplicateKeyError{Key: v, Path: pointer(stack, v)}
					}
					top.keys[v] = struct{}{}
					top.key = v
					top.expectingKey = false
					continue
				}
			}
			valueSeen()
		default:
			valueSeen()
		}
	}
}
