package source_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/reoring/conformance/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KeepsNumberLiterals(t *testing.T) {
	v, err := source.Decode([]byte(`{"rate": 0.10000000000000000001, "n": 3, "list": [1.50]}`), source.Options{})
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("0.10000000000000000001"), m["rate"])
	assert.Equal(t, json.Number("3"), m["n"])
	assert.Equal(t, []any{json.Number("1.50")}, m["list"])
}

func TestDecode_Blank(t *testing.T) {
	for _, in := range []string{"", "  ", "\n\t\r "} {
		_, err := source.Decode([]byte(in), source.Options{})
		assert.ErrorIs(t, err, source.ErrBlank, "%q", in)
	}
}

func TestDecode_TrailingData(t *testing.T) {
	_, err := source.Decode([]byte(`{"a": 1} {"b": 2}`), source.Options{})
	assert.ErrorIs(t, err, source.ErrTrailingData)

	_, err = source.Decode([]byte("{\"a\": 1}\n\n"), source.Options{})
	assert.NoError(t, err, "trailing whitespace is fine")
}

func TestDecode_Malformed(t *testing.T) {
	_, err := source.Decode([]byte(`{"a": }`), source.Options{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, source.ErrBlank))
}

func TestDecode_DuplicateKeys(t *testing.T) {
	in := []byte(`{"data": [{"id": 1}, {"id": 2, "id": 3}]}`)

	v, err := source.Decode(in, source.Options{})
	require.NoError(t, err, "duplicates are accepted unless rejected explicitly")
	require.NotNil(t, v)

	_, err = source.Decode(in, source.Options{RejectDuplicateKeys: true})
	var de *source.DuplicateKeyError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "id", de.Key)
	assert.Equal(t, "/data/1/id", de.Path)
}

func TestDecode_DuplicateKeyPathEscaping(t *testing.T) {
	_, err := source.Decode([]byte(`{"a/b": {"x~y": 1, "x~y": 2}}`), source.Options{RejectDuplicateKeys: true})
	var de *source.DuplicateKeyError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "/a~1b/x~0y", de.Path)
}

func TestDecode_SameKeyInSiblingsIsNotDuplicate(t *testing.T) {
	_, err := source.Decode([]byte(`{"a": {"id": 1}, "b": {"id": 2}, "id": 3}`), source.Options{RejectDuplicateKeys: true})
	assert.NoError(t, err)
}

func TestDecodeReader(t *testing.T) {
	v, err := source.DecodeReader(strings.NewReader(`[true, null, "x"]`), source.Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{true, nil, "x"}, v)
}
