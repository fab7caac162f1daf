package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankingModel = "../../openapi/testdata/banking.yaml"

func TestPayloadCmd(t *testing.T) {
	var out bytes.Buffer
	code := payloadCmd([]string{"-model", bankingModel, "../../openapi/testdata/product_list.json"}, &out)
	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "PASS ../../openapi/testdata/product_list.json (ResponseBankingProductList)")

	out.Reset()
	code = payloadCmd([]string{"-model", bankingModel, "../../testdata/payloads/unknown.json", "missing.json"}, &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FAIL ../../testdata/payloads/unknown.json")
	assert.Contains(t, out.String(), "NO_MATCHING_MODEL /: No matching model found")
	assert.Contains(t, out.String(), "Failed to load file missing.json")
}

func TestPayloadCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	code := payloadCmd([]string{"-model", bankingModel, "-json", "../../testdata/payloads/blank.json"}, &out)
	assert.Equal(t, 1, code)

	var reports []fileReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Valid)
	require.Len(t, reports[0].Errors, 1)
	assert.Equal(t, "Blank json text... Ignored.", reports[0].Errors[0].Description)
}

func TestSchemasCmd(t *testing.T) {
	var out bytes.Buffer
	schemasCmd([]string{"-model", bankingModel}, &out)
	assert.Contains(t, out.String(), "payloads:\n  ResponseBankingProductList\n  ResponseBankingProductById\n")
	assert.Contains(t, out.String(), "listProducts 200 -> ResponseBankingProductList")
}

func TestAPICmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	abs, err := filepath.Abs(bankingModel)
	require.NoError(t, err)
	cfg := filepath.Join(t.TempDir(), "conformance.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
model:
  path: `+abs+`
log:
  level: error
target:
  base_url: `+srv.URL+`
  operations:
    - id: listProducts
      path: /banking/products
      query:
        - name: page
          value: "1"
`), 0o644))

	var out bytes.Buffer
	code := apiCmd([]string{"-config", cfg}, &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FAIL listProducts "+srv.URL+"/banking/products?page=1")
	assert.Contains(t, out.String(), "Expected response status 200 but got 500")
	assert.Contains(t, out.String(), "1 pages, 0 passed, 1 failed, 1 errors")
}
