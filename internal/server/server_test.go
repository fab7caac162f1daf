package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/reoring/conformance"
	"github.com/reoring/conformance/dsl"
	"github.com/reoring/conformance/internal/config"
	"github.com/reoring/conformance/internal/logger"
	"github.com/reoring/conformance/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, maxBody int64) (*Server, *bytes.Buffer) {
	t.Helper()
	m := dsl.Model(
		dsl.Object("ProductDetail").
			Field("data", dsl.Ref("Product")).Required().
			Field("links", dsl.Ref("Links")).Required(),
		dsl.Object("Product").
			Field("productId", dsl.String()).Required(),
		dsl.Object("Links").
			Field("self", dsl.String().URI()).Required(),
	).
		Response("getProduct", 200, "ProductDetail").
		MustBuild()

	cfg := config.Default().Server
	if maxBody > 0 {
		cfg.MaxBodyBytes = maxBody
	}
	var buf bytes.Buffer
	log := logger.New("server", logger.Config{Level: "debug", Output: &buf})
	return New(conformance.NewEngine(m), cfg, log), &buf
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, middleware.Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	var rep middleware.Report
	if rec.Code == http.StatusOK && strings.HasPrefix(target, "/v1/validate") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	}
	return rec, rep
}

// --- plumbing ---

func TestHealthzAndRequestID(t *testing.T) {
	s, logs := testServer(t, 0)

	rec, _ := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Contains(t, logs.String(), `"uri":"/healthz"`)
	assert.Contains(t, logs.String(), `"status":200`)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
	assert.Contains(t, logs.String(), `"request_id":"abc"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t, 0)
	do(t, s, http.MethodPost, "/v1/validate/payload", `{"data":{"productId":"p"},"links":{"self":"https://x/p"}}`)

	rec, _ := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conformance_validations_total")
}

func TestSchemas(t *testing.T) {
	s, _ := testServer(t, 0)
	rec, _ := do(t, s, http.MethodGet, "/v1/schemas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"schemas": ["ProductDetail", "Product", "Links"],
		"payloads": ["ProductDetail"],
		"operations": [{"operation": "getProduct", "code": 200, "schema": "ProductDetail"}]
	}`, rec.Body.String())
}

// --- payload ---

func TestValidatePayload(t *testing.T) {
	s, _ := testServer(t, 0)

	rec, rep := do(t, s, http.MethodPost, "/v1/validate/payload", `{"data":{"productId":"p"},"links":{"self":"https://x/p"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rep.Valid)
	assert.Equal(t, "ProductDetail", rep.Model)
	assert.Equal(t, rec.Header().Get(requestIDHeader), rep.ID)
	assert.Empty(t, rep.Errors)

	_, rep = do(t, s, http.MethodPost, "/v1/validate/payload", `{"data":{"productId":1},"links":{"self":"https://x/p"}}`)
	assert.False(t, rep.Valid)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, conformance.KindNoMatchingModel, rep.Errors[0].Kind)

	_, rep = do(t, s, http.MethodPost, "/v1/validate/payload", "")
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "Blank json text... Ignored.", rep.Errors[0].Description)
}

func TestValidatePayload_TooLarge(t *testing.T) {
	s, _ := testServer(t, 10)
	rec, _ := do(t, s, http.MethodPost, "/v1/validate/payload", `{"data":{"productId":"p"}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestValidatePayload_Fault(t *testing.T) {
	m := dsl.Model(dsl.Object("Lonely").Field("x", dsl.String())).MustBuild()
	s := New(conformance.NewEngine(m), config.Default().Server, nil)

	rec, _ := do(t, s, http.MethodPost, "/v1/validate/payload", `{"x":"y"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

// --- response ---

func TestValidateResponse(t *testing.T) {
	s, _ := testServer(t, 0)
	body := `{"data":{"productId":"p1","extra":true},"links":{"self":"https://api.example.com/products/p1"}}`

	rec, rep := do(t, s, http.MethodPost,
		"/v1/validate/response?operation=getProduct&status=200&request_url=https://api.example.com/products/p1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rep.Valid)
	assert.Equal(t, "ProductDetail", rep.Model)

	_, rep = do(t, s, http.MethodPost,
		"/v1/validate/response?operation=getProduct&status=200&request_url=https://api.example.com/products/p2", body)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, conformance.KindDataNotMatchingCriteria, rep.Errors[0].Kind)
	assert.Equal(t, "/links/self", rep.Errors[0].Path)

	_, rep = do(t, s, http.MethodPost, "/v1/validate/response?operation=getProduct&status=404", body)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "No response defined with code 404", rep.Errors[0].Description)
	assert.Empty(t, rep.Model)
}

func TestValidateResponse_BadParams(t *testing.T) {
	s, _ := testServer(t, 0)
	for _, target := range []string{
		"/v1/validate/response?status=200",
		"/v1/validate/response?operation=getProduct",
		"/v1/validate/response?operation=getProduct&status=abc",
		"/v1/validate/response?operation=getProduct&status=99",
	} {
		rec, _ := do(t, s, http.MethodPost, target, "{}")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := testServer(t, 0)
	rec, _ := do(t, s, http.MethodGet, "/v1/validate/payload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// --- lifecycle ---

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := testServer(t, 0)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
