package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	var gotHeader, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-v")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", Headers: map[string]string{"x-v": "3"}}, nil)
	resp, err := c.Get(context.Background(), "/banking/products?page=2&page-size=25")
	require.NoError(t, err)

	assert.Equal(t, "3", gotHeader)
	assert.Equal(t, "page=2&page-size=25", gotQuery)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.True(t, resp.IsJSON())
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestClient_AbsoluteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	resp, err := c.Get(context.Background(), srv.URL+"/next")
	require.NoError(t, err)
	assert.Equal(t, "/next", string(resp.Body))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := c.Get(context.Background(), "/slow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /slow")
}

func TestResponse_IsJSON(t *testing.T) {
	cases := map[string]bool{
		"application/json":                true,
		"Application/JSON; charset=utf-8": true,
		"application/problem+json":        false,
		"text/html":                       false,
		"":                                false,
	}
	for ct, want := range cases {
		assert.Equal(t, want, (&Response{ContentType: ct}).IsJSON(), ct)
	}
}
