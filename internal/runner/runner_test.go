package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/reoring/conformance"
	"github.com/reoring/conformance/dsl"
	"github.com/reoring/conformance/internal/apiclient"
	"github.com/reoring/conformance/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *conformance.Engine {
	t.Helper()
	m, err := dsl.Model(
		dsl.Object("ProductList").
			Field("data", dsl.Ref("ProductListData")).Required().
			Field("links", dsl.Ref("LinksPaginated")).Required().
			Field("meta", dsl.Ref("Meta")).Required(),
		dsl.Object("ProductListData").
			Field("products", dsl.ArrayOf("Product")).Required(),
		dsl.Object("Product").
			Field("productId", dsl.String()).Required(),
		dsl.Object("LinksPaginated").
			Field("self", dsl.String().URI()).Required().
			Field("first", dsl.String().URI()).
			Field("prev", dsl.String().URI()).
			Field("next", dsl.String().URI()).
			Field("last", dsl.String().URI()),
		dsl.Object("Meta").
			Field("totalRecords", dsl.Integer()).Required().
			Field("totalPages", dsl.Integer()).Required(),
	).
		Response("listProducts", 200, "ProductList").
		Build()
	require.NoError(t, err)
	return conformance.NewEngine(m)
}

// productServer serves three products two per page.
func productServer(t *testing.T, contentType string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/banking/products" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		link := func(p int) string {
			return fmt.Sprintf("%q", fmt.Sprintf("%s/banking/products?page=%d&page-size=2", srv.URL, p))
		}
		links := `"self":` + fmt.Sprintf("%q", srv.URL+r.URL.RequestURI()) + `,"first":` + link(1) + `,"last":` + link(2)
		if page == 1 {
			links += `,"next":` + link(2)
		} else {
			links += `,"prev":` + link(1)
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = fmt.Fprintf(w, `{"data":{"products":[{"productId":"p%d"}]},"links":{%s},"meta":{"totalRecords":3,"totalPages":2}}`, page, links)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func listOp(follow int) config.Operation {
	return config.Operation{
		ID:   "listProducts",
		Path: "/banking/products",
		Query: []config.QueryParam{
			{Name: "page", Value: "1"},
			{Name: "page-size", Value: "2"},
		},
		Follow: follow,
	}
}

func newRunner(t *testing.T, srv *httptest.Server, ops ...config.Operation) *Runner {
	target := config.TargetConfig{BaseURL: srv.URL, Operations: ops}
	return New(testEngine(t), apiclient.New(apiclient.Config{BaseURL: srv.URL}, nil), target, 2, nil)
}

// --- following ---

func TestRunOperation_FollowsNext(t *testing.T) {
	srv := productServer(t, "application/json")
	r := newRunner(t, srv)

	results := r.RunOperation(context.Background(), listOp(1))
	require.Len(t, results, 2)
	for i, res := range results {
		assert.True(t, res.Passed(), "page %d: %v %v", i, res.Errors, res.Err)
		assert.Equal(t, i, res.Page)
		assert.Equal(t, http.StatusOK, res.Status)
	}
	assert.Equal(t, srv.URL+"/banking/products?page=1&page-size=2", results[0].URL)
	assert.Equal(t, srv.URL+"/banking/products?page=2&page-size=2", results[1].URL)
}

func TestRunOperation_StopsWithoutNext(t *testing.T) {
	srv := productServer(t, "application/json")
	results := newRunner(t, srv).RunOperation(context.Background(), listOp(5))
	assert.Len(t, results, 2)
}

func TestRunOperation_NoFollow(t *testing.T) {
	srv := productServer(t, "application/json")
	results := newRunner(t, srv).RunOperation(context.Background(), listOp(0))
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed())
}

// --- per-page checks ---

func TestRunOperation_UnexpectedStatus(t *testing.T) {
	srv := productServer(t, "application/json")
	op := listOp(3)
	op.Path = "/banking/missing"

	results := newRunner(t, srv).RunOperation(context.Background(), op)
	require.Len(t, results, 1)
	assert.Equal(t, http.StatusNotFound, results[0].Status)
	require.Len(t, results[0].Errors, 1)
	assert.Equal(t, conformance.KindDataNotMatchingCriteria, results[0].Errors[0].Kind)
	assert.Equal(t, "Expected response status 200 but got 404", results[0].Errors[0].Description())
}

func TestRunOperation_ContentType(t *testing.T) {
	srv := productServer(t, "text/plain")
	results := newRunner(t, srv).RunOperation(context.Background(), listOp(0))
	require.Len(t, results, 1)
	require.Len(t, results[0].Errors, 1)
	assert.Equal(t, "missing content-type application/json in response header", results[0].Errors[0].Description())

	srv = productServer(t, "application/json; charset=utf-8")
	results = newRunner(t, srv).RunOperation(context.Background(), listOp(0))
	assert.True(t, results[0].Passed())
}

func TestRunOperation_PageSizeMismatch(t *testing.T) {
	srv := productServer(t, "application/json")
	op := listOp(0)
	op.Query[1].Value = "5"

	results := newRunner(t, srv).RunOperation(context.Background(), op)
	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].Errors)
	for _, e := range results[0].Errors {
		assert.Equal(t, conformance.KindDataNotMatchingCriteria, e.Kind)
	}
	assert.Equal(t, "/meta/totalPages", results[0].Errors[0].Path)
}

type failingGetter struct{}

func (failingGetter) Get(context.Context, string) (*apiclient.Response, error) {
	return nil, errors.New("connection refused")
}

func TestRunOperation_TransportError(t *testing.T) {
	r := New(testEngine(t), failingGetter{}, config.TargetConfig{BaseURL: "http://x"}, 1, nil)
	results := r.RunOperation(context.Background(), listOp(2))
	require.Len(t, results, 1)
	assert.EqualError(t, results[0].Err, "connection refused")
	assert.False(t, results[0].Passed())
}

// --- run ---

func TestRun_OrderAndSummary(t *testing.T) {
	srv := productServer(t, "application/json")
	missing := listOp(0)
	missing.ID = "missing"
	missing.Path = "/nowhere"
	r := newRunner(t, srv, listOp(1), missing)

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"listProducts", "listProducts", "missing"},
		[]string{results[0].Operation, results[1].Operation, results[2].Operation})

	s := Summarize(results)
	assert.Equal(t, Summary{Pages: 3, Passed: 2, Failed: 1, Errors: 1}, s)
}

func TestRun_CanceledContext(t *testing.T) {
	srv := productServer(t, "application/json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(t, srv, listOp(0)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextLink(t *testing.T) {
	next, ok := nextLink([]byte(`{"links":{"next":"https://x/p?page=2"}}`))
	assert.True(t, ok)
	assert.Equal(t, "https://x/p?page=2", next)

	for _, body := range []string{`{"links":{}}`, `{"links":{"next":null}}`, `{"links":{"next":""}}`, `[]`, `nope`} {
		_, ok := nextLink([]byte(body))
		assert.False(t, ok, body)
	}
}
