package conformance_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/reoring/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://api.example.com/banking/products"

func link(page int) string {
	return base + "?page=" + strconv.Itoa(page) + "&page-size=25"
}

func paged(links map[string]any, records, pages int) conformance.Map {
	return conformance.Map{
		"links": links,
		"meta":  map[string]any{"totalRecords": records, "totalPages": pages},
	}
}

func criteriaOnly(t *testing.T, errs conformance.Errors) {
	t.Helper()
	for _, e := range errs {
		assert.Equal(t, conformance.KindDataNotMatchingCriteria, e.Kind, e.Description())
	}
}

// --- request parameters ---

func TestParsePageParams(t *testing.T) {
	pp, errs := conformance.ParsePageParams(base)
	assert.Equal(t, conformance.PageParams{Page: 1, PageSize: 25}, pp)
	assert.Empty(t, errs)

	pp, errs = conformance.ParsePageParams(base + "?PAGE=3&Page-Size=10")
	assert.Equal(t, conformance.PageParams{Page: 3, PageSize: 10}, pp)
	assert.Empty(t, errs)

	pp, errs = conformance.ParsePageParams(base + "?page=0&page-size=many")
	assert.Equal(t, conformance.PageParams{Page: 1, PageSize: 25}, pp, "invalid values fall back to defaults")
	assert.Len(t, errs, 2)
	criteriaOnly(t, errs)
}

func TestQueryParam(t *testing.T) {
	v, ok := conformance.QueryParam("https://x/y?a=1&b=hello%20world#frag", "b")
	assert.True(t, ok)
	assert.Equal(t, "hello world", v)

	_, ok = conformance.QueryParam("https://x/y", "a")
	assert.False(t, ok)
}

// --- paginated responses ---

func TestCheckPagination_MiddlePageRequiresNext(t *testing.T) {
	req := link(2)
	links := map[string]any{
		"self":  req,
		"first": link(1),
		"prev":  link(1),
		"last":  link(3),
	}
	errs, err := conformance.CheckPagination(req, paged(links, 60, 3))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, conformance.KindDataNotMatchingCriteria, errs[0].Kind)
	assert.Equal(t, "/links/next", errs[0].Path)

	links["next"] = link(3)
	errs, err = conformance.CheckPagination(req, paged(links, 60, 3))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestCheckPagination_PrevOnFirstPage(t *testing.T) {
	req := link(1)
	links := map[string]any{
		"self":  req,
		"first": link(1),
		"prev":  link(1),
		"next":  link(2),
		"last":  link(3),
	}
	errs, err := conformance.CheckPagination(req, paged(links, 60, 3))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "/links/prev", errs[0].Path)
	criteriaOnly(t, errs)
}

func TestCheckPagination_SelfMismatch(t *testing.T) {
	req := link(1)
	other := base + "?page=1&page-size=25&x=1"
	links := map[string]any{
		"self":  other,
		"first": link(1),
		"last":  link(1),
	}
	errs, err := conformance.CheckPagination(req, paged(links, 10, 1))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Description(), other)
	assert.Contains(t, errs[0].Description(), req)

	// self is compared verbatim
	links["self"] = req + " "
	errs, err = conformance.CheckPagination(req, paged(links, 10, 1))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "/links/self", errs[0].Path)

	errs, err = conformance.CheckPagination(req, conformance.Map{"links": map[string]any{"self": req + " "}})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, conformance.KindDataNotMatchingCriteria, errs[0].Kind)
}

func TestCheckPagination_LargeCounts(t *testing.T) {
	const lastPage = "368934881474191033"
	req := link(1)
	links := map[string]any{
		"self":  req,
		"first": link(1),
		"next":  link(2),
		"last":  base + "?page=" + lastPage + "&page-size=25",
	}
	resp := func(pages string) conformance.Map {
		return conformance.Map{
			"links": links,
			"meta":  map[string]any{"totalRecords": "9223372036854775807", "totalPages": pages},
		}
	}

	errs, err := conformance.CheckPagination(req, resp(lastPage))
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = conformance.CheckPagination(req, resp("368934881474191032"))
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Equal(t, "/meta/totalPages", errs[0].Path)
	assert.Contains(t, errs[0].Description(), "(expected "+lastPage+")")
}

func TestCheckPagination_SingleResourceChecksSelfOnly(t *testing.T) {
	req := base + "/p-1"
	errs, err := conformance.CheckPagination(req, conformance.Map{"links": map[string]any{"self": req}})
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = conformance.CheckPagination(req, conformance.Map{"links": map[string]any{"self": base}})
	require.NoError(t, err)
	assert.Len(t, errs, 1)

	errs, err = conformance.CheckPagination(req, conformance.Fields{})
	require.NoError(t, err)
	assert.Empty(t, errs, "responses without links are not checked")
}

func TestCheckPagination_Rules(t *testing.T) {
	cases := []struct {
		name    string
		req     string
		links   map[string]any
		records int
		pages   int
		paths   []string
	}{
		{
			name:    "valid last page",
			req:     link(3),
			links:   map[string]any{"self": link(3), "first": link(1), "prev": link(2), "last": link(3)},
			records: 60,
			pages:   3,
		},
		{
			name:    "next on last page",
			req:     link(3),
			links:   map[string]any{"self": link(3), "first": link(1), "prev": link(2), "next": link(4), "last": link(3)},
			records: 60,
			pages:   3,
			paths:   []string{"/links/next"},
		},
		{
			name:    "total pages inconsistent with records",
			req:     link(1),
			links:   map[string]any{"self": link(1), "first": link(1), "next": link(2), "last": link(2)},
			records: 60,
			pages:   2,
			paths:   []string{"/meta/totalPages"},
		},
		{
			name:    "last does not match total pages",
			req:     link(1),
			links:   map[string]any{"self": link(1), "first": link(1), "next": link(2), "last": link(2)},
			records: 60,
			pages:   3,
			paths:   []string{"/links/last"},
		},
		{
			name:    "missing first and last",
			req:     link(1),
			links:   map[string]any{"self": link(1)},
			records: 10,
			pages:   1,
			paths:   []string{"/links/first", "/links/last"},
		},
		{
			name:    "no pages forbids first and last",
			req:     link(1),
			links:   map[string]any{"self": link(1), "first": link(1), "last": link(1)},
			records: 0,
			pages:   0,
			paths:   []string{"/links/first", "/links/last"},
		},
		{
			name:    "empty result without first and last",
			req:     link(1),
			links:   map[string]any{"self": link(1)},
			records: 0,
			pages:   0,
		},
		{
			name:    "first must point at page one",
			req:     link(2),
			links:   map[string]any{"self": link(2), "first": link(2), "prev": link(1), "last": link(2)},
			records: 30,
			pages:   2,
			paths:   []string{"/links/first"},
		},
		{
			name:    "prev page arithmetic",
			req:     link(3),
			links:   map[string]any{"self": link(3), "first": link(1), "prev": link(1), "last": link(3)},
			records: 60,
			pages:   3,
			paths:   []string{"/links/prev"},
		},
		{
			name:    "prev missing above first page",
			req:     link(2),
			links:   map[string]any{"self": link(2), "first": link(1), "last": link(2)},
			records: 30,
			pages:   2,
			paths:   []string{"/links/prev"},
		},
		{
			name:    "requested page beyond last",
			req:     link(4),
			links:   map[string]any{"self": link(4), "first": link(1), "prev": link(3), "last": link(3)},
			records: 60,
			pages:   3,
			paths:   []string{"/links/last"},
		},
		{
			name:    "page size changed in a link",
			req:     link(1),
			links:   map[string]any{"self": link(1), "first": base + "?page=1&page-size=10", "last": link(1)},
			records: 10,
			pages:   1,
			paths:   []string{"/links/first"},
		},
		{
			name:    "omitted page size in a link means the default",
			req:     link(1),
			links:   map[string]any{"self": link(1), "first": base + "?page=1", "last": base + "?page=1"},
			records: 10,
			pages:   1,
		},
		{
			name:    "link without page param",
			req:     link(1),
			links:   map[string]any{"self": link(1), "first": base, "last": link(1)},
			records: 10,
			pages:   1,
			paths:   []string{"/links/first"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs, err := conformance.CheckPagination(tc.req, paged(tc.links, tc.records, tc.pages))
			require.NoError(t, err)
			criteriaOnly(t, errs)
			var paths []string
			for _, e := range errs {
				paths = append(paths, e.Path)
			}
			assert.Equal(t, tc.paths, paths)
		})
	}
}

func TestCheckPagination_NullMetaAndLinks(t *testing.T) {
	errs, err := conformance.CheckPagination(link(1), conformance.Map{"errors": []any{}})
	require.NoError(t, err)
	assert.Empty(t, errs, "null links are left to structural validation")

	errs, err = conformance.CheckPagination(link(1), conformance.Map{
		"links": map[string]any{"self": link(1)},
		"meta":  nil,
	})
	require.NoError(t, err)
	assert.Empty(t, errs, "null meta is checked as a single resource")
}

func TestCheckPagination_NonObjectLinksIsFault(t *testing.T) {
	_, err := conformance.CheckPagination(link(1), conformance.Map{"links": "self", "meta": map[string]any{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, conformance.ErrShapeMismatch))
}
