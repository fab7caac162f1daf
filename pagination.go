package conformance

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Pagination defaults applied when a request omits or garbles its parameters.
const (
	DefaultPage     = 1
	DefaultPageSize = 25

	ParamPage     = "page"
	ParamPageSize = "page-size"
)

// PageParams is the pagination context derived from a request URL.
type PageParams struct {
	Page     int
	PageSize int
}

// QueryParam returns the raw value of a query parameter, matching the name
// case-insensitively, and whether it was present. Values are percent-decoded
// when possible.
func QueryParam(rawURL, name string) (string, bool) {
	q := rawURL
	if i := strings.IndexByte(q, '?'); i >= 0 {
		q = q[i+1:]
	} else {
		return "", false
	}
	if i := strings.IndexByte(q, '#'); i >= 0 {
		q = q[:i]
	}
	for _, pair := range strings.Split(q, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if !strings.EqualFold(k, name) {
			continue
		}
		if dv, err := url.QueryUnescape(v); err == nil {
			v = dv
		}
		return v, true
	}
	return "", false
}

// ParsePageParams extracts page and page-size from a request URL. A missing
// parameter takes its default; an invalid one takes its default and is
// reported as DATA_NOT_MATCHING_CRITERIA.
func ParsePageParams(requestURL string) (PageParams, Errors) {
	pp := PageParams{Page: DefaultPage, PageSize: DefaultPageSize}
	errs := Errors{}
	if v, ok := QueryParam(requestURL, ParamPage); ok {
		if n, valid := positiveInt(v); valid {
			pp.Page = n
		} else {
			errs = append(errs, criteria(fmt.Sprintf("Request %s parameter '%s' is not a valid page number, using %d", ParamPage, v, DefaultPage)))
		}
	}
	if v, ok := QueryParam(requestURL, ParamPageSize); ok {
		if n, valid := positiveInt(v); valid {
			pp.PageSize = n
		} else {
			errs = append(errs, criteria(fmt.Sprintf("Request %s parameter '%s' is not a valid page size, using %d", ParamPageSize, v, DefaultPageSize)))
		}
	}
	return pp, errs
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func criteria(msg string) ConformanceError {
	return ConformanceError{Kind: KindDataNotMatchingCriteria, Path: "/", Message: msg}
}

func criteriaAt(at Location, field, msg string) ConformanceError {
	return ConformanceError{Kind: KindDataNotMatchingCriteria, Path: at.Pointer(), Field: field, Message: msg}
}

// CheckPagination checks a response's links and meta against the request URL.
// A response carrying both links and meta is paginated; one whose meta is
// absent or null is a single resource whose links.self must echo the request.
// Without links nothing is checked. Every inconsistency is collected. A
// non-nil error is a *Fault raised when links or meta is not an object.
// Reporting a missing links or meta member is left to structural validation
// of the response schema (see DESIGN.md §9.4).
func CheckPagination(requestURL string, resp Instance) (Errors, error) {
	errs := Errors{}
	if resp == nil {
		return errs, nil
	}
	linksV, _ := resp.Lookup("links")
	if isNull(linksV) {
		return errs, nil
	}
	linksAt := Root().Field("links")
	links, ok := asInstance(linksV)
	if !ok {
		return errs, newFault(ErrShapeMismatch, "", linksAt, fmt.Sprintf("links is %T", linksV))
	}
	metaV, _ := resp.Lookup("meta")
	if isNull(metaV) {
		if self := rawLink(links, "self"); self != requestURL {
			errs = append(errs, criteriaAt(linksAt.Field("self"), "self", fmt.Sprintf("Self %s does not match request url %s", self, requestURL)))
		}
		return errs, nil
	}
	metaAt := Root().Field("meta")
	meta, ok := asInstance(metaV)
	if !ok {
		return errs, newFault(ErrShapeMismatch, "", metaAt, fmt.Sprintf("meta is %T", metaV))
	}

	params, perr := ParsePageParams(requestURL)
	pc := &pageCheck{requestURL: requestURL, params: params, links: links, errs: append(errs, perr...)}
	pc.meta(meta, metaAt)
	pc.linkSet(linksAt)
	return pc.errs, nil
}

type pageCheck struct {
	requestURL string
	params     PageParams
	links      Instance
	errs       Errors

	totalPages      decimal.Decimal
	totalPagesKnown bool
}

func (pc *pageCheck) add(at Location, field, format string, args ...any) {
	pc.errs = append(pc.errs, criteriaAt(at, field, fmt.Sprintf(format, args...)))
}

func (pc *pageCheck) meta(meta Instance, at Location) {
	records, recordsOK := pc.metaInt(meta, at, "totalRecords")
	pages, pagesOK := pc.metaInt(meta, at, "totalPages")
	pc.totalPages, pc.totalPagesKnown = pages, pagesOK
	if !recordsOK || !pagesOK {
		return
	}
	want := records.Div(decimal.NewFromInt(int64(pc.params.PageSize))).Ceil()
	if !pages.Equal(want) {
		pc.add(at.Field("totalPages"), "totalPages",
			"meta.totalPages %s does not match totalRecords %s with page size %d (expected %s)",
			pages, records, pc.params.PageSize, want)
	}
}

func (pc *pageCheck) metaInt(meta Instance, at Location, name string) (decimal.Decimal, bool) {
	v, ok := meta.Lookup(name)
	if !ok || isNull(v) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(Stringify(v))
	if err != nil || !d.IsInteger() || d.IsNegative() {
		pc.add(at.Field(name), name, "meta.%s value %s is not a valid count", name, Stringify(v))
		return decimal.Zero, false
	}
	return d, true
}

// linkText returns a link's URL, or "" when it is absent, null or blank.
func linkText(links Instance, name string) string {
	return strings.TrimSpace(rawLink(links, name))
}

// rawLink returns a link's URL as sent, or "" when it is absent or null.
func rawLink(links Instance, name string) string {
	v, ok := links.Lookup(name)
	if !ok || isNull(v) {
		return ""
	}
	return Stringify(v)
}

func (pc *pageCheck) linkSet(at Location) {
	first := linkText(pc.links, "first")
	last := linkText(pc.links, "last")
	prev := linkText(pc.links, "prev")
	next := linkText(pc.links, "next")
	self := rawLink(pc.links, "self")
	page := pc.params.Page

	noPages := pc.totalPagesKnown && pc.totalPages.IsZero()

	// first
	switch {
	case noPages && first != "":
		pc.add(at.Field("first"), "first", "Links first %s should be absent as there are no pages", first)
	case !noPages && first == "":
		pc.add(at.Field("first"), "first", "Links does not have first link")
	case first != "":
		if n, ok := pc.linkPage(at, "first", first); ok && n != 1 {
			pc.add(at.Field("first"), "first", "Links first %s page param should be 1 but is %d", first, n)
		}
		pc.linkPageSize(at, "first", first)
	}

	// last
	switch {
	case noPages && last != "":
		pc.add(at.Field("last"), "last", "Links last %s should be absent as there are no pages", last)
	case !noPages && last == "":
		pc.add(at.Field("last"), "last", "Links does not have last link")
	case last != "":
		if n, ok := pc.linkPage(at, "last", last); ok {
			switch {
			case n < page:
				pc.add(at.Field("last"), "last", "Links last %s page param %d is before requested page %d", last, n, page)
			case n == page && next != "":
				pc.add(at.Field("next"), "next", "Links next %s should be absent on the last page", next)
			case n > page && next == "":
				pc.add(at.Field("next"), "next", "Links does not have next link although requested page %d is before last page %d", page, n)
			}
			if pc.totalPagesKnown && pc.totalPages.IsPositive() && !pc.totalPages.Equal(decimal.NewFromInt(int64(n))) {
				pc.add(at.Field("last"), "last", "Links last %s page param %d does not match meta.totalPages %s", last, n, pc.totalPages)
			}
		}
		pc.linkPageSize(at, "last", last)
	}

	// self
	if self != pc.requestURL {
		pc.add(at.Field("self"), "self", "Self %s does not match request url %s", self, pc.requestURL)
	}

	// prev
	switch {
	case page == 1 && prev != "":
		pc.add(at.Field("prev"), "prev", "Links prev %s should be absent on the first page", prev)
	case page > 1 && prev == "":
		pc.add(at.Field("prev"), "prev", "Links does not have prev link although requested page is %d", page)
	case prev != "":
		if n, ok := pc.linkPage(at, "prev", prev); ok && n != page-1 {
			pc.add(at.Field("prev"), "prev", "Links prev %s page param should be %d but is %d", prev, page-1, n)
		}
		pc.linkPageSize(at, "prev", prev)
	}

	// next
	if next != "" {
		if n, ok := pc.linkPage(at, "next", next); ok && n != page+1 {
			pc.add(at.Field("next"), "next", "Links next %s page param should be %d but is %d", next, page+1, n)
		}
		pc.linkPageSize(at, "next", next)
	}
}

// linkPage reads the page parameter of a link URL. A link without one, or
// with an invalid one, is reported.
func (pc *pageCheck) linkPage(at Location, name, link string) (int, bool) {
	v, ok := QueryParam(link, ParamPage)
	if !ok || strings.TrimSpace(v) == "" {
		pc.add(at.Field(name), name, "Links %s %s does not have %s param", name, link, ParamPage)
		return 0, false
	}
	n, valid := positiveInt(v)
	if !valid {
		pc.add(at.Field(name), name, "Links %s %s has invalid %s param '%s'", name, link, ParamPage, v)
		return 0, false
	}
	return n, true
}

// linkPageSize checks that a link keeps the requested page size. A link that
// omits page-size implies the default.
func (pc *pageCheck) linkPageSize(at Location, name, link string) {
	size := DefaultPageSize
	if v, ok := QueryParam(link, ParamPageSize); ok {
		n, valid := positiveInt(v)
		if !valid {
			pc.add(at.Field(name), name, "Links %s %s has invalid %s param '%s'", name, link, ParamPageSize, v)
			return
		}
		size = n
	}
	if size != pc.params.PageSize {
		pc.add(at.Field(name), name, "Links %s %s %s param %d does not match requested page size %d", name, link, ParamPageSize, size, pc.params.PageSize)
	}
}
