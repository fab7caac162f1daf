// Package middleware validates JSON bodies at net/http boundaries and
// carries the resulting reports in the request context.
package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/reoring/conformance"
)

// DefaultMaxBodyBytes bounds request bodies when Options leaves it zero.
const DefaultMaxBodyBytes int64 = 10 << 20

// ErrorView is the JSON shape of one conformance error.
type ErrorView struct {
	Kind        conformance.Kind `json:"kind"`
	Path        string           `json:"path"`
	Field       string           `json:"field,omitempty"`
	Schema      string           `json:"schema,omitempty"`
	Description string           `json:"description"`
}

// Report is the outcome of one validation at an HTTP boundary.
type Report struct {
	ID     string      `json:"id"`
	Valid  bool        `json:"valid"`
	Model  string      `json:"model,omitempty"`
	Errors []ErrorView `json:"errors"`
}

// ErrorPayload shapes Errors for JSON responses. The result is never nil so
// it encodes as [] rather than null.
func ErrorPayload(errs conformance.Errors) []ErrorView {
	out := make([]ErrorView, 0, len(errs))
	for _, e := range errs {
		out = append(out, ErrorView{
			Kind:        e.Kind,
			Path:        e.Path,
			Field:       e.Field,
			Schema:      e.Schema,
			Description: e.Description(),
		})
	}
	return out
}

// NewReport builds a Report that is valid when errs is empty.
func NewReport(id, model string, errs conformance.Errors) Report {
	return Report{ID: id, Valid: len(errs) == 0, Model: model, Errors: ErrorPayload(errs)}
}

type ctxKeyReport struct{}

// ContextWithReport attaches a Report to the context.
func ContextWithReport(ctx context.Context, r Report) context.Context {
	return context.WithValue(ctx, ctxKeyReport{}, r)
}

// ReportFromContext retrieves the Report stored by Payload or Response.
func ReportFromContext(ctx context.Context) (Report, bool) {
	r, ok := ctx.Value(ctxKeyReport{}).(Report)
	return r, ok
}

// Options configures the middlewares.
type Options struct {
	// MaxBodyBytes caps the bytes read from a body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Enforce answers 400 with the report instead of calling the next handler
	// when the body has conformance errors.
	Enforce bool
	// NewID generates report ids. Defaults to uuid.NewString.
	NewID func() string
	// OnReport observes every report, for logging or metrics.
	OnReport func(*http.Request, Report)
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// WriteJSON encodes v with go-json and writes it with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteFault answers 422 with the fault message.
func WriteFault(w http.ResponseWriter, id string, err error) {
	WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"id": id, "error": err.Error()})
}

// ReadBody reads at most limit bytes of the request body. A larger body
// yields an error wrapping *http.MaxBytesError.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

// WriteBodyError answers 413 for oversize bodies and 400 otherwise.
func WriteBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// Payload validates the request body as a payload, stores the Report in the
// request context and restores the body for the next handler.
func Payload(eng *conformance.Engine, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := ReadBody(w, r, opts.MaxBodyBytes)
			if err != nil {
				WriteBodyError(w, err)
				return
			}
			id := opts.NewID()
			res, err := eng.ValidatePayload(body)
			if err != nil {
				WriteFault(w, id, err)
				return
			}
			rep := NewReport(id, res.Schema, res.Errors)
			rep.Valid = res.Valid()
			if opts.OnReport != nil {
				opts.OnReport(r, rep)
			}
			if opts.Enforce && !rep.Valid {
				WriteJSON(w, http.StatusBadRequest, rep)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(ContextWithReport(r.Context(), rep)))
		})
	}
}

// RequestURL reconstructs the absolute URL the client requested, the value a
// paginated response's self link must echo.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (rec *recorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.buf.Write(b)
}

// Response validates what the wrapped handler answers for operationID. The
// response is buffered, validated against the schema mapped to its status,
// then written through unchanged unless Enforce is set and it has errors,
// in which case the client gets 500 with the report.
func Response(eng *conformance.Engine, operationID string, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			id := opts.NewID()
			errs, err := eng.ValidateResponseBytes(RequestURL(r), rec.buf.Bytes(), operationID, rec.status)
			if err != nil {
				errs = append(errs, conformance.ConformanceError{
					Kind:    conformance.KindNoMatchingModel,
					Path:    "/",
					Message: err.Error(),
				})
			}
			model := ""
			if n, ok := eng.Model().Response(operationID, rec.status); ok {
				model = n.Name()
			}
			rep := NewReport(id, model, errs)
			if opts.OnReport != nil {
				opts.OnReport(r, rep)
			}
			if opts.Enforce && !rep.Valid {
				WriteJSON(w, http.StatusInternalServerError, rep)
				return
			}
			w.WriteHeader(rec.status)
			_, _ = w.Write(rec.buf.Bytes())
		})
	}
}
