package conformance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/reoring/conformance/source"
	"golang.org/x/sync/errgroup"
)

// Engine validates payloads and API responses against a Model. It is
// immutable once constructed and safe for concurrent use.
type Engine struct {
	model     *Model
	validator *Validator
	opts      options
}

// NewEngine returns an Engine bound to m.
func NewEngine(m *Model, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{model: m, validator: &Validator{opts: o}, opts: o}
}

// Model returns the engine's schema model.
func (e *Engine) Model() *Model { return e.model }

// Validator returns the engine's structural validator.
func (e *Engine) Validator() *Validator { return e.validator }

// PayloadResult is the outcome of ValidatePayload.
type PayloadResult struct {
	// Schema is the name of the matched payload schema, empty when none matched.
	Schema string
	Errors Errors
}

// Valid reports whether the payload matched a schema without violations.
func (r PayloadResult) Valid() bool { return r.Schema != "" && len(r.Errors) == 0 }

// ValidatePayload tries each payload candidate in order and validates the
// payload against the first schema it binds to strictly. When none binds the
// result is a single NO_MATCHING_MODEL error.
func (e *Engine) ValidatePayload(data []byte) (PayloadResult, error) {
	raw, err := source.Decode(data, source.Options{RejectDuplicateKeys: e.opts.rejectDupKeys})
	if err != nil {
		if errors.Is(err, source.ErrBlank) {
			return PayloadResult{Errors: single(KindNoMatchingModel, "Blank json text... Ignored.")}, nil
		}
		return PayloadResult{Errors: single(KindNoMatchingModel, "Malformed json text: "+err.Error())}, nil
	}
	return e.ValidateDecoded(raw)
}

// ValidateString is ValidatePayload for JSON text.
func (e *Engine) ValidateString(s string) (PayloadResult, error) {
	if strings.TrimSpace(s) == "" {
		return PayloadResult{Errors: single(KindNoMatchingModel, "Blank json text... Ignored.")}, nil
	}
	return e.ValidatePayload([]byte(s))
}

// ValidateDecoded runs payload matching on an already decoded JSON value.
func (e *Engine) ValidateDecoded(raw any) (PayloadResult, error) {
	candidates := e.model.candidates
	if len(candidates) == 0 {
		return PayloadResult{}, &Fault{Err: ErrUnknownPayload}
	}
	for _, n := range candidates {
		obj, err := Bind(n, raw, BindOptions{MaxDepth: e.opts.maxDepth})
		if err != nil {
			e.opts.log.Debug().Str("schema", n.name).Err(err).Msg("payload does not bind")
			continue
		}
		e.opts.log.Debug().Str("schema", n.name).Msg("found matching payload model")
		errs, ferr := e.validator.Validate(obj, n)
		return PayloadResult{Schema: n.name, Errors: errs}, ferr
	}
	return PayloadResult{Errors: single(KindNoMatchingModel, "No matching model found")}, nil
}

// ValidateFile validates the payload stored at path.
func (e *Engine) ValidateFile(path string) (PayloadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		e.opts.log.Debug().Str("file", path).Err(err).Msg("payload file unreadable")
		return PayloadResult{Errors: single(KindNoMatchingModel, "Failed to load file "+path)}, nil
	}
	return e.ValidateString(string(data))
}

// FileResult pairs a file with its payload result.
type FileResult struct {
	Path string
	PayloadResult
	Err error
}

// ValidateFiles validates files concurrently with at most workers in flight.
// Results keep the input order. Faults are reported per file; the returned
// error is only the context's.
func (e *Engine) ValidateFiles(ctx context.Context, paths []string, workers int) ([]FileResult, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.ValidateFile(p)
			out[i] = FileResult{Path: p, PayloadResult: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// ValidateResponse validates a response instance against the schema declared
// for the operation and status code, then checks its pagination against the
// request URL. A missing mapping yields a single NO_MATCHING_MODEL error.
func (e *Engine) ValidateResponse(requestURL string, resp Instance, operationID string, code int) (Errors, error) {
	node, ok := e.model.Response(operationID, code)
	if !ok {
		return single(KindNoMatchingModel, fmt.Sprintf("No response model found for operation %s with response code %d", operationID, code)), nil
	}
	errs, err := e.validator.Validate(resp, node)
	if err != nil {
		return errs, err
	}
	perrs, err := CheckPagination(requestURL, resp)
	errs = append(errs, perrs...)
	e.opts.log.Debug().
		Str("operation", operationID).
		Int("code", code).
		Str("schema", node.name).
		Int("errors", len(errs)).
		Msg("response validated")
	return errs, err
}

// ValidateResponseCode is ValidateResponse for a raw HTTP status. A status no
// operation declares yields a single NO_MATCHING_MODEL error.
func (e *Engine) ValidateResponseCode(requestURL string, resp Instance, operationID string, status int) (Errors, error) {
	if !e.model.HasCode(status) {
		return single(KindNoMatchingModel, fmt.Sprintf("No response defined with code %d", status)), nil
	}
	return e.ValidateResponse(requestURL, resp, operationID, status)
}

// ValidateResponseBytes decodes a response body, binds it to the declared
// schema and validates it. Bodies that are not JSON, or that do not fit the
// schema's shape, yield a single NO_MATCHING_MODEL error.
func (e *Engine) ValidateResponseBytes(requestURL string, body []byte, operationID string, status int) (Errors, error) {
	if !e.model.HasCode(status) {
		return single(KindNoMatchingModel, fmt.Sprintf("No response defined with code %d", status)), nil
	}
	node, ok := e.model.Response(operationID, status)
	if !ok {
		return single(KindNoMatchingModel, fmt.Sprintf("No response model found for operation %s with response code %d", operationID, status)), nil
	}
	raw, err := source.Decode(body, source.Options{RejectDuplicateKeys: e.opts.rejectDupKeys})
	if err != nil {
		return single(KindNoMatchingModel, "Malformed response body: "+err.Error()), nil
	}
	obj, err := Bind(node, raw, BindOptions{AllowUnknown: !e.opts.responseStrict, MaxDepth: e.opts.maxDepth})
	if err != nil {
		return single(KindNoMatchingModel, fmt.Sprintf("Response body does not fit %s: %v", node.name, err)), nil
	}
	return e.ValidateResponse(requestURL, obj, operationID, status)
}
