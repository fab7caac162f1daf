// Package runner drives API conformance runs: it calls each configured
// operation of the target API and validates what comes back.
package runner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/reoring/conformance"
	"github.com/reoring/conformance/internal/apiclient"
	"github.com/reoring/conformance/internal/config"
	"github.com/reoring/conformance/internal/logger"
	"github.com/reoring/conformance/internal/metrics"
	"github.com/reoring/conformance/source"
	"golang.org/x/sync/errgroup"
)

// Getter is the part of apiclient.Client the runner needs.
type Getter interface {
	Get(ctx context.Context, url string) (*apiclient.Response, error)
}

// Result is the outcome of one fetched page.
type Result struct {
	Operation string
	URL       string
	// Page is 0 for the operation's own request and n for the n-th followed next link.
	Page   int
	Status int
	Errors conformance.Errors
	// Err is a transport failure or a validation fault.
	Err error
}

// Passed reports whether the page was fetched and conforms.
func (r Result) Passed() bool { return r.Err == nil && len(r.Errors) == 0 }

type Runner struct {
	eng     *conformance.Engine
	client  Getter
	target  config.TargetConfig
	workers int
	log     *logger.Logger
}

func New(eng *conformance.Engine, client Getter, target config.TargetConfig, workers int, log *logger.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{eng: eng, client: client, target: target, workers: workers, log: log}
}

// Run executes every configured operation, at most workers at a time.
// Results are grouped by operation in configuration order, pages in fetch
// order. The returned error is only the context's.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	perOp := make([][]Result, len(r.target.Operations))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, op := range r.target.Operations {
		i, op := i, op
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perOp[i] = r.RunOperation(ctx, op)
			return nil
		})
	}
	err := g.Wait()
	var out []Result
	for _, rs := range perOp {
		out = append(out, rs...)
	}
	return out, err
}

// RunOperation fetches the operation's URL and then up to op.Follow next
// pages, validating each one. Following stops at the first page that fails
// to load or carries no next link.
func (r *Runner) RunOperation(ctx context.Context, op config.Operation) []Result {
	url := r.target.OperationURL(op)
	var out []Result
	for page := 0; page <= op.Follow; page++ {
		res, body := r.check(ctx, op, url)
		res.Page = page
		out = append(out, res)
		if res.Err != nil || body == nil || page == op.Follow {
			break
		}
		next, ok := nextLink(body)
		if !ok {
			break
		}
		url = next
	}
	return out
}

// check fetches and validates a single page. body is nil when the response
// was not validated.
func (r *Runner) check(ctx context.Context, op config.Operation, url string) (Result, []byte) {
	res := Result{Operation: op.ID, URL: url}
	log := r.log.With().Str("operation", op.ID).Str("url", url).Logger()

	resp, err := r.client.Get(ctx, url)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(op.ID, "error").Inc()
		log.Error().Err(err).Msg("request failed")
		res.Err = err
		return res, nil
	}
	res.Status = resp.Status
	metrics.UpstreamRequestsTotal.WithLabelValues(op.ID, strconv.Itoa(resp.Status)).Inc()

	if want := op.Status(); resp.Status != want {
		res.Errors = conformance.Errors{criteria(fmt.Sprintf("Expected response status %d but got %d", want, resp.Status))}
		log.Warn().Int("status", resp.Status).Msg("unexpected status")
		return res, nil
	}
	if !resp.IsJSON() {
		res.Errors = append(res.Errors, criteria("missing content-type application/json in response header"))
	}

	start := time.Now()
	errs, err := r.eng.ValidateResponseBytes(url, resp.Body, op.ID, resp.Status)
	metrics.Observe(metrics.TargetResponse, errs, err, time.Since(start))
	res.Errors = append(res.Errors, errs...)
	res.Err = err

	ev := log.Info()
	if !res.Passed() {
		ev = log.Warn()
	}
	ev.Int("status", resp.Status).Int("errors", len(res.Errors)).Err(err).Msg("response validated")
	return res, resp.Body
}

func criteria(msg string) conformance.ConformanceError {
	return conformance.ConformanceError{Kind: conformance.KindDataNotMatchingCriteria, Path: "/", Message: msg}
}

// nextLink extracts links.next from a JSON body.
func nextLink(body []byte) (string, bool) {
	raw, err := source.Decode(body, source.Options{})
	if err != nil {
		return "", false
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	links, ok := root["links"].(map[string]any)
	if !ok {
		return "", false
	}
	next, ok := links["next"].(string)
	return next, ok && next != ""
}

// Summary counts passed and failed pages.
type Summary struct {
	Pages  int
	Passed int
	Failed int
	Errors int
}

func Summarize(results []Result) Summary {
	s := Summary{Pages: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Errors += len(r.Errors)
	}
	return s
}
