// Package apiclient calls the API under test during conformance runs.
package apiclient

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/reoring/conformance/internal/logger"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// Client is a resty client preconfigured with the target's headers and timeout.
type Client struct {
	http *resty.Client
}

// Response is the part of an HTTP response the runner validates.
type Response struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// IsJSON reports whether the Content-Type media type is application/json.
// Parameters such as charset are ignored.
func (r *Response) IsJSON() bool {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	return err == nil && mt == "application/json"
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetLogger(log).
		SetHeader("Accept", "application/json").
		SetHeaders(cfg.Headers)
	cli.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		log.Debug().
			Str("method", r.Request.Method).
			Str("url", r.Request.URL).
			Int("status", r.StatusCode()).
			Dur("duration", r.Time()).
			Int("size", len(r.Body())).
			Msg("upstream response")
		return nil
	})
	return &Client{http: cli}
}

// Get fetches url, which may be absolute or relative to the base URL. Any
// HTTP status is a successful call; only transport failures are errors.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return &Response{
		URL:         url,
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
		Duration:    resp.Time(),
	}, nil
}
