package coco

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/whr-oam/coco-cli/internal/resilience"
)

// maxBodyBytes bounds how much of an engine response is read.
const maxBodyBytes = 16 << 20

// page is one fetched engine document.
type page struct {
	URL    string
	Status int
	Body   string
}

type request struct {
	method  string
	url     string
	form    url.Values
	referer bool
}

// session returns an HTTP client with its own cookie jar so that no two
// acquisitions share engine session state.
func (c *httpClient) session() *http.Client {
	hc := *c.http
	jar, err := cookiejar.New(nil)
	if err == nil {
		hc.Jar = jar
	}
	return &hc
}

// fetch performs req under the client's retry policy. attempts overrides
// the configured attempt budget when positive.
func (c *httpClient) fetch(ctx context.Context, hc *http.Client, req request, attempts int, op string) (*page, error) {
	cfg := c.retry
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	cfg.OnRetry = resilience.RetryLogger("coco", op)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*page, error) {
		return c.once(ctx, hc, req)
	})
}

// once performs a single HTTP call bounded by the per-call timeout. 5xx
// answers become ServerError and network failures TransportError; anything
// below 500 is returned to the caller as a page.
func (c *httpClient) once(ctx context.Context, hc *http.Client, req request) (*page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "coco: rate limiter")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.method, req.url, body)
	if err != nil {
		return nil, eris.Wrapf(err, "coco: create request %s", req.url)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.referer {
		httpReq.Header.Set("Referer", c.formURL)
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, &resilience.TransportError{URL: req.url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &resilience.TransportError{URL: req.url, Err: err}
	}

	if resilience.IsServerStatus(resp.StatusCode) {
		return nil, &resilience.ServerError{URL: req.url, StatusCode: resp.StatusCode}
	}

	return &page{URL: req.url, Status: resp.StatusCode, Body: string(data)}, nil
}
