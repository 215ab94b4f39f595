// Package coco drives the COCO Y0 estimation engine through its HTML form
// interface: fetch the landing form, submit the ranked matrix, and scrape the
// per-object estimations out of the response (or its linked detail page).
package coco

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/whr-oam/coco-cli/internal/resilience"
)

const (
	DefaultFormURL     = "https://miau.my-x.hu/myx-free/coco/beker_y0.php"
	DefaultEngineURL   = "https://miau.my-x.hu/myx-free/coco/engine3.php"
	DefaultUserAgent   = "Mozilla/5.0 WHR-OAM-COCO-Proxy"
	DefaultTimeout     = 60 * time.Second
	DefaultStair       = 50
	DefaultModel       = "Y0"
	DefaultButtonLabel = "Futtatás"
)

// Client defines the engine operations.
type Client interface {
	// Run submits one matrix and returns the acquisition outcome. Engine and
	// network failures are reported in the Outcome, not as errors; an error
	// is returned only when ctx is done.
	Run(ctx context.Context, sub Submission) (*Outcome, error)
	// Health probes the landing page and reports reachability.
	Health(ctx context.Context) (*HealthReport, error)
}

// Submission is the engine input: matrix text plus the object (row) and
// attribute (column) names in matrix order.
type Submission struct {
	MatrixText     string
	ObjectNames    []string
	AttributeNames []string
}

// Outcome is the result of one acquisition attempt. Estimations is aligned
// with Submission.ObjectNames; nil entries were not resolved.
type Outcome struct {
	Automated   bool         `json:"automated"`
	Estimations []*float64   `json:"estimations"`
	Message     string       `json:"message"`
	RawHTML     string       `json:"raw_html"`
	Target      string       `json:"target,omitempty"`
	Candidate   string       `json:"candidate,omitempty"`
	Attempts    []AttemptLog `json:"attempts,omitempty"`
}

// AttemptLog records one candidate/target combination that was tried.
type AttemptLog struct {
	Candidate string `json:"candidate"`
	Target    string `json:"target"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthReport is the landing page probe result.
type HealthReport struct {
	OK        bool   `json:"ok"`
	Status    int    `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	URL       string `json:"url"`
}

// Option configures the client.
type Option func(*httpClient)

// WithFormURL sets the landing form URL.
func WithFormURL(u string) Option {
	return func(c *httpClient) {
		c.formURL = u
	}
}

// WithEngineURL sets the fallback submission endpoint.
func WithEngineURL(u string) Option {
	return func(c *httpClient) {
		c.engineURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header sent on every call.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithTimeout bounds each individual HTTP call.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the per-call retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithHealthAttempts sets the attempt budget for Health probes.
func WithHealthAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.healthAttempts = n
		}
	}
}

// WithParsers replaces the response parsing strategies, tried in order.
func WithParsers(parsers ...Parser) Option {
	return func(c *httpClient) {
		if len(parsers) > 0 {
			c.parsers = parsers
		}
	}
}

// WithRateLimit caps outgoing calls per second. Zero or less disables it.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithStair sets the stair value of the first payload candidate.
func WithStair(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.stair = n
		}
	}
}

// WithModel sets the engine model field.
func WithModel(m string) Option {
	return func(c *httpClient) {
		if m != "" {
			c.model = m
		}
	}
}

// WithButtonLabel sets the submit button value the engine expects.
func WithButtonLabel(label string) Option {
	return func(c *httpClient) {
		if label != "" {
			c.buttonLabel = label
		}
	}
}

// WithParseThreshold sets the acceptance rule: at least max(minRows,
// floor(ratio × objects)) plausible estimations.
func WithParseThreshold(ratio float64, minRows int) Option {
	return func(c *httpClient) {
		c.threshold = Threshold{Ratio: ratio, MinRows: minRows}
	}
}

// WithClock overrides the time source used for job identifiers.
func WithClock(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	formURL        string
	engineURL      string
	userAgent      string
	timeout        time.Duration
	retry          resilience.RetryConfig
	healthAttempts int
	parsers        []Parser
	limiter        *rate.Limiter
	stair          int
	model          string
	buttonLabel    string
	threshold      Threshold
	now            func() time.Time
	http           *http.Client
}

// NewClient creates a new engine client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		formURL:        DefaultFormURL,
		engineURL:      DefaultEngineURL,
		userAgent:      DefaultUserAgent,
		timeout:        DefaultTimeout,
		retry:          resilience.DefaultRetryConfig(),
		healthAttempts: 2,
		parsers:        DefaultParsers(),
		limiter:        rate.NewLimiter(rate.Inf, 1),
		stair:          DefaultStair,
		model:          DefaultModel,
		buttonLabel:    DefaultButtonLabel,
		threshold:      DefaultThreshold(),
		now:            time.Now,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
