package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sync/atomic"
	"time"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/ratelimit"
	"canvasfetch/pkg/retry"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultUserAgent     = "canvasfetch/1.0"
	DefaultMaxImageBytes = 64 << 20
)

// Counter counts outgoing HTTP requests for one engine run
type Counter struct {
	n atomic.Int64
}

// Add records one request
func (c *Counter) Add() {
	if c != nil {
		c.n.Add(1)
	}
}

// Value returns the number of requests made so far
func (c *Counter) Value() int {
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

// Options configure a Client
type Options struct {
	// Source names the museum in errors and logs
	Source        string
	Timeout       time.Duration
	UserAgent     string
	SearchRetries int
	MaxImageBytes int64
	Limiter       ratelimit.Limiter
	Counter       *Counter
	Logger        logger.Logger
	// HTTPClient overrides the underlying client, mainly for tests
	HTTPClient *http.Client
	// Backoff between retried JSON requests; defaults to retry.SearchBackoff
	Backoff retry.BackoffStrategy
}

// Client is the HTTP transport shared by one museum adapter
type Client struct {
	source        string
	httpClient    *http.Client
	headers       map[string]string
	searchRetries int
	maxImageBytes int64
	limiter       ratelimit.Limiter
	counter       *Counter
	backoff       retry.BackoffStrategy
	logger        logger.Logger
}

// New creates a client from opts, filling in defaults
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = retry.SearchBackoff()
	}
	retries := opts.SearchRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		source:     opts.Source,
		httpClient: httpClient,
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept-Language": "en-US,en;q=0.9",
		},
		searchRetries: retries,
		maxImageBytes: maxBytes,
		limiter:       limiter,
		counter:       opts.Counter,
		backoff:       backoff,
		logger:        log.WithField("source", opts.Source),
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Requests returns the number of requests counted for this client's run
func (c *Client) Requests() int {
	return c.counter.Value()
}

// secretParams are query parameters that carry API keys
var secretParams = []string{"apikey", "api_key", "key"}

// redact hides API keys before a URL reaches the logs
func redact(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for _, name := range secretParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// doRequest performs a GET with the configured headers
func (c *Client) doRequest(ctx context.Context, url, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindTransient, c.source, err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindPermanent, c.source, err, "failed to create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", accept)

	c.counter.Add()
	logURL := redact(url)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if urlErr, ok := err.(*neturl.Error); ok {
			urlErr.URL = logURL
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":         logURL,
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})
		return nil, errs.Wrap(errs.KindTransient, c.source, err, "network error")
	}

	logger.LogRequest(c.logger, c.source, req.Method, logURL, resp.StatusCode, duration.Milliseconds())
	return resp, nil
}

// checkResponseStatus maps a non-200 status onto an error kind
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return errs.FromStatus(c.source, resp.StatusCode)
}

// GetJSON performs a GET request and decodes the JSON response into target.
// Transient failures are retried up to the configured search retry count.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	cfg := &retry.Config{
		MaxAttempts: c.searchRetries + 1,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	}
	err := retry.Do(func() error {
		return c.GetJSONOnce(ctx, url, target)
	}, cfg)
	if err != nil && errs.KindOf(err) == "" {
		return errs.Wrap(errs.KindTransient, c.source, err, "request failed")
	}
	return err
}

// GetJSONOnce performs a single GET and decodes the JSON response into target.
// Per-candidate lookups use it so a candidate is never retried within a run.
func (c *Client) GetJSONOnce(ctx context.Context, url string, target interface{}) error {
	resp, err := c.doRequest(ctx, url, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindTransient, c.source, err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		// Create a preview of the body for debugging
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redact(url),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.Wrap(errs.KindPermanent, c.source, err, "failed to parse JSON")
	}

	return nil
}

// Fetch downloads an image payload. It is never retried. Bodies larger than
// the configured limit are rejected as not an image.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.doRequest(ctx, url, "image/*,*/*;q=0.8")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		// Image hosts answer 401/403 for withheld files; that is not a key problem
		if errs.Is(err, errs.KindCredentials) {
			return nil, "", errs.Wrap(errs.KindPermanent, c.source, err, "image withheld")
		}
		return nil, "", err
	}

	if resp.ContentLength > c.maxImageBytes {
		return nil, "", errs.New(errs.KindNotAnImage, c.source,
			fmt.Sprintf("image too large: %d bytes", resp.ContentLength))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, "", errs.Wrap(errs.KindTransient, c.source, err, "failed to read image data")
	}
	if int64(len(data)) > c.maxImageBytes {
		return nil, "", errs.New(errs.KindNotAnImage, c.source,
			fmt.Sprintf("image exceeds %d bytes", c.maxImageBytes))
	}

	c.logger.DebugWithFields("image downloaded", map[string]interface{}{
		"url":  redact(url),
		"size": len(data),
	})
	return data, resp.Header.Get("Content-Type"), nil
}
