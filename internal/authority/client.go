// Package authority fetches signed manifests and signing keys from the
// certificate authority and verifies them locally.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tv42/jog"

	"sdaasverify/internal/keydir"
)

const (
	DefaultBaseURL      = "https://sdaas.io"
	ManifestContentType = "application/sdaas.manifest+json"

	// DefaultMaxResponseSize bounds response bodies unless
	// WithMaxResponseSize says otherwise.
	DefaultMaxResponseSize = 8 << 20

	userAgent = "sdaasverify-go/1"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Error is a non-2xx response from the authority.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	URL        string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("authority error: GET %s: status=%d message=%s", e.URL, e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	store      *keydir.Store
	log        *jog.Logger
	maxBody    int64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithKeyStore caches fetched key directories and pins verified keys in s.
func WithKeyStore(s *keydir.Store) Option {
	return func(c *Client) { c.store = s }
}

func WithLogger(l *jog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMaxResponseSize bounds the bytes read from any response body.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// NewClient returns a client for the authority at baseURL. An empty baseURL
// means DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
		maxBody:    DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	if c.retry.BaseDelay <= 0 {
		c.retry.BaseDelay = 200 * time.Millisecond
	}
	if c.retry.MaxDelay <= 0 {
		c.retry.MaxDelay = 5 * time.Second
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxResponseSize
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type requestEvent struct {
	Method    string
	URL       string
	Attempt   int
	Status    int    `json:",omitempty"`
	RequestID string `json:",omitempty"`
	Error     string `json:",omitempty"`
}

func (c *Client) event(e any) {
	if c.log != nil {
		c.log.Event(e)
	}
}

// get fetches path, retrying transport errors and 429/502/503/504 until the
// attempts run out or ctx is done.
func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	url := c.baseURL + path
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		reqID := uuid.NewString()
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("X-Request-Id", reqID)

		ev := requestEvent{Method: http.MethodGet, URL: url, Attempt: attempt, RequestID: reqID}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			ev.Error = err.Error()
			c.event(ev)
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			if attempt < c.retry.MaxAttempts {
				if err := sleepWithBackoff(ctx, c.retry, attempt, ""); err != nil {
					return nil, err
				}
			}
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		_ = resp.Body.Close()
		if err == nil && int64(len(body)) > c.maxBody {
			err = fmt.Errorf("GET %s: response body exceeds %d bytes", url, c.maxBody)
		}
		ev.Status = resp.StatusCode
		if err != nil {
			ev.Error = err.Error()
		}
		c.event(ev)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}
		apiErr := parseError(resp, body, url)
		if apiErr.RequestID == "" {
			apiErr.RequestID = reqID
		}
		lastErr = apiErr
		if shouldRetryStatus(resp.StatusCode) && attempt < c.retry.MaxAttempts {
			if err := sleepWithBackoff(ctx, c.retry, attempt, resp.Header.Get("Retry-After")); err != nil {
				return nil, err
			}
			continue
		}
		return nil, apiErr
	}
	return nil, lastErr
}

func shouldRetryStatus(status int) bool {
	return status == 429 || status == 502 || status == 503 || status == 504
}

// backoff is the delay before the attempt after attempt: Retry-After seconds
// when the server sent them, otherwise full jitter over an exponential
// window. Both are capped by MaxDelay.
func backoff(cfg RetryConfig, attempt int, retryAfter string) time.Duration {
	if sec, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && sec >= 0 {
		return min(time.Duration(sec)*time.Second, cfg.MaxDelay)
	}
	window := cfg.BaseDelay << (attempt - 1)
	if window <= 0 || window > cfg.MaxDelay {
		window = cfg.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(window) + 1))
}

func sleepWithBackoff(ctx context.Context, cfg RetryConfig, attempt int, retryAfter string) error {
	t := time.NewTimer(backoff(cfg, attempt, retryAfter))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseError(resp *http.Response, body []byte, url string) *Error {
	out := &Error{StatusCode: resp.StatusCode, URL: url, RequestID: resp.Header.Get("X-Request-Id")}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		out.Message = strings.TrimSpace(string(body))
		if out.Message == "" {
			out.Message = http.StatusText(resp.StatusCode)
		}
		return out
	}
	if id, ok := obj["request_id"].(string); ok && id != "" {
		out.RequestID = id
	}
	if inner, ok := obj["error"].(map[string]any); ok {
		obj = inner
	}
	out.Code, _ = obj["code"].(string)
	out.Message, _ = obj["message"].(string)
	if out.Message == "" {
		if s, ok := obj["error"].(string); ok {
			out.Message = s
		} else {
			out.Message = http.StatusText(resp.StatusCode)
		}
	}
	return out
}

// StatusCode extracts the HTTP status from an *Error in err's chain, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
