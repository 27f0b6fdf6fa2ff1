// Package httpretry provides the shared HTTP retry policy used by every
// outbound call in the pipeline. The policy is injected at each call site so
// stages stay testable without real backoff sleeps.
package httpretry

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// Strategy selects how the delay between attempts grows.
type Strategy string

const (
	// StrategyFixed sleeps BaseDelay between every attempt.
	StrategyFixed Strategy = "fixed"
	// StrategyExponential sleeps BaseDelay * 2^attempt capped at MaxDelay,
	// plus uniform jitter in [0, JitterMax].
	StrategyExponential Strategy = "exponential"
)

// Policy describes one retry/backoff configuration.
type Policy struct {
	Timeout       time.Duration
	MaxRetries    int
	RetryStatuses map[int]bool
	Strategy      Strategy
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterMax     time.Duration
}

// Statuses builds a retryable status set.
func Statuses(codes ...int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set
}

// Delay computes the backoff before the attempt numbered attempt (1-based
// for exponential growth, matching base*2^1 after the first failure).
func (p Policy) Delay(attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	if p.Strategy == StrategyFixed {
		return p.BaseDelay
	}
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > p.MaxDelay || delay < 0 {
		delay = p.MaxDelay
	}
	if p.JitterMax > 0 && jitter != nil {
		delay += jitter(p.JitterMax)
	}
	return delay
}

// Request is one outbound call before policy application.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  map[string]string
	Body    []byte
}

// Client executes requests under a Policy. The zero value is not usable;
// call New.
type Client struct {
	httpClient *http.Client
	sleep      func(time.Duration)
	jitter     func(time.Duration) time.Duration
}

// Option customizes a Client, mainly for tests.
type Option func(*Client)

// WithSleep replaces the inter-attempt sleep.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithJitter replaces the jitter source.
func WithJitter(jitter func(time.Duration) time.Duration) Option {
	return func(c *Client) { c.jitter = jitter }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New creates a retrying client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		sleep:      time.Sleep,
		jitter: func(max time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(max) + 1))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues req under policy. It attempts up to MaxRetries+1 times, retrying
// on transport errors and on statuses in RetryStatuses. The final transport
// error propagates; any response, retryable or not, is returned to the caller
// for classification once attempts are exhausted or the status is terminal.
// The response body is fully read and replaced so callers can consume it
// without worrying about connection reuse.
func (c *Client) Do(req Request, policy Policy) (*http.Response, error) {
	target := req.URL
	if len(req.Params) > 0 {
		values := url.Values{}
		for key, value := range req.Params {
			values.Set(key, value)
		}
		target = req.URL + "?" + values.Encode()
	}

	client := c.httpClient
	if policy.Timeout > 0 {
		clone := *c.httpClient
		clone.Timeout = policy.Timeout
		client = &clone
	}

	var resp *http.Response
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		httpReq, err := http.NewRequest(req.Method, target, bytes.NewReader(req.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", req.URL, err)
		}
		for key, value := range req.Headers {
			httpReq.Header.Set(key, value)
		}

		resp, err = client.Do(httpReq)
		if err != nil {
			if attempt >= policy.MaxRetries {
				return nil, fmt.Errorf("request to %s failed after %d attempts: %w", req.URL, attempt+1, err)
			}
			c.sleep(policy.Delay(attempt+1, c.jitter))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if attempt >= policy.MaxRetries {
				return nil, fmt.Errorf("failed to read response from %s: %w", req.URL, readErr)
			}
			c.sleep(policy.Delay(attempt+1, c.jitter))
			continue
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))

		if policy.RetryStatuses[resp.StatusCode] && attempt < policy.MaxRetries {
			c.sleep(policy.Delay(attempt+1, c.jitter))
			continue
		}
		return resp, nil
	}
	return resp, nil
}

// ReadBody drains a response produced by Do.
func ReadBody(resp *http.Response) []byte {
	if resp == nil || resp.Body == nil {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return body
}
