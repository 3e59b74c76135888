// Package httpclient is the shared outbound HTTP transport: request spacing
// through a token bucket, a circuit breaker per upstream, and bounded retries
// for transport failures and 5xx responses.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
)

var (
	// ErrRateLimited is returned for 429 and 503 responses. The client does
	// not retry them; the caller owns the backoff policy.
	ErrRateLimited = errors.New("httpclient: rate limited by upstream")
	// ErrCircuitOpen is returned while the upstream's breaker rejects calls.
	ErrCircuitOpen = errors.New("httpclient: circuit open")
)

// StatusError is a 5xx response that survived every retry.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// RateLimitError carries the upstream's Retry-After hint. It matches ErrRateLimited.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d, retry after %s)", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// Options configures a Client. Zero values select defaults.
type Options struct {
	Name       string        // upstream label for metrics and the breaker
	Rate       float64       // requests per second; <= 0 disables spacing
	Burst      int           // token bucket size; defaults to 1
	Timeout    time.Duration // per-request timeout
	MaxRetries int           // retries after the first attempt
	RetryBase  time.Duration // linear backoff step between retries
	MaxHold    time.Duration // cap on the Retry-After pause; 0 ignores the hint
	UserAgent  string
	Logger     *logger.Logger
	HTTPClient *http.Client
}

// Client wraps an http.Client with rate limiting, a circuit breaker and retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[*http.Response]
	logger     *logger.Logger

	name       string
	userAgent  string
	maxRetries int
	retryBase  time.Duration
	maxHold    time.Duration

	// upstream-requested pause from Retry-After
	mu        sync.Mutex
	holdUntil time.Time
}

func NewClient(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "upstream"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultHTTPTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = constants.DefaultRetryBase
	}
	if opts.MaxHold < 0 {
		opts.MaxHold = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     opts.Logger.WithComponent("httpclient").With("upstream", opts.Name),
		name:       opts.Name,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBase,
		maxHold:    opts.MaxHold,
	}
	c.cb = newBreaker(opts.Name, c.logger)
	return c
}

func newBreaker(name string, log *logger.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Do sends req, waiting for the rate limiter first. 4xx responses other than
// 429 are returned to the caller untouched. Requests with a body must set
// GetBody to be retried.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*c.retryBase); err != nil {
				return nil, err
			}
		}

		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		attemptReq, err := c.prepare(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.cb.Execute(func() (*http.Response, error) {
			resp, err := c.httpClient.Do(attemptReq)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 && resp.StatusCode != http.StatusServiceUnavailable {
				drain(resp)
				return nil, &StatusError{StatusCode: resp.StatusCode}
			}
			return resp, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.UpstreamRequests.WithLabelValues(c.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, c.name, err)

		case err != nil:
			metrics.UpstreamRequests.WithLabelValues(c.name, "error").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			c.logger.Debug("Upstream request failed", "attempt", attempt+1, "url", req.URL.String(), "error", err)
			continue

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			retryAfter := parseRetryAfter(resp)
			drain(resp)
			c.hold(retryAfter)
			metrics.UpstreamRequests.WithLabelValues(c.name, "rate_limited").Inc()
			return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
		}

		metrics.UpstreamRequests.WithLabelValues(c.name, "ok").Inc()
		return resp, nil
	}
	return nil, lastErr
}

// Get builds and sends a GET request.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// GetUnderlyingClient returns the underlying *http.Client.
func (c *Client) GetUnderlyingClient() *http.Client {
	return c.httpClient
}

// BreakerState reports the current breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

func (c *Client) prepare(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		r.Body = body
	}
	if c.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.userAgent)
	}
	return r, nil
}

func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	until := c.holdUntil
	c.mu.Unlock()

	if d := time.Until(until); d > 0 {
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
	return c.limiter.Wait(ctx)
}

// hold pauses later requests for d, capped at maxHold.
func (c *Client) hold(d time.Duration) {
	d = min(d, c.maxHold)
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if next := time.Now().Add(d); next.After(c.holdUntil) {
		c.holdUntil = next
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// parseRetryAfter reads a Retry-After header and returns the duration to wait.
func parseRetryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		return time.Until(t)
	}
	return 0
}
