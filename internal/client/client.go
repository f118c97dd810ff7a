package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/nuitester/internal/infrastructure/resilience"
)

// DefaultBaseURL is where a locally started server listens.
const DefaultBaseURL = "http://127.0.0.1:8000"

// userAgentVersion is sent in the User-Agent header.
const userAgentVersion = "0.1.0"

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	MinWait   time.Duration
	MaxWait   time.Duration
	RPS       float64 // 0 means unlimited
	UserAgent string
	Logger    *zap.Logger
}

// DefaultOptions returns options suited to a server on the same machine.
func DefaultOptions() Options {
	return Options{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		Retries:   3,
		MinWait:   500 * time.Millisecond,
		MaxWait:   10 * time.Second,
		UserAgent: "nuictl/" + userAgentVersion,
	}
}

// Client talks to the tester REST API. Calls are rate limited, retried on
// transport errors and overload responses, and go through a circuit
// breaker so a dead server fails fast.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// New creates a client.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	// Pooled transport from the retryable client
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	r := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.MinWait).
		SetRetryMaxWaitTime(opts.MaxWait).
		SetRetryAfter(backoff(opts.MinWait, opts.MaxWait)).
		AddRetryCondition(overloaded).
		SetHeader("User-Agent", opts.UserAgent).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetLogger(logger.Sugar()).
		SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS)))
	}

	breaker := resilience.New("nuitester-api", resilience.Settings{
		Probes:   1,
		Window:   time.Minute,
		Cooldown: 10 * time.Second,
		Trip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{resty: r, limiter: limiter, breaker: breaker, logger: logger}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.resty.BaseURL
}

// do sends one request. 5xx responses and transport errors count against
// the breaker; any non-2xx response comes back as an *APIError.
func (c *Client) do(ctx context.Context, method, url string, prepare func(*resty.Request)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.resty.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}

	resp, err := resilience.Call(c.breaker, func() (*resty.Response, error) {
		resp, err := req.Execute(method, url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, decodeError(resp)
		}
		return resp, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", resp.Time()))
	return resp, nil
}

// overloaded retries responses the server sends when it sheds load.
func overloaded(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return false
	}
	switch resp.StatusCode() {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff honors Retry-After the way retryablehttp does.
func backoff(minWait, maxWait time.Duration) resty.RetryAfterFunc {
	return func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
		if resp == nil || resp.Request == nil {
			return minWait, nil
		}
		return retryablehttp.DefaultBackoff(minWait, maxWait, resp.Request.Attempt, resp.RawResponse), nil
	}
}
