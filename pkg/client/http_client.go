package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/troikatech/agent-console/pkg/circuitbreaker"
	"github.com/troikatech/agent-console/pkg/metrics"
	"github.com/troikatech/agent-console/pkg/retry"
)

// maxBodyBytes caps how much of an upstream response is buffered.
const maxBodyBytes = 10 << 20

type Config struct {
	ServiceName string
	Timeout     time.Duration
	Retry       retry.Policy
	Breaker     circuitbreaker.Config

	// Transport overrides the default transport, used by tests.
	Transport http.RoundTripper
}

// Response is a fully buffered upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestFunc builds a fresh request per attempt so bodies can be replayed.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// HTTPClient wraps http.Client with a circuit breaker, retries for
// idempotent requests and per-operation metrics.
type HTTPClient struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Policy
	service string
}

type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("upstream server error: %d", e.status)
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}

	service := cfg.ServiceName
	breakerCfg := cfg.Breaker
	if breakerCfg.FailureThreshold == 0 {
		breakerCfg = circuitbreaker.DefaultConfig()
	}
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(service, to.String())
		if userHook != nil {
			userHook(from, to)
		}
	}
	metrics.SetCircuitBreakerState(service, circuitbreaker.StateClosed.String())

	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: circuitbreaker.New(service, breakerCfg),
		retry:   cfg.Retry,
		service: service,
	}
}

// Breaker exposes the breaker for health reporting.
func (c *HTTPClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Do sends the request built by newReq. Only GET requests are retried.
// A 5xx after the last attempt is returned as a Response, not an error.
func (c *HTTPClient) Do(ctx context.Context, operation, method string, newReq RequestFunc) (*Response, error) {
	start := time.Now()

	policy := retry.Once()
	if method == http.MethodGet {
		policy = c.retry
	}

	var resp *Response
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, policy, func(ctx context.Context) error {
			r, err := c.send(ctx, newReq)
			if err != nil {
				return err
			}
			resp = r
			if r.StatusCode >= 500 {
				return &serverError{status: r.StatusCode}
			}
			return nil
		})
	})

	var se *serverError
	if errors.As(err, &se) && resp != nil {
		err = nil
	}

	metrics.RecordPlatformCall(operation, err == nil && resp != nil && resp.StatusCode < 400, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.service, operation, err)
	}
	return resp, nil
}

func (c *HTTPClient) send(ctx context.Context, newReq RequestFunc) (*Response, error) {
	req, err := newReq(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}
