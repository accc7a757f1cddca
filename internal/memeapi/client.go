package memeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/timmy/memefeed/internal/config"
	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/metrics"
)

// Config holds connection settings for the meme service.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration

	// Token bucket shared by every outbound call.
	RPS   float64
	Burst int

	// The breaker opens after BreakerFailures consecutive network failures
	// and probes again after BreakerTimeout.
	BreakerFailures uint32
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

// ConfigFrom converts the api section of the application config.
func ConfigFrom(c config.APIConfig) *Config {
	return &Config{
		BaseURL:         c.BaseURL,
		Timeout:         c.Timeout,
		RetryCount:      c.RetryCount,
		RetryWait:       c.RetryWait,
		RPS:             c.RateLimit.RPS,
		Burst:           c.RateLimit.Burst,
		BreakerFailures: c.Breaker.ConsecutiveFailures,
		BreakerInterval: c.Breaker.Interval,
		BreakerTimeout:  c.Breaker.Timeout,
	}
}

// Client is a REST client for the meme service.
// It is safe for concurrent use; the token is supplied per call.
type Client struct {
	reads   *resty.Client
	writes  *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

// apiError is the error body returned by the meme service.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewClient creates a meme service client.
// Parameters:
//   - cfg: connection settings; zero values fall back to defaults.
//   - m: metrics registry, may be nil.
// Returns:
//   - *Client: ready client.
func NewClient(cfg *Config, m *metrics.Registry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.RPS))
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")

	// GETs are idempotent and retried on network errors and 5xx responses.
	reads := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode() >= http.StatusInternalServerError)
		})

	// Writes are sent once: a multipart body cannot be replayed.
	writes := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "meme-api",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Caller cancellations and deadlines are not upstream failures.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrNetwork)
		},
	})

	return &Client{
		reads:   reads,
		writes:  writes,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: breaker,
		metrics: m,
	}
}

// do runs one request through the limiter and breaker and classifies the outcome.
func (c *Client) do(ctx context.Context, endpoint string, send func() (*resty.Response, error)) error {
	start := time.Now()

	err := c.limiter.Wait(ctx)
	if err != nil {
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			err = fmt.Errorf("%s: rate limit wait exceeds deadline: %w", endpoint, context.DeadlineExceeded)
		}
	} else {
		_, err = c.breaker.Execute(func() (interface{}, error) {
			resp, err := send()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, domain.NewNetworkError(endpoint, err)
			}
			return nil, statusError(endpoint, resp)
		})
	}

	switch {
	case err == nil:
	case ctx.Err() != nil:
		err = fmt.Errorf("%s: %w", endpoint, ctx.Err())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		err = domain.NewNetworkError(endpoint, err)
	case domain.KindOf(err) == "" && !errors.Is(err, context.DeadlineExceeded):
		err = domain.NewNetworkError(endpoint, err)
	}

	c.metrics.ObserveUpstream(endpoint, outcome(err), time.Since(start))
	return err
}

// statusError maps a non-2xx response to a classified error.
func statusError(endpoint string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	msg := fmt.Sprintf("status %d", resp.StatusCode())
	if body, ok := resp.Error().(*apiError); ok && body != nil {
		if body.Message != "" {
			msg = body.Message
		} else if body.Error != "" {
			msg = body.Error
		}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return domain.NewNotFoundError(endpoint, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.NewUnauthorizedError(endpoint, msg)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return domain.NewValidationError(endpoint, msg)
	default:
		return domain.NewNetworkError(endpoint, errors.New(msg))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	}
	return string(domain.KindOf(err))
}
