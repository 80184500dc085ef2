// Package client talks to the Context backend over HTTP. It is the only place transport and status failures are
// turned into the models error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	HeaderRequestID = "X-Request-ID"

	defaultBaseURL   = "http://127.0.0.1:8000"
	defaultTimeout   = 30 * time.Second
	maxLoggedBodyLen = 2048
)

// RequestRecorder counts finished requests. metrics.Metrics implements it.
type RequestRecorder interface {
	Request(operation, outcome string)
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	// Debug logs every request and response. Only development builds turn it on.
	Debug      bool
	HTTPClient *http.Client
	Recorder   RequestRecorder
	Breaker    BreakerSettings
}

type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	recorder   RequestRecorder
	logger     logger.Logger
	debug      bool
}

func New(logger logger.Logger, opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	breakerSettings := opts.Breaker
	if breakerSettings == (BreakerSettings{}) {
		breakerSettings = DefaultBreakerSettings()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    newBreaker(logger, breakerSettings),
		recorder:   opts.Recorder,
		logger:     logger,
		debug:      opts.Debug,
	}
}

func NewFromConfig(logger logger.Logger, cfg *config.Config, recorder RequestRecorder) *Client {
	return New(logger, Options{
		BaseURL:   cfg.GetAPIBaseURL(),
		Timeout:   cfg.GetHTTPTimeout(),
		RateLimit: cfg.GetRateLimit(),
		RateBurst: cfg.GetRateBurst(),
		Debug:     cfg.IsDevelopment(),
		Recorder:  recorder,
	})
}

func newBreaker(logger logger.Logger, settings BreakerSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "context-backend",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// A 4xx means the backend is up and answering.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !models.IsRetryable(err)
		},
	})
}

// do performs one request. body, when non-nil, is sent as JSON; out, when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, operation, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.finish(operation, models.NewNetworkError("", err))
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, endpoint, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = models.NewNetworkError("Backend temporarily unavailable", err)
	}

	return c.finish(operation, err)
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body, out any) error {
	url := c.baseURL + endpoint

	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &models.APIError{Message: models.DefaultErrorMessage, Err: fmt.Errorf("could not encode request body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &models.APIError{Message: models.DefaultErrorMessage, Err: err}
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	c.debugLog("backend request", "request_id", requestID, "method", method, "url", url, "body", truncate(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debugLog("backend request failed", "request_id", requestID, "url", url, "err", err.Error())
		return models.NewNetworkError("", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewNetworkError("", err)
	}

	c.debugLog("backend response", "request_id", requestID, "url", url, "status", resp.StatusCode, "body", truncate(data))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &models.APIError{Message: models.DefaultErrorMessage, Err: fmt.Errorf("could not decode %s response: %w", endpoint, err)}
	}
	return nil
}

func (c *Client) finish(operation string, err error) error {
	if c.recorder != nil {
		c.recorder.Request(operation, outcome(err))
	}
	if err != nil && c.debug {
		c.debugLog("backend operation failed", "operation", operation, "err", err.Error())
	}
	return err
}

// debugLog never lets a logging failure reach the request path.
func (c *Client) debugLog(msg string, args ...any) {
	if !c.debug {
		return
	}
	defer func() {
		_ = recover()
	}()
	c.logger.Debug(msg, args...)
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBodyLen {
		return string(body[:maxLoggedBodyLen]) + "..."
	}
	return string(body)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrNetwork):
		return "network_error"
	case errors.Is(err, models.ErrServer):
		return "server_error"
	default:
		return "client_error"
	}
}
