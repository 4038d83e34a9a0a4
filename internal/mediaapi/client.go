// Path: internal/mediaapi/client.go
package mediaapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"media-search/internal/config"
	"media-search/internal/domain"
	"media-search/internal/logging"
	"media-search/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	searchPath      = "/media/search"
	breakerName     = "media-api"
	maxRetryAfter   = 30 * time.Second
	requestIDHeader = "X-Request-Id"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("media api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("media api returned status %d: %s", e.StatusCode, e.Body)
}

// searchResponse is the wire shape of GET media/search.
type searchResponse struct {
	Total    int                 `json:"total"`
	Size     int                 `json:"size"`
	Results  *[]domain.MediaItem `json:"results"`
	Hits     []searchHit         `json:"hits"`
	LastSort domain.Cursor       `json:"lastSort"`
}

type searchHit struct {
	ID     string             `json:"_id"`
	Source domain.MediaSource `json:"_source"`
}

// Client talks to the media search API.
type Client struct {
	baseURL       string
	thumbnailBase string
	client        *http.Client
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker[*domain.PageResult]
	timeout       time.Duration
	retryLimit    int
	retryCodes    []int
	retryBackoff  time.Duration
	logger        zerolog.Logger
}

// NewClient creates and configures a new Client.
func NewClient(cfg config.APIConfig) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		thumbnailBase: cfg.ThumbnailBaseURL,
		client:        &http.Client{},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstLimit),
		timeout:       cfg.Timeout,
		retryLimit:    cfg.RetryLimit,
		retryCodes:    cfg.RetryStatusCodes,
		retryBackoff:  cfg.RetryBackoff,
		logger:        logging.Component("mediaapi"),
	}

	threshold := uint32(cfg.BreakerThreshold)
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[*domain.PageResult](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		// Cancellations and client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && !slices.Contains(c.retryCodes, se.StatusCode)
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return c
}

// Search performs GET media/search with the given parameters.
func (c *Client) Search(ctx context.Context, params url.Values) (*domain.PageResult, error) {
	return c.breaker.Execute(func() (*domain.PageResult, error) {
		return c.searchWithRetry(ctx, params)
	})
}

// searchWithRetry sends the request and retries it on the configured status
// codes and on transport errors, with exponential backoff.
// Only GET requests are ever issued, so every attempt is safe to repeat.
func (c *Client) searchWithRetry(ctx context.Context, params url.Values) (*domain.PageResult, error) {
	endpoint := c.baseURL + searchPath
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryLimit; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			c.logger.Debug().
				Str("request_id", requestID).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying media search")
			metrics.UpstreamRetries.Inc()

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.doRequest(ctx, endpoint, requestID)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !c.shouldRetry(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint, requestID string) (*domain.PageResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retryable{
			err:        &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 200)},
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json response: %w", err)
	}
	return c.toPageResult(payload), nil
}

func (c *Client) toPageResult(payload searchResponse) *domain.PageResult {
	var items []domain.MediaItem
	switch {
	case payload.Results != nil:
		items = *payload.Results
	case len(payload.Hits) > 0:
		items = make([]domain.MediaItem, 0, len(payload.Hits))
		for _, h := range payload.Hits {
			items = append(items, h.Source.ToMediaItem(h.ID, c.thumbnailBase))
		}
	}
	if items == nil {
		items = []domain.MediaItem{}
	}

	var next domain.Cursor
	if !payload.LastSort.IsEmpty() {
		next = payload.LastSort
	}

	total := payload.Total
	if total < 0 {
		total = 0
	}
	return &domain.PageResult{
		TotalCount: total,
		Size:       payload.Size,
		Items:      items,
		NextCursor: next,
	}
}

func (c *Client) shouldRetry(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return slices.Contains(c.retryCodes, se.StatusCode)
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// backoff returns retryBackoff * 2^(attempt-1), or the server's Retry-After
// when it asked for a longer wait.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	delay := c.retryBackoff << (attempt - 1)
	var r *retryable
	if errors.As(lastErr, &r) && r.retryAfter > delay {
		delay = min(r.retryAfter, maxRetryAfter)
	}
	return delay
}

// retryable carries the Retry-After hint alongside a StatusError.
type retryable struct {
	err        error
	retryAfter time.Duration
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
