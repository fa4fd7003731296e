package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"baseball_db/ingestion/internal/pull"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const userAgent = "baseball-db-ingestion/1.0"

// Options configures a provider client
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, zero disables the ceiling
	Burst      int
	MaxRetries uint64
	RetryDelay time.Duration
}

// Client is the HTTP client used for every provider pull
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	retryDelay time.Duration
}

// NewClient creates a provider client with a request ceiling and retries
func NewClient(opts Options) *Client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// StatusError is a non-success response from the provider
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d for %s: %s", e.Status, e.URL, e.Body)
}

// retryable reports whether the status is worth another attempt
func (e *StatusError) retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// get performs a GET request with rate limiting and exponential backoff.
// 404 and 204 responses map to pull.ErrNoMoreData.
func (c *Client) get(ctx context.Context, path string, params map[string]string, accept string) ([]byte, error) {
	url := c.url(path)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxElapsedTime = 0

	attempt := 0
	var body []byte
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", userAgent)

		if len(params) > 0 {
			q := req.URL.Query()
			for key, value := range params {
				q.Set(key, value)
			}
			req.URL.RawQuery = q.Encode()
		}

		log.Debug().
			Str("url", req.URL.String()).
			Int("attempt", attempt).
			Msg("Making provider request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("provider request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			log.Debug().
				Str("url", url).
				Int("size", len(data)).
				Msg("Provider request successful")
			body = data
			return nil
		case http.StatusNoContent, http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: status %d for %s", pull.ErrNoMoreData, resp.StatusCode, url))
		}

		serr := &StatusError{URL: url, Status: resp.StatusCode, Body: truncate(string(data), 200)}
		if serr.retryable() {
			return serr
		}
		return backoff.Permanent(serr)
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying provider request after backoff")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
