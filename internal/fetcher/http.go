package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPOptions parameterise the HTTP fetcher.
type HTTPOptions struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// HTTP fetches sources over plain HTTP GET with a bounded timeout and a
// small bounded retry count. Retries back off exponentially; client errors
// (4xx) are not retried.
type HTTP struct {
	opts   HTTPOptions
	client *http.Client
	logger zerolog.Logger
}

// NewHTTP constructs an HTTP fetcher.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sourcewatch/1.0"
	}

	return &HTTP{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "http_fetcher").Logger(),
	}
}

// Fetch retrieves the source body, retrying transient failures.
func (h *HTTP) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, &FetchError{Source: src.Key, Err: errors.New("source url not configured")}
	}

	var lastErr error
	delay := h.opts.RetryDelay
	for attempt := 0; attempt <= h.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			h.logger.Debug().Str("source", src.Key).Int("attempt", attempt).Msg("retrying fetch")
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &FetchError{Source: src.Key, URL: src.URL, Timeout: true, Err: ctx.Err()}
			case <-timer.C:
			}
			delay *= 2
		}

		body, err := h.fetchOnce(ctx, src)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var fe *FetchError
		if errors.As(err, &fe) && !retryable(fe) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (h *HTTP) fetchOnce(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, &FetchError{Source: src.Key, URL: src.URL, Err: err}
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for k, v := range src.Header {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			timeout = true
		}
		return nil, &FetchError{Source: src.Key, URL: src.URL, Timeout: timeout, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Source: src.Key, URL: src.URL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: src.Key, URL: src.URL, Err: err}
	}
	return body, nil
}

// retryable reports whether another attempt could plausibly succeed. Client
// errors are final; server errors, timeouts, and transport failures are not.
func retryable(fe *FetchError) bool {
	if fe.Status >= 400 && fe.Status < 500 {
		return false
	}
	return true
}

var _ Fetcher = (*HTTP)(nil)
