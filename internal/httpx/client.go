package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound marks a terminal 404; never retried.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden marks a 403-class block on a provider page.
	ErrForbidden = errors.New("access forbidden")
)

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Options configures retry behavior and crawl etiquette.
type Options struct {
	Timeout           time.Duration
	RetryCount        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// Response is a fully drained HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues outbound requests with bounded retry, a shared cookie jar
// (some providers gate content behind a session or consent cookie), and a
// per-origin rate limiter.
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(opts Options, logger zerolog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		opts:     opts,
		logger:   logger,
		limiters: map[string]*rate.Limiter{},
	}, nil
}

// Get fetches rawURL, retrying transport failures and 5xx responses up to the
// configured count. 404 and 403 are terminal. The origin tag names the
// provider for log context.
func (c *Client) Get(ctx context.Context, origin, rawURL string, header http.Header) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("url %q is not absolute", rawURL)
	}

	limiter := c.limiterFor(parsed.Scheme + "://" + parsed.Host)

	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		if err := limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.doOnce(ctx, origin, rawURL, header, attempt)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryDelay), uint64(c.opts.RetryCount)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Str("origin", origin).
			Str("url", rawURL).
			Int("attempt", attempt).
			Dur("next_retry_in", wait).
			Err(err).
			Msg("request failed, retrying")
	}

	return backoff.RetryNotifyWithData(operation, policy, notify)
}

// GetJSON fetches rawURL and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, origin, rawURL string, header http.Header, decode func([]byte) error) error {
	resp, err := c.Get(ctx, origin, rawURL, header)
	if err != nil {
		return err
	}
	if err := decode(resp.Body); err != nil {
		return fmt.Errorf("decode %s response from %s: %w", origin, rawURL, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, origin, rawURL string, header http.Header, attempt int) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request for %s: %w", rawURL, err))
	}
	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	if req.Header.Get("User-Agent") == "" && c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", rawURL, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, rawURL))
	case resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrForbidden, rawURL))
	case resp.StatusCode == http.StatusTooManyRequests:
		if wait, ok := RateLimitWait(resp.Header); ok && wait > 0 && wait <= c.httpClient.Timeout {
			c.logger.Debug().
				Str("origin", origin).
				Str("url", rawURL).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("honoring rate-limit header")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, backoff.Permanent(ctx.Err())
			}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	case resp.StatusCode >= 500:
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	default:
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, URL: rawURL})
	}
}

func (c *Client) limiterFor(origin string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[origin]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), 1)
		c.limiters[origin] = limiter
	}
	return limiter
}
