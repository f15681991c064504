package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	maxBodySize = 8 << 20
	userAgent   = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Page is a fetched, not yet decoded, response
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher downloads tracker pages with per-attempt timeouts, a fixed number
// of attempts and a per-host rate limit
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	attempts   uint64
	retryDelay time.Duration

	limit    rate.Limit
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher. ratePerSecond <= 0 disables rate limiting.
func NewFetcher(timeout time.Duration, attempts int, ratePerSecond float64) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Fetcher{
		httpClient: &http.Client{},
		timeout:    timeout,
		attempts:   uint64(attempts),
		retryDelay: time.Second,
		limit:      limit,
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, 1)
		f.limiters[host] = l
	}
	return l
}

// Fetch retrieves rawURL. Access-denied responses (401/403) are returned as
// pages so the caller can look for challenge markers; other client errors
// fail at once and server errors are retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, cookies string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError(KindFetch, rawURL, err)
	}
	limiter := f.limiter(u.Host)

	var page *Page
	operation := func() error {
		if err := limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		p, err := f.attempt(ctx, rawURL, cookies)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), f.attempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, newError(KindFetch, rawURL, err)
	}
	return page, nil
}

// attempt performs one request under its own deadline
func (f *Fetcher) attempt(ctx context.Context, rawURL, cookies string) (*Page, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 400 &&
		resp.StatusCode != http.StatusUnauthorized &&
		resp.StatusCode != http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
