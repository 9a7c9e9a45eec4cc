package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sjsage522/olxworker/helpers"
	"sjsage522/olxworker/logger"
	"sjsage522/olxworker/pkg/errors"
	"sjsage522/olxworker/services/cache"

	"golang.org/x/time/rate"
)

const provider = "olx"

// HTTPFetcher fetches search pages without following redirects, so the
// controller can see the redirect that marks the end of pagination
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	cacheSvc  cache.CacheService
	blockTime time.Duration
	log       *logger.Logger
}

// FetcherOption configures an HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// WithRateLimit spaces requests to at most rps per second; 0 disables pacing
func WithRateLimit(rps float64) FetcherOption {
	return func(f *HTTPFetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithBlockCache makes the fetcher remember a 429 from a host for blockTime
// and refuse further requests to it until the entry expires
func WithBlockCache(cacheSvc cache.CacheService, blockTime time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.cacheSvc = cacheSvc
		f.blockTime = blockTime
	}
}

// WithFetchLogger sets the logger used for request tracing
func WithFetchLogger(log *logger.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.log = log
	}
}

// WithHTTPClient replaces the default no-redirect client
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// NewHTTPFetcher creates a fetcher with the given request timeout
func NewHTTPFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: helpers.NewNoRedirectClient(timeout),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET for rawURL
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.NewTransport(provider, "invalid url "+rawURL, err)
	}
	blockKey := reqURL.Host + "_rate_limited"

	if f.isBlocked(blockKey) {
		return nil, errors.NewRateLimit(provider, f.blockTime)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.NewTransport(provider, "waiting for rate limiter", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewTransport(provider, "failed to create request", err)
	}
	helpers.SetBrowserHeaders(req)

	f.log.Debug().Str("url", rawURL).Msg("Request")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewTransport(provider, "failed to fetch "+rawURL, err)
	}
	defer resp.Body.Close()

	f.log.Debug().Str("url", rawURL).Int("status", resp.StatusCode).Msg("Response")

	// both sides in net/url's normalized form, so only a real redirect
	// makes them differ
	requestURL := req.URL.String()
	finalURL := requestURL
	if resp.Request != nil && resp.Request != req {
		finalURL = resp.Request.URL.String()
	}

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if location, err := resp.Location(); err == nil {
			finalURL = location.String()
		}
		return &Response{
			StatusCode: resp.StatusCode,
			RequestURL: requestURL,
			FinalURL:   finalURL,
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430:
		f.block(blockKey, resp.Header.Get("Retry-After"))
		return nil, errors.NewRateLimit(provider, f.blockTime)

	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewTransport(provider, fmt.Sprintf("fetch %s unexpected status code: %d", rawURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransport(provider, "failed to read response body", err)
	}

	body, err = helpers.DecodeUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.NewTransport(provider, "failed to decode response body", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		RequestURL: requestURL,
		FinalURL:   finalURL,
		Body:       body,
	}, nil
}

func (f *HTTPFetcher) isBlocked(key string) bool {
	if f.cacheSvc == nil {
		return false
	}

	_, found, err := f.cacheSvc.Get(key)
	if err != nil {
		// an unreachable cache must not stop crawling
		f.log.Debug().Err(err).Str("key", key).Msg("Block cache lookup failed")
		return false
	}
	return found
}

func (f *HTTPFetcher) block(key, retryAfter string) {
	if f.cacheSvc == nil || f.blockTime <= 0 {
		return
	}

	blockTime := f.blockTime
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		blockTime = time.Duration(seconds) * time.Second
	}

	if err := f.cacheSvc.Set(key, []byte(strconv.Itoa(int(blockTime/time.Second))), blockTime); err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("Failed to set rate limit block")
	}
}
