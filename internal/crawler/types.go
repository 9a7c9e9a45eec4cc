package crawler

import (
	"context"
	"time"

	"sjsage522/olxworker/internal/parse"
)

// Price is a listing price in minor units
type Price = parse.Price

// Listing represents one scraped classified ad
type Listing struct {
	Title      string    `json:"title"`
	Price      Price     `json:"price"`
	Location   string    `json:"location"`
	DatePosted time.Time `json:"date_posted"`
	URL        string    `json:"url"`
}

// PageResult holds the listings extracted from one search-result page
type PageResult struct {
	Listings []Listing
	Skipped  int
}

// TerminationReason records why a crawl stopped
type TerminationReason int

const (
	// TerminationExhaustedByRedirect means the site redirected past the last page
	TerminationExhaustedByRedirect TerminationReason = iota
	// TerminationError means a page could not be fetched or extracted
	TerminationError
	// TerminationPageLimit means the configured page ceiling was reached
	TerminationPageLimit
)

// String returns a readable name for the reason
func (r TerminationReason) String() string {
	switch r {
	case TerminationExhaustedByRedirect:
		return "exhausted_by_redirect"
	case TerminationError:
		return "error"
	case TerminationPageLimit:
		return "page_limit"
	default:
		return "unknown"
	}
}

// MarshalText lets the reason appear by name in JSON output
func (r TerminationReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// CrawlResult aggregates every page of one search term
type CrawlResult struct {
	Term         string            `json:"term"`
	Listings     []Listing         `json:"listings"`
	PagesFetched int               `json:"pages_fetched"`
	Skipped      int               `json:"skipped"`
	Reason       TerminationReason `json:"termination_reason"`
}

// Response is what a Fetcher returns for one GET
type Response struct {
	StatusCode int
	RequestURL string
	FinalURL   string
	Body       []byte
}

// Redirected reports whether the site sent us somewhere other than the
// requested page
func (r *Response) Redirected() bool {
	if r.StatusCode >= 300 && r.StatusCode < 400 {
		return true
	}
	return r.FinalURL != "" && r.FinalURL != r.RequestURL
}

// Fetcher performs the HTTP GET for a page. Implementations must be safe for
// concurrent use; one fetcher is shared by every crawl.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url)
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}
