package crawler

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"sjsage522/olxworker/internal/parse"
	"sjsage522/olxworker/logger"
	"sjsage522/olxworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

type crawlState string

const (
	stateFetching     crawlState = "fetching"
	stateAccumulating crawlState = "accumulating"
	stateExhausted    crawlState = "exhausted_by_redirect"
	stateFailed       crawlState = "failed"
	stateDone         crawlState = "done"
)

type outcomeKind int

const (
	outcomePage outcomeKind = iota
	outcomeEndOfSequence
	outcomeFailure
)

// pageOutcome is the result of one fetch: a page to extract, the end of the
// sequence, or a failure
type pageOutcome struct {
	kind     outcomeKind
	response *Response
	err      error
}

func classify(resp *Response, err error) pageOutcome {
	switch {
	case err != nil:
		return pageOutcome{kind: outcomeFailure, err: err}
	case resp == nil:
		return pageOutcome{kind: outcomeFailure, err: errors.NewTransport(provider, "fetcher returned no response", nil)}
	case resp.Redirected():
		return pageOutcome{kind: outcomeEndOfSequence, response: resp}
	default:
		return pageOutcome{kind: outcomePage, response: resp}
	}
}

// SearchURL builds the search URL for term and page:
// <site>/q-<term>/ with ?page=<n> from the second page on
func SearchURL(siteURL, term string, page int) string {
	u := strings.TrimRight(siteURL, "/") + "/q-" + url.PathEscape(term) + "/"
	if page > 1 {
		u += "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
	}
	return u
}

// Controller walks the result pages of a search term until the site
// redirects past the last one
type Controller struct {
	fetcher  Fetcher
	siteURL  string
	maxPages int
	parser   *parse.Parser
	log      *logger.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithMaxPages stops the crawl after n pages; 0 means no limit
func WithMaxPages(n int) Option {
	return func(c *Controller) {
		c.maxPages = n
	}
}

// WithParser replaces the default Polish field parser
func WithParser(p *parse.Parser) Option {
	return func(c *Controller) {
		c.parser = p
	}
}

// WithLogger sets the base logger; the search term is added per crawl
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController creates a controller for siteURL
func NewController(fetcher Fetcher, siteURL string, opts ...Option) *Controller {
	c := &Controller{
		fetcher: fetcher,
		siteURL: siteURL,
		parser:  parse.Default,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl fetches pages 1..n for term, strictly in order. On failure the
// returned result still holds every listing accumulated before the failing
// page, alongside the error.
func (c *Controller) Crawl(ctx context.Context, term string) (*CrawlResult, error) {
	log := c.log.WithField("term", term)
	result := &CrawlResult{
		Term:     term,
		Listings: []Listing{},
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return c.fail(log, result, page, err)
		}

		if c.maxPages > 0 && page > c.maxPages {
			result.Reason = TerminationPageLimit
			log.Warn().
				Str("state", string(stateDone)).
				Int("max_pages", c.maxPages).
				Int("listings", len(result.Listings)).
				Msg("Page limit reached, stopping")
			return result, nil
		}

		pageURL := SearchURL(c.siteURL, term, page)
		log.Debug().
			Str("state", string(stateFetching)).
			Int("page", page).
			Str("url", pageURL).
			Msg("Fetching page")

		outcome := classify(c.fetcher.Fetch(ctx, pageURL))

		switch outcome.kind {
		case outcomeEndOfSequence:
			result.Reason = TerminationExhaustedByRedirect
			log.Info().
				Str("state", string(stateExhausted)).
				Int("page", page).
				Str("redirect", outcome.response.FinalURL).
				Int("pages_fetched", result.PagesFetched).
				Int("listings", len(result.Listings)).
				Msg("Redirected, stopping")
			return result, nil

		case outcomeFailure:
			return c.fail(log, result, page, outcome.err)

		case outcomePage:
			pageResult, err := c.extract(outcome.response.Body, log.WithField("page", page))
			if err != nil {
				return c.fail(log, result, page, err)
			}

			result.Listings = append(result.Listings, pageResult.Listings...)
			result.Skipped += pageResult.Skipped
			result.PagesFetched++

			log.Info().
				Str("state", string(stateAccumulating)).
				Int("page", page).
				Int("fetched", len(pageResult.Listings)).
				Int("skipped", pageResult.Skipped).
				Msg("Fetched listings")
		}
	}
}

func (c *Controller) extract(body []byte, log *logger.Logger) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageResult{}, errors.NewFieldParsing(errors.KindDocumentParsing, err.Error())
	}
	return ExtractPage(doc, c.parser, log)
}

func (c *Controller) fail(log *logger.Logger, result *CrawlResult, page int, err error) (*CrawlResult, error) {
	result.Reason = TerminationError
	log.Error().
		Err(err).
		Str("state", string(stateFailed)).
		Int("page", page).
		Int("listings", len(result.Listings)).
		Msg("Error while fetching listings")
	return result, err
}
