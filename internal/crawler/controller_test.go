package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"sjsage522/olxworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSite = "https://www.olx.pl"

func pageOf(n, count int) string {
	cards := make([]string, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, testCard(
			fmt.Sprintf("p%d-l%d", n, i),
			fmt.Sprintf("/d/oferta/p%d-l%d.html", n, i),
			fmt.Sprintf("%d zł", n*100+i),
			"Kraków - 12 marca 2024",
		))
	}
	return testPage(cards...)
}

func TestSearchURL(t *testing.T) {
	testCases := []struct {
		site     string
		term     string
		page     int
		expected string
	}{
		{testSite, "RTX 3070", 1, "https://www.olx.pl/q-RTX%203070/"},
		{testSite, "RTX 3070", 2, "https://www.olx.pl/q-RTX%203070/?page=2"},
		{testSite + "/", "rower", 15, "https://www.olx.pl/q-rower/?page=15"},
		{testSite, "łódka", 1, "https://www.olx.pl/q-%C5%82%C3%B3dka/"},
		{testSite, "a/b", 1, "https://www.olx.pl/q-a%2Fb/"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, SearchURL(tc.site, tc.term, tc.page))
		})
	}
}

func TestCrawlStopsOnRedirect(t *testing.T) {
	fetcher := newScriptedFetcher().
		page(SearchURL(testSite, "rtx", 1), pageOf(1, 3)).
		page(SearchURL(testSite, "rtx", 2), pageOf(2, 2)).
		page(SearchURL(testSite, "rtx", 3), pageOf(3, 4)).
		redirect(SearchURL(testSite, "rtx", 4), testSite+"/q-rtx/")

	result, err := NewController(fetcher, testSite).Crawl(context.Background(), "rtx")
	require.NoError(t, err)

	assert.Equal(t, "rtx", result.Term)
	assert.Equal(t, 3, result.PagesFetched)
	assert.Equal(t, TerminationExhaustedByRedirect, result.Reason)
	require.Len(t, result.Listings, 9)

	// listings keep page order, then document order
	assert.Equal(t, "p1-l0", result.Listings[0].Title)
	assert.Equal(t, "p1-l2", result.Listings[2].Title)
	assert.Equal(t, "p2-l0", result.Listings[3].Title)
	assert.Equal(t, "p3-l3", result.Listings[8].Title)

	assert.Equal(t, []string{
		"https://www.olx.pl/q-rtx/",
		"https://www.olx.pl/q-rtx/?page=2",
		"https://www.olx.pl/q-rtx/?page=3",
		"https://www.olx.pl/q-rtx/?page=4",
	}, fetcher.requested)
}

func TestCrawlRedirectOnFirstPage(t *testing.T) {
	fetcher := newScriptedFetcher().
		redirect(SearchURL(testSite, "nothing", 1), testSite+"/")

	result, err := NewController(fetcher, testSite).Crawl(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, result.Listings)
	assert.NotNil(t, result.Listings)
	assert.Equal(t, 0, result.PagesFetched)
	assert.Equal(t, TerminationExhaustedByRedirect, result.Reason)
}

func TestCrawlDetectsRedirectByFinalURL(t *testing.T) {
	fetcher := newScriptedFetcher().page(SearchURL(testSite, "rtx", 1), pageOf(1, 1))
	// a fetcher that followed the redirect reports 200 with a different final URL
	second := SearchURL(testSite, "rtx", 2)
	fetcher.responses[second] = scriptedResponse{resp: &Response{
		StatusCode: 200,
		RequestURL: second,
		FinalURL:   SearchURL(testSite, "rtx", 1),
		Body:       []byte(pageOf(1, 1)),
	}}

	result, err := NewController(fetcher, testSite).Crawl(context.Background(), "rtx")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesFetched)
	assert.Len(t, result.Listings, 1)
	assert.Equal(t, TerminationExhaustedByRedirect, result.Reason)
}

func TestCrawlReturnsPartialResultOnTransportError(t *testing.T) {
	fetchErr := errors.NewTransport(provider, "connection reset", stderrors.New("read: connection reset by peer"))
	fetcher := newScriptedFetcher().
		page(SearchURL(testSite, "rtx", 1), pageOf(1, 5)).
		fail(SearchURL(testSite, "rtx", 2), fetchErr)

	result, err := NewController(fetcher, testSite).Crawl(context.Background(), "rtx")
	require.Error(t, err)
	assert.Same(t, fetchErr, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))

	require.NotNil(t, result)
	assert.Len(t, result.Listings, 5)
	assert.Equal(t, 1, result.PagesFetched)
	assert.Equal(t, TerminationError, result.Reason)
	assert.Len(t, fetcher.requested, 2)
}

func TestCrawlFailsWhenGridMissing(t *testing.T) {
	fetcher := newScriptedFetcher().
		page(SearchURL(testSite, "rtx", 1), pageOf(1, 2)).
		page(SearchURL(testSite, "rtx", 2), `<html><body>captcha</body></html>`)

	result, err := NewController(fetcher, testSite).Crawl(context.Background(), "rtx")
	require.Error(t, err)
	assert.Equal(t, errors.KindListingGridNotFound, errors.KindOf(err))
	assert.Len(t, result.Listings, 2)
	assert.Equal(t, TerminationError, result.Reason)
}

func TestCrawlCountsSkippedListings(t *testing.T) {
	broken := `<div data-testid="l-card"><p data-testid="ad-price">1 zł</p></div>`
	fetcher := newScriptedFetcher().
		page(SearchURL(testSite, "rtx", 1), testPage(broken, testCard("ok", "/d/ok", "5 zł", "Łódź - dzisiaj o 10:00"))).
		page(SearchURL(testSite, "rtx", 2), testPage(broken)).
		redirect(SearchURL(testSite, "rtx", 3), testSite+"/q-rtx/")

	result, err := NewController(fetcher, testSite, WithParser(testParser())).Crawl(context.Background(), "rtx")
	require.NoError(t, err)
	assert.Len(t, result.Listings, 1)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 2, result.PagesFetched)
}

func TestCrawlStopsAtPageLimit(t *testing.T) {
	fetcher := newScriptedFetcher().
		page(SearchURL(testSite, "rtx", 1), pageOf(1, 1)).
		page(SearchURL(testSite, "rtx", 2), pageOf(2, 1))

	result, err := NewController(fetcher, testSite, WithMaxPages(2)).Crawl(context.Background(), "rtx")
	require.NoError(t, err)
	assert.Equal(t, TerminationPageLimit, result.Reason)
	assert.Equal(t, 2, result.PagesFetched)
	assert.Len(t, result.Listings, 2)
	assert.Len(t, fetcher.requested, 2)
}

func TestCrawlCancelled(t *testing.T) {
	fetcher := newScriptedFetcher().page(SearchURL(testSite, "rtx", 1), pageOf(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewController(fetcher, testSite).Crawl(ctx, "rtx")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TerminationError, result.Reason)
	assert.Empty(t, fetcher.requested)
}

func TestCrawlNilResponse(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, url string) (*Response, error) {
		return nil, nil
	})

	_, err := NewController(fetcher, testSite).Crawl(context.Background(), "rtx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestTerminationReasonString(t *testing.T) {
	assert.Equal(t, "exhausted_by_redirect", TerminationExhaustedByRedirect.String())
	assert.Equal(t, "error", TerminationError.String())
	assert.Equal(t, "page_limit", TerminationPageLimit.String())
}
