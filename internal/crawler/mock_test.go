package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttl   map[string]time.Duration
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttl:   make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.cache[key]
	return val, ok, nil
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttl[key] = expiration
	return nil
}

// testCard renders one l-card the way olx.pl search results do
func testCard(title, href, price, locationDate string) string {
	return fmt.Sprintf(`
		<div data-cy="l-card" data-testid="l-card" id="%[2]s">
			<div data-cy="ad-card-title"><a class="css-z3gu2d" href="%[2]s"><h4 class="css-1sq4ur2">%[1]s</h4></a></div>
			<p data-testid="ad-price" class="css-13afqrm">%[3]s</p>
			<p data-testid="location-date" class="css-1mwdrlh">%[4]s</p>
		</div>`, title, href, price, locationDate)
}

// testPage wraps cards in a listing grid
func testPage(cards ...string) string {
	return `<!DOCTYPE html><html><head><title>Ogłoszenia</title></head><body>
		<div data-testid="listing-grid">` + strings.Join(cards, "\n") + `</div>
	</body></html>`
}

// scriptedFetcher replays canned responses keyed by page URL
type scriptedFetcher struct {
	mu        sync.Mutex
	responses map[string]scriptedResponse
	requested []string
}

type scriptedResponse struct {
	resp *Response
	err  error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{responses: make(map[string]scriptedResponse)}
}

func (f *scriptedFetcher) page(url, body string) *scriptedFetcher {
	f.responses[url] = scriptedResponse{resp: &Response{StatusCode: 200, RequestURL: url, FinalURL: url, Body: []byte(body)}}
	return f
}

func (f *scriptedFetcher) redirect(url, location string) *scriptedFetcher {
	f.responses[url] = scriptedResponse{resp: &Response{StatusCode: 301, RequestURL: url, FinalURL: location}}
	return f
}

func (f *scriptedFetcher) fail(url string, err error) *scriptedFetcher {
	f.responses[url] = scriptedResponse{err: err}
	return f
}

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, url)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("unexpected request %s", url)
	}
	return r.resp, r.err
}
