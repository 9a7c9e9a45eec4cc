package crawler

import "github.com/andybalholm/cascadia"

// Selectors bound to olx.pl search-result markup
var (
	listingGridSelector  = cascadia.MustCompile(`[data-testid="listing-grid"]`)
	listingCardSelector  = cascadia.MustCompile(`[data-testid="l-card"]`)
	cardTitleSelector    = cascadia.MustCompile(`[data-cy="ad-card-title"]`)
	titleHeadingSelector = cascadia.MustCompile(`h1, h2, h3, h4, h5, h6`)
	cardPriceSelector    = cascadia.MustCompile(`[data-testid="ad-price"]`)
	locationDateSelector = cascadia.MustCompile(`[data-testid="location-date"]`)
	anchorSelector       = cascadia.MustCompile(`a`)
)
