package crawler

import (
	"strings"

	"sjsage522/olxworker/internal/parse"
	"sjsage522/olxworker/logger"
	"sjsage522/olxworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// ExtractListing builds a Listing from one l-card fragment. Any missing or
// malformed field fails the whole listing.
func ExtractListing(card *goquery.Selection, p *parse.Parser) (Listing, error) {
	titleSel := card.FindMatcher(cardTitleSelector).First()
	if titleSel.Length() == 0 {
		return Listing{}, errors.NewMissingField("ad-card-title missing")
	}
	title := extractTitle(titleSel)

	priceSel := card.FindMatcher(cardPriceSelector).First()
	if priceSel.Length() == 0 {
		return Listing{}, errors.NewMissingField("ad-price missing")
	}
	price, err := p.ParsePrice(priceSel.Text())
	if err != nil {
		return Listing{}, err
	}

	locationDateSel := card.FindMatcher(locationDateSelector).First()
	if locationDateSel.Length() == 0 {
		return Listing{}, errors.NewMissingField("location-date missing")
	}
	location, datePosted, err := p.ParseLocationAndDate(locationDateSel.Text())
	if err != nil {
		return Listing{}, err
	}

	// olx already roots the href with a leading slash
	href, exists := titleSel.FindMatcher(anchorSelector).First().Attr("href")
	if !exists || href == "" {
		return Listing{}, errors.NewMissingField("href missing")
	}

	return Listing{
		Title:      title,
		Price:      price,
		Location:   location,
		DatePosted: datePosted,
		URL:        href,
	}, nil
}

// extractTitle prefers the heading inside the title anchor over the anchor text
func extractTitle(titleSel *goquery.Selection) string {
	heading := titleSel.FindMatcher(titleHeadingSelector).First()
	if heading.Length() > 0 {
		return strings.TrimSpace(heading.Text())
	}
	return strings.TrimSpace(titleSel.Text())
}

// ExtractPage extracts every listing in the page's listing grid, in document
// order. A listing that fails to extract is logged and skipped; only a
// missing grid fails the page.
func ExtractPage(doc *goquery.Document, p *parse.Parser, log *logger.Logger) (PageResult, error) {
	if log == nil {
		log = logger.Nop()
	}

	grid := doc.FindMatcher(listingGridSelector).First()
	if grid.Length() == 0 {
		return PageResult{}, errors.NewFieldParsing(errors.KindListingGridNotFound, "Listing grid not found")
	}

	cards := grid.FindMatcher(listingCardSelector)
	result := PageResult{Listings: make([]Listing, 0, cards.Length())}

	cards.Each(func(i int, card *goquery.Selection) {
		listing, err := ExtractListing(card, p)
		if err != nil {
			result.Skipped++
			log.Warn().
				Err(err).
				Int("card", i).
				Str("kind", errors.KindOf(err)).
				Msg("Error while parsing listing, skipping")
			return
		}
		result.Listings = append(result.Listings, listing)
	})

	return result, nil
}
