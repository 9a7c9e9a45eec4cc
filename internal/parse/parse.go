// Package parse turns the loosely formatted text of listing cards into typed
// values. Everything here is pure; the only outside input is the clock used
// for "today" dates.
package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sjsage522/olxworker/pkg/errors"
)

var (
	priceRegex = regexp.MustCompile(`(\d+(?: \d+)*)(?:,(\d{2}))?`)
	timeRegex  = regexp.MustCompile(`(\d+:\d+)`)
	dateRegex  = regexp.MustCompile(`(\d+) (\p{L}+) (\d{4})\b`)
)

// Price is a monetary amount in minor units (grosze)
type Price struct {
	Value      int64 `json:"value"`
	Negotiable bool  `json:"negotiable"`
}

// Parser parses field text for one locale
type Parser struct {
	Locale Locale
	Now    func() time.Time
}

// Default parses olx.pl text against the wall clock
var Default = New(Polish)

// New creates a parser for the given locale using time.Now
func New(locale Locale) *Parser {
	return &Parser{Locale: locale, Now: time.Now}
}

// ParsePrice parses text such as "1 200,50 zł do negocjacji"
func (p *Parser) ParsePrice(text string) (Price, error) {
	matched := priceRegex.FindStringSubmatch(text)
	if matched == nil {
		return Price{}, errors.NewFieldParsing(errors.KindPriceParsing, "No price found")
	}

	integer, err := strconv.ParseUint(strings.ReplaceAll(matched[1], " ", ""), 10, 64)
	if err != nil {
		return Price{}, errors.NewFieldParsing(errors.KindPriceParsing, err.Error())
	}

	decimalText := matched[2]
	if decimalText == "" {
		decimalText = "00"
	}
	decimal, err := strconv.ParseUint(decimalText, 10, 64)
	if err != nil {
		return Price{}, errors.NewFieldParsing(errors.KindPriceParsing, err.Error())
	}

	if integer > (math.MaxInt64-decimal)/100 {
		return Price{}, errors.NewFieldParsing(errors.KindPriceParsing, fmt.Sprintf("price out of range: %s", matched[0]))
	}

	return Price{
		Value:      int64(integer*100 + decimal),
		Negotiable: strings.Contains(text, p.Locale.NegotiableMarker),
	}, nil
}

// ParseDate parses either "dzisiaj o 14:30" or "12 marca 2024".
// A "today" time is placed on the current UTC date, so text produced just
// before midnight in the site's timezone may land on the next day.
func (p *Parser) ParseDate(text string) (time.Time, error) {
	date := strings.ToLower(text)

	if strings.Contains(date, p.Locale.TodayWord) {
		return p.parseToday(date)
	}

	captures := dateRegex.FindStringSubmatch(date)
	if captures == nil {
		return time.Time{}, errors.NewFieldParsing(errors.KindDateParsing, date)
	}

	day, err := strconv.Atoi(captures[1])
	if err != nil {
		return time.Time{}, errors.NewFieldParsing(errors.KindDateParsing, date)
	}

	month := p.Locale.month(captures[2])
	if month == 0 {
		return time.Time{}, errors.NewFieldParsing(errors.KindDateParsing, date)
	}

	year, err := strconv.Atoi(captures[3])
	if err != nil {
		return time.Time{}, errors.NewFieldParsing(errors.KindDateParsing, date)
	}

	parsed := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31 lutego into March; reject instead
	if parsed.Day() != day || parsed.Month() != time.Month(month) {
		return time.Time{}, errors.NewFieldParsing(errors.KindDateParsing, date)
	}

	return parsed, nil
}

func (p *Parser) parseToday(date string) (time.Time, error) {
	token := timeRegex.FindString(date)
	if token == "" {
		return time.Time{}, errors.NewFieldParsing(errors.KindTimeParsing, date)
	}

	clock, err := time.Parse("15:04", token)
	if err != nil {
		return time.Time{}, errors.NewFieldParsing(errors.KindTimeParsing, date)
	}

	now := p.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}

// ParseLocationAndDate parses "Warszawa, Mokotów - dzisiaj o 14:30"
func (p *Parser) ParseLocationAndDate(text string) (string, time.Time, error) {
	parts := strings.Split(text, p.Locale.LocationDateSeparator)
	if len(parts) != 2 {
		return "", time.Time{}, errors.NewFieldParsing(errors.KindLocationDateParsing, text)
	}

	date, err := p.ParseDate(parts[1])
	if err != nil {
		return "", time.Time{}, err
	}

	return parts[0], date, nil
}

// ParsePrice parses a price with the default parser
func ParsePrice(text string) (Price, error) {
	return Default.ParsePrice(text)
}

// ParseDate parses a date with the default parser
func ParseDate(text string) (time.Time, error) {
	return Default.ParseDate(text)
}

// ParseLocationAndDate parses a location/date line with the default parser
func ParseLocationAndDate(text string) (string, time.Time, error) {
	return Default.ParseLocationAndDate(text)
}
