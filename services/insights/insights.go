package insights

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"sjsage522/olxworker/internal/crawler"
)

const (
	// DefaultBucketSize is 500 PLN in grosze
	DefaultBucketSize int64 = 50000
	// DefaultMax is 10 000 PLN in grosze; higher prices count as overflow
	DefaultMax int64 = 1000000

	barWidth = 40
)

// Bucket counts prices in [Lower, Upper)
type Bucket struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
	Count int   `json:"count"`
}

// Report summarizes the prices of a set of listings
type Report struct {
	Count      int      `json:"count"`
	Min        int64    `json:"min"`
	Max        int64    `json:"max"`
	Mean       int64    `json:"mean"`
	Median     int64    `json:"median"`
	Negotiable int      `json:"negotiable"`
	Buckets    []Bucket `json:"buckets"`
	Overflow   int      `json:"overflow"`
}

// Histogram sorts prices into fixed-width buckets covering [0, max). Prices
// at or above max, or below zero, are returned as overflow.
func Histogram(prices []int64, bucketSize, max int64) ([]Bucket, int) {
	if bucketSize <= 0 || max <= 0 {
		return nil, len(prices)
	}

	n := int((max + bucketSize - 1) / bucketSize)
	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Lower = int64(i) * bucketSize
		buckets[i].Upper = buckets[i].Lower + bucketSize
		if buckets[i].Upper > max {
			buckets[i].Upper = max
		}
	}

	overflow := 0
	for _, p := range prices {
		if p < 0 || p >= max {
			overflow++
			continue
		}
		buckets[p/bucketSize].Count++
	}
	return buckets, overflow
}

// Summarize computes price statistics over prices
func Summarize(prices []int64) Report {
	report := Report{Count: len(prices)}
	report.Buckets, report.Overflow = Histogram(prices, DefaultBucketSize, DefaultMax)
	if len(prices) == 0 {
		return report
	}

	sorted := append([]int64(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	report.Min = sorted[0]
	report.Max = sorted[len(sorted)-1]

	// mean of int64 minor units without overflowing the running sum
	var mean, rem int64
	count := int64(len(sorted))
	for _, p := range sorted {
		mean += p / count
		rem += p % count
		if rem >= count {
			mean++
			rem -= count
		}
	}
	report.Mean = mean

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		report.Median = sorted[mid]
	} else {
		report.Median = sorted[mid-1] + (sorted[mid]-sorted[mid-1])/2
	}
	return report
}

// Generate builds a report from crawled listings
func Generate(listings []crawler.Listing) Report {
	prices := make([]int64, 0, len(listings))
	negotiable := 0
	for _, l := range listings {
		prices = append(prices, l.Price.Value)
		if l.Price.Negotiable {
			negotiable++
		}
	}

	report := Summarize(prices)
	report.Negotiable = negotiable
	return report
}

// FormatPLN renders minor units as "1 200,50 PLN"
func FormatPLN(value int64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}

	digits := fmt.Sprintf("%d", value/100)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(d)
	}
	return fmt.Sprintf("%s%s,%02d PLN", sign, grouped.String(), value%100)
}

// Print writes the report with one text bar per bucket
func Print(w io.Writer, title string, r Report) {
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", 54))

	if r.Count == 0 {
		fmt.Fprintf(w, "  No price data available\n")
		return
	}

	fmt.Fprintf(w, "  Listings   : %d (%d negotiable)\n", r.Count, r.Negotiable)
	fmt.Fprintf(w, "  Min price  : %s\n", FormatPLN(r.Min))
	fmt.Fprintf(w, "  Max price  : %s\n", FormatPLN(r.Max))
	fmt.Fprintf(w, "  Mean price : %s\n", FormatPLN(r.Mean))
	fmt.Fprintf(w, "  Median     : %s\n", FormatPLN(r.Median))
	fmt.Fprintln(w)

	peak := 0
	for _, b := range r.Buckets {
		if b.Count > peak {
			peak = b.Count
		}
	}

	for _, b := range r.Buckets {
		width := 0
		if peak > 0 {
			width = b.Count * barWidth / peak
		}
		if b.Count > 0 && width == 0 {
			width = 1
		}
		fmt.Fprintf(w, "  %6d PLN | %-*s %d\n", b.Lower/100, barWidth, strings.Repeat("█", width), b.Count)
	}

	if r.Overflow > 0 {
		fmt.Fprintf(w, "  above %d PLN: %d\n", DefaultMax/100, r.Overflow)
	}
}
