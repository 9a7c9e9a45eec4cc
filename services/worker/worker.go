package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sjsage522/olxworker/internal/crawler"
	"sjsage522/olxworker/logger"
	"sjsage522/olxworker/pkg/errors"
	"sjsage522/olxworker/services/insights"
	"sjsage522/olxworker/services/publisher"
	"sjsage522/olxworker/services/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PublishKey is the stream field that carries a listing message
const PublishKey = "olx_listing"

// Crawler crawls every result page of one search term
type Crawler interface {
	Crawl(ctx context.Context, term string) (*crawler.CrawlResult, error)
}

// Message is what the worker publishes for each crawled listing
type Message struct {
	RunID    string          `json:"run_id"`
	Category string          `json:"category"`
	Listing  crawler.Listing `json:"listing"`
}

// RunSummary describes one pass over all categories
type RunSummary struct {
	RunID      string
	Categories int
	Failed     int
	Listings   int
	Skipped    int
	Written    int
	Published  int
	Duration   time.Duration
}

// Worker crawls every category from the store, persists the listings and
// publishes them
type Worker struct {
	crawler       Crawler
	store         storage.ListingStore
	publisher     publisher.Publisher
	log           *logger.Logger
	concurrency   int
	crawlInterval time.Duration
}

// NewWorker creates a new worker; pub may be nil to skip publishing
func NewWorker(
	c Crawler,
	store storage.ListingStore,
	pub publisher.Publisher,
	log *logger.Logger,
	concurrency int,
	crawlInterval time.Duration,
) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		crawler:       c,
		store:         store,
		publisher:     pub,
		log:           log,
		concurrency:   concurrency,
		crawlInterval: crawlInterval,
	}
}

// Start runs a pass immediately and then every crawl interval until ctx is
// cancelled
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.crawlInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("Crawl run failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce crawls all categories with bounded parallelism. A failing category
// is logged and does not stop the others; listings gathered before the
// failure are still stored.
func (w *Worker) RunOnce(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{RunID: uuid.NewString()}
	log := w.log.WithField("run_id", summary.RunID)

	categories, err := w.store.FetchCategories(ctx)
	if err != nil {
		return summary, err
	}
	summary.Categories = len(categories)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, category := range categories {
		g.Go(func() error {
			stats := w.crawlCategory(gctx, log, summary.RunID, category)

			mu.Lock()
			defer mu.Unlock()
			if stats.failed {
				summary.Failed++
			}
			summary.Listings += stats.listings
			summary.Skipped += stats.skipped
			summary.Written += stats.written
			summary.Published += stats.published
			return nil
		})
	}
	_ = g.Wait()

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to trim streams")
		}
	}

	summary.Duration = time.Since(start)
	log.Info().
		Int("categories", summary.Categories).
		Int("failed", summary.Failed).
		Int("listings", summary.Listings).
		Int("skipped", summary.Skipped).
		Int("written", summary.Written).
		Int("published", summary.Published).
		Dur("elapsed", summary.Duration).
		Msg("Crawl run finished")

	return summary, ctx.Err()
}

type categoryStats struct {
	failed    bool
	listings  int
	skipped   int
	written   int
	published int
}

func (w *Worker) crawlCategory(ctx context.Context, log *logger.Logger, runID string, category storage.Category) categoryStats {
	log = log.WithFields(logger.Fields{
		"category": category.Name,
		"term":     category.DefaultQuery,
	})

	var stats categoryStats
	result, err := w.crawler.Crawl(ctx, category.DefaultQuery)
	if err != nil {
		stats.failed = true
		log.Error().
			Err(err).
			Bool("retryable", errors.IsRetryable(err)).
			Msg("Crawl failed")
	}
	if result == nil || len(result.Listings) == 0 {
		return stats
	}
	stats.listings = len(result.Listings)
	stats.skipped = result.Skipped

	// partial results from a failed crawl are still worth keeping
	written, err := w.store.UpsertListings(ctx, category.ID, result.Listings)
	stats.written = written
	if err != nil {
		log.Error().Err(err).Msg("Failed to store listings")
	}

	stats.published = w.publish(ctx, log, runID, category, result.Listings)

	if logger.IsDebugEnabled() {
		report := insights.Generate(result.Listings)
		log.Debug().
			Int("pages", result.PagesFetched).
			Str("reason", result.Reason.String()).
			Int64("min", report.Min).
			Int64("median", report.Median).
			Int64("max", report.Max).
			Int("negotiable", report.Negotiable).
			Msg("Category crawled")
	}
	return stats
}

func (w *Worker) publish(ctx context.Context, log *logger.Logger, runID string, category storage.Category, listings []crawler.Listing) int {
	if w.publisher == nil {
		return 0
	}

	published := 0
	for _, listing := range listings {
		data, err := json.Marshal(Message{RunID: runID, Category: category.Name, Listing: listing})
		if err != nil {
			log.Error().Err(err).Str("url", listing.URL).Msg("Failed to encode listing")
			continue
		}

		if err := w.publisher.Publish(ctx, PublishKey, data); err != nil {
			// the stream is down; the rest would fail the same way
			log.Error().Err(err).Msg("Failed to publish listings")
			return published
		}
		published++
	}
	return published
}
