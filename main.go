package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sjsage522/olxworker/config"
	"sjsage522/olxworker/internal/crawler"
	"sjsage522/olxworker/logger"
	"sjsage522/olxworker/pkg/errors"
	"sjsage522/olxworker/services/cache"
	"sjsage522/olxworker/services/insights"
	"sjsage522/olxworker/services/publisher"
	"sjsage522/olxworker/services/storage"
	"sjsage522/olxworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	query := flag.String("query", "", "crawl a single search term and print the result as JSON")
	showInsights := flag.Bool("insights", false, "print a price histogram to stderr; without -query, one per stored category")
	newCategory := flag.String("add-category", "", `register a category as "name=query" and exit`)
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr, "olx_")
	if err := cacheService.Ping(); err != nil {
		logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, rate limit blocks will not be shared")
	}

	controller := newController(cfg, cacheService)

	if *query != "" {
		os.Exit(runQuery(ctx, controller, *query, *showInsights))
	}

	if *newCategory != "" || *showInsights {
		os.Exit(runStoreCommand(ctx, cfg, *newCategory, *showInsights))
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Int("concurrency", cfg.CrawlConcurrency).
		Int("max_pages", cfg.MaxPages).
		Msg("Starting application")

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	w := worker.NewWorker(
		controller,
		services.Store,
		services.Publisher,
		logger.ForWorker(),
		cfg.CrawlConcurrency,
		cfg.CrawlInterval,
	)

	log.Info().Msg("Starting olx worker")
	if err := w.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

func newController(cfg *config.Config, cacheService cache.CacheService) *crawler.Controller {
	fetcher := crawler.NewHTTPFetcher(
		cfg.RequestTimeout,
		crawler.WithRateLimit(cfg.RequestsPerSecond),
		crawler.WithBlockCache(cacheService, cfg.BlockTime),
		crawler.WithFetchLogger(logger.ForComponent("fetcher")),
	)

	return crawler.NewController(
		fetcher,
		cfg.SiteURL,
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithLogger(logger.ForComponent("crawler")),
	)
}

// runQuery crawls one term and writes the result to stdout. A failed crawl
// still prints the listings gathered before the failure.
func runQuery(ctx context.Context, controller *crawler.Controller, term string, showInsights bool) int {
	result, crawlErr := controller.Crawl(ctx, term)
	if crawlErr != nil {
		logger.ForCrawler(term).Error().Err(crawlErr).Msg("Crawl stopped early")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logger.LogError("main", err, "Failed to write result")
		return 1
	}

	if showInsights {
		insights.Print(os.Stderr, term, insights.Generate(result.Listings))
	}

	if crawlErr != nil {
		return 1
	}
	return 0
}

// runStoreCommand registers a category and/or prints the stored price
// histograms, then returns the exit code
func runStoreCommand(ctx context.Context, cfg *config.Config, newCategory string, showInsights bool) int {
	log := logger.ForStore()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect")
		return 1
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to prepare schema")
		return 1
	}

	if newCategory != "" {
		name, query, err := parseCategory(newCategory)
		if err != nil {
			log.Error().Err(err).Msg("Invalid -add-category")
			return 1
		}

		id, err := store.AddCategory(ctx, name, query)
		if err != nil {
			log.Error().Err(err).Msg("Failed to add category")
			return 1
		}
		log.Info().Int32("id", id).Str("name", name).Str("query", query).Msg("Category registered")
	}

	if showInsights {
		if err := printStoredInsights(ctx, os.Stderr, store); err != nil {
			log.Error().Err(err).Msg("Failed to load prices")
			return 1
		}
	}
	return 0
}

// parseCategory splits "name=query" on the first '='
func parseCategory(value string) (string, string, error) {
	name, query, found := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	query = strings.TrimSpace(query)
	if !found || name == "" || query == "" {
		return "", "", errors.NewConfiguration(fmt.Sprintf(`category must look like "name=query", got %q`, value), nil)
	}
	return name, query, nil
}

// priceSource is the part of the store the histogram report reads
type priceSource interface {
	FetchCategories(ctx context.Context) ([]storage.Category, error)
	PriceSamples(ctx context.Context, categoryID int32) ([]int64, error)
}

// printStoredInsights prints one price report per category from the prices
// already in the store
func printStoredInsights(ctx context.Context, w io.Writer, store priceSource) error {
	categories, err := store.FetchCategories(ctx)
	if err != nil {
		return err
	}

	for _, category := range categories {
		prices, err := store.PriceSamples(ctx, category.ID)
		if err != nil {
			return err
		}
		insights.Print(w, category.Name, insights.Summarize(prices))
		fmt.Fprintln(w)
	}
	return nil
}

// Services holds all the initialized services
type Services struct {
	Store     *storage.PostgresStore
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices connects the store and the publisher
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	services.Store = store

	if err := store.EnsureSchema(ctx); err != nil {
		services.Cleanup()
		return nil, err
	}
	logger.ForStore().Info().Msg("Connected to Postgres")

	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		redisPublisher.Close()
		services.Cleanup()
		return nil, err
	}
	services.Publisher = redisPublisher

	logger.ForPublisher().Info().
		Str("addr", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Str("stream", cfg.RedisStream).
		Msg("Connected to Redis")

	return services, nil
}
