package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/olxworker/internal/crawler"
	"sjsage522/olxworker/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS categories (
	id            SERIAL PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	default_query TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	url         TEXT PRIMARY KEY,
	category    INTEGER NOT NULL REFERENCES categories(id),
	title       TEXT NOT NULL,
	price       BIGINT NOT NULL,
	negotiable  BOOLEAN NOT NULL DEFAULT FALSE,
	location    TEXT NOT NULL,
	date_posted TIMESTAMPTZ NOT NULL,
	first_seen  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_seen   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
`

const upsertSQL = `
INSERT INTO listings (url, category, title, price, negotiable, location, date_posted)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url) DO UPDATE SET last_seen = NOW();
`

// PostgresStore implements ListingStore on a pgx connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewStorage("failed to create postgres pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewStorage("failed to connect postgres", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the categories and listings tables if missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return errors.NewStorage("failed to ensure schema", err)
	}
	return nil
}

// AddCategory registers a category and returns its id; an existing name
// keeps its id and gets the new query
func (s *PostgresStore) AddCategory(ctx context.Context, name, defaultQuery string) (int32, error) {
	var id int32
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, default_query) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET default_query = EXCLUDED.default_query
		RETURNING id`, name, defaultQuery).Scan(&id)
	if err != nil {
		return 0, errors.NewStorage("failed to add category "+name, err)
	}
	return id, nil
}

// FetchCategories returns all categories ordered by id
func (s *PostgresStore) FetchCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, default_query FROM categories ORDER BY id`)
	if err != nil {
		return nil, errors.NewStorage("failed to query categories", err)
	}

	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.Name, &c.DefaultQuery)
		return c, err
	})
	if err != nil {
		return nil, errors.NewStorage("failed to scan categories", err)
	}
	return categories, nil
}

// UpsertListings writes listings in one batch. Listings without a title or
// url are not written.
func (s *PostgresStore) UpsertListings(ctx context.Context, categoryID int32, listings []crawler.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, l := range listings {
		title := strings.TrimSpace(l.Title)
		url := strings.TrimSpace(l.URL)
		if title == "" || url == "" {
			continue
		}

		batch.Queue(upsertSQL,
			url,
			categoryID,
			title,
			l.Price.Value,
			l.Price.Negotiable,
			l.Location,
			l.DatePosted,
		)
	}

	enqueued := batch.Len()
	if enqueued == 0 {
		return 0, nil
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < enqueued; i++ {
		if _, err := results.Exec(); err != nil {
			return i, errors.NewStorage(fmt.Sprintf("batch upsert failed at row %d", i), err)
		}
	}

	return enqueued, nil
}

// PriceSamples returns the prices of a category in ascending order
func (s *PostgresStore) PriceSamples(ctx context.Context, categoryID int32) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT price FROM listings WHERE category = $1 ORDER BY price`, categoryID)
	if err != nil {
		return nil, errors.NewStorage("failed to query prices", err)
	}

	prices, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, errors.NewStorage("failed to scan prices", err)
	}
	return prices, nil
}
