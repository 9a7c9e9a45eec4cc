package storage

import (
	"context"

	"sjsage522/olxworker/internal/crawler"
)

// Category is a search the worker crawls on every run
type Category struct {
	ID           int32
	Name         string
	DefaultQuery string
}

// ListingStore persists crawled listings per category
type ListingStore interface {
	// FetchCategories returns every configured category
	FetchCategories(ctx context.Context) ([]Category, error)

	// UpsertListings inserts new listings and refreshes last_seen on known
	// ones; it returns the number of rows written
	UpsertListings(ctx context.Context, categoryID int32, listings []crawler.Listing) (int, error)

	Close()
}
