package main

import (
	"bytes"
	"context"
	"testing"

	"sjsage522/olxworker/pkg/errors"
	"sjsage522/olxworker/services/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	testCases := []struct {
		input string
		name  string
		query string
	}{
		{"gpu=rtx 3070", "gpu", "rtx 3070"},
		{" rowery = rower górski ", "rowery", "rower górski"},
		{"math=a=b", "math", "a=b"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			name, query, err := parseCategory(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.query, query)
		})
	}
}

func TestParseCategoryErrors(t *testing.T) {
	for _, input := range []string{"gpu", "=rtx", "gpu=", " = "} {
		t.Run(input, func(t *testing.T) {
			_, _, err := parseCategory(input)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
		})
	}
}

// fixedPrices serves canned prices per category
type fixedPrices struct {
	categories []storage.Category
	prices     map[int32][]int64
	err        error
}

func (f *fixedPrices) FetchCategories(ctx context.Context) ([]storage.Category, error) {
	return f.categories, nil
}

func (f *fixedPrices) PriceSamples(ctx context.Context, categoryID int32) ([]int64, error) {
	return f.prices[categoryID], f.err
}

func TestPrintStoredInsights(t *testing.T) {
	store := &fixedPrices{
		categories: []storage.Category{
			{ID: 1, Name: "gpu", DefaultQuery: "rtx 3070"},
			{ID: 2, Name: "empty", DefaultQuery: "nic"},
		},
		prices: map[int32][]int64{1: {120050, 35000}},
	}

	var buf bytes.Buffer
	require.NoError(t, printStoredInsights(context.Background(), &buf, store))

	out := buf.String()
	assert.Contains(t, out, "gpu")
	assert.Contains(t, out, "Max price  : 1 200,50 PLN")
	assert.Contains(t, out, "empty")
	assert.Contains(t, out, "No price data available")
}

func TestPrintStoredInsightsStoreError(t *testing.T) {
	store := &fixedPrices{
		categories: []storage.Category{{ID: 1, Name: "gpu"}},
		err:        errors.NewStorage("failed to query prices", nil),
	}

	var buf bytes.Buffer
	err := printStoredInsights(context.Background(), &buf, store)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
}
