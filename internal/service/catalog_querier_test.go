package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

func TestCatalogQuerierCachesResultSets(t *testing.T) {
	source := newMemoryCourses(models.CatalogCourse{Course: models.Course{ID: "c1", Code: "CS101", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}})
	cache := NewCacheService(newMemoryCache(), NewMetricsService(), time.Minute, nil, true)
	querier := NewCatalogQuerier(source, cache, time.Minute, nil)
	query := models.CatalogQuery{Basic: models.BasicFree, PriceRange: models.PriceAll, Search: "CS"}

	first, err := querier.QueryCatalog(context.Background(), query)
	require.NoError(t, err)
	second, err := querier.QueryCatalog(context.Background(), models.CatalogQuery{Basic: models.BasicFree, PriceRange: models.PriceAll, Search: " cs "})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.queries)

	querier.Invalidate(context.Background())
	_, err = querier.QueryCatalog(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 2, source.queries)
}

func TestCatalogQuerierWithoutCacheAlwaysQueries(t *testing.T) {
	source := newMemoryCourses()
	querier := NewCatalogQuerier(source, nil, time.Minute, nil)

	for i := 0; i < 3; i++ {
		_, err := querier.QueryCatalog(context.Background(), models.CatalogQuery{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, source.queries)
}

func TestCatalogQuerierPropagatesErrorsAndCancellation(t *testing.T) {
	source := newMemoryCourses()
	source.err = errors.New("db down")
	querier := NewCatalogQuerier(source, nil, time.Minute, nil)

	_, err := querier.QueryCatalog(context.Background(), models.CatalogQuery{})
	assert.EqualError(t, err, "db down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = querier.QueryCatalog(ctx, models.CatalogQuery{})
	assert.Error(t, err)
}

func TestCatalogCacheKeyNormalisesSearch(t *testing.T) {
	a := catalogCacheKey(models.CatalogQuery{Basic: models.BasicAll, PriceRange: models.PriceUnder500, Search: "Data Science"})
	b := catalogCacheKey(models.CatalogQuery{Basic: models.BasicAll, PriceRange: models.PriceUnder500, Search: " data science "})
	c := catalogCacheKey(models.CatalogQuery{Basic: models.BasicPaid, PriceRange: models.PriceUnder500, Search: "data science"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "catalog:all:under500:data+science", a)
}
