package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecrawl/storecrawl/internal/database"
)

type fakeStatsStore struct {
	stats    *database.Stats
	statsErr error
	products map[int64]bool
	backlog  []int64
}

func (s *fakeStatsStore) CrawlStats(ctx context.Context) (*database.Stats, error) {
	return s.stats, s.statsErr
}

func (s *fakeStatsStore) ProductExists(ctx context.Context, id int64) (bool, error) {
	return s.products[id], nil
}

func (s *fakeStatsStore) ProductsWithoutNews(ctx context.Context) ([]int64, error) {
	return s.backlog, nil
}

func newTestRouter(store StatsStore) *chi.Mux {
	h := NewHandlers(store, slog.Default())
	r := chi.NewRouter()
	r.Get("/api/v1/stats", h.GetStats)
	r.Get("/api/v1/products/{productID}", h.GetProduct)
	r.Get("/api/v1/news/backlog", h.GetNewsBacklog)
	return r
}

func TestGetStats(t *testing.T) {
	t.Run("returns crawl counts", func(t *testing.T) {
		store := &fakeStatsStore{stats: &database.Stats{Products: 12, Reviews: 340, FeedsDone: 7}}
		rec := httptest.NewRecorder()
		newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var got database.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(12), got.Products)
		assert.Equal(t, int64(340), got.Reviews)
		assert.Equal(t, int64(7), got.FeedsDone)
	})

	t.Run("store failure maps to 500", func(t *testing.T) {
		store := &fakeStatsStore{statsErr: errors.New("connection lost")}
		rec := httptest.NewRecorder()
		newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetProduct(t *testing.T) {
	store := &fakeStatsStore{products: map[int64]bool{440: true}}
	router := newTestRouter(store)

	t.Run("known product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/440", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/570", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetNewsBacklog(t *testing.T) {
	store := &fakeStatsStore{backlog: []int64{440, 570}}
	rec := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/news/backlog", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Count      int     `json:"count"`
		ProductIDs []int64 `json:"product_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []int64{440, 570}, got.ProductIDs)
}
