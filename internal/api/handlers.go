package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storecrawl/storecrawl/internal/database"
)

// StatsStore is the read surface the status API exposes.
type StatsStore interface {
	CrawlStats(ctx context.Context) (*database.Stats, error)
	ProductExists(ctx context.Context, id int64) (bool, error)
	ProductsWithoutNews(ctx context.Context) ([]int64, error)
}

type Handlers struct {
	store  StatsStore
	logger *slog.Logger
}

func NewHandlers(store StatsStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		logger: logger,
	}
}

// GetStats handles crawl progress retrieval
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.CrawlStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// GetProduct reports whether a product id has been stored
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "productID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	exists, err := h.store.ProductExists(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to check product", "product_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to check product")
		return
	}
	if !exists {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// GetNewsBacklog lists products still waiting for a news fetch
func (h *Handlers) GetNewsBacklog(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ProductsWithoutNews(r.Context())
	if err != nil {
		h.logger.Error("failed to list news backlog", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list news backlog")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(ids),
		"product_ids": ids,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
