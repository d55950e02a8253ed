package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/homehistory/internal/backfill"
	"github.com/starford/homehistory/internal/enrich"
)

// AddressEnricher is the enrichment cache behaviour the handlers need.
type AddressEnricher interface {
	Enrich(ctx context.Context, address string) enrich.Result
	ClearCache(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (enrich.CacheStats, error)
}

// Backfiller runs enrichment backfill passes.
type Backfiller interface {
	Run(ctx context.Context, limit int) (backfill.Result, error)
	Stats(ctx context.Context) (backfill.Coverage, error)
}

// EnrichmentHandler serves the address enrichment and admin routes.
type EnrichmentHandler struct {
	enricher AddressEnricher
	backfill Backfiller
}

// NewEnrichmentHandler creates an EnrichmentHandler.
func NewEnrichmentHandler(enricher AddressEnricher, bf Backfiller) *EnrichmentHandler {
	return &EnrichmentHandler{enricher: enricher, backfill: bf}
}

// EnrichAddress handles GET /enrich-address.
//
//	@Summary		Enrich a free-text address with geocoding data
//	@Tags			enrichment
//	@Produce		json
//	@Param			address	query		string	true	"Address"
//	@Success		200		{object}	EnrichResponse
//	@Failure		400		{object}	failResponse
//	@Router			/enrich-address [get]
func (h *EnrichmentHandler) EnrichAddress(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if strings.TrimSpace(address) == "" {
		writeJSON(w, http.StatusBadRequest, failBody("Address query parameter is required", nil))
		return
	}
	res := h.enricher.Enrich(r.Context(), address)
	writeJSON(w, http.StatusOK, EnrichResponse{Success: true, Cached: res.Cached, Data: res})
}

// ClearCache handles DELETE /enrich-address/cache.
//
//	@Summary		Clear both address cache tiers
//	@Tags			enrichment
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		500	{object}	failResponse
//	@Security		BearerAuth
//	@Router			/enrich-address/cache [delete]
func (h *EnrichmentHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.enricher.ClearCache(r.Context())
	if err != nil {
		slog.Error("clear cache failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, failBody("Failed to clear cache", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Cache cleared",
		"deletedCount": n,
	})
}

// CacheStats handles GET /enrich-address/cache/stats.
//
//	@Summary		Address cache statistics
//	@Tags			enrichment
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		500	{object}	failResponse
//	@Router			/enrich-address/cache/stats [get]
func (h *EnrichmentHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.enricher.Stats(r.Context())
	if err != nil {
		slog.Error("cache stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, failBody("Failed to get cache stats", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// Backfill handles POST /admin/enrich/backfill.
//
//	@Summary		Refresh missing or stale property enrichment
//	@Tags			admin
//	@Produce		json
//	@Param			limit	query		int	false	"Max properties to process (default 100)"
//	@Success		200		{object}	map[string]any
//	@Failure		500		{object}	failResponse
//	@Security		BearerAuth
//	@Router			/admin/enrich/backfill [post]
func (h *EnrichmentHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	res, err := h.backfill.Run(r.Context(), limit)
	if err != nil {
		slog.Error("backfill failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, failBody("Backfill failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Backfill complete",
		"stats":   res,
	})
}

// EnrichmentStats handles GET /admin/enrich/stats.
//
//	@Summary		Enrichment coverage across properties
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		500	{object}	failResponse
//	@Security		BearerAuth
//	@Router			/admin/enrich/stats [get]
func (h *EnrichmentHandler) EnrichmentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backfill.Stats(r.Context())
	if err != nil {
		slog.Error("enrichment stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, failBody("Failed to get stats", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}
