package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// CacheStatusResponse reports the cache lifecycle state and the snapshot's
// data generation.
type CacheStatusResponse struct {
	State      string `json:"state"`
	Scope      string `json:"scope,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
}

// DimensionValuesResponse lists a category's values for filter pickers.
type DimensionValuesResponse struct {
	Category string                  `json:"category"`
	Values   []models.DimensionValue `json:"values"`
}

// CacheHandler handles filter-cache lifecycle and dimension listing
// endpoints.
type CacheHandler struct {
	cache  *cache.FilterCache
	logger *zap.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(filterCache *cache.FilterCache, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: filterCache, logger: logger}
}

// RegisterRoutes registers the cache handler's routes on the given mux.
func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cache/initialize/{scope}", h.Initialize)
	mux.HandleFunc("POST /api/cache/invalidate", h.Invalidate)
	mux.HandleFunc("GET /api/cache/status", h.Status)
	mux.HandleFunc("GET /api/dimensions/{category}", h.DimensionValues)
}

// Initialize handles POST /api/cache/initialize/{scope}
func (h *CacheHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	scope := models.EntityScope(r.PathValue("scope"))
	if !scope.Valid() {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "unknown scope")
		return
	}

	if DomainError(w, h.cache.Initialize(r.Context(), scope)) {
		return
	}

	h.writeStatus(w)
}

// Invalidate handles POST /api/cache/invalidate
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()
	h.writeStatus(w)
}

// Status handles GET /api/cache/status
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w)
}

// DimensionValues handles GET /api/dimensions/{category}
// Serves the live snapshot; a 409 tells the caller to initialize first.
func (h *CacheHandler) DimensionValues(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cache.Snapshot()
	if DomainError(w, err) {
		return
	}

	cat := models.DimensionCategory(r.PathValue("category"))
	values := snap.Items(cat)
	if values == nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "unknown category for the loaded scope")
		return
	}

	response := DimensionValuesResponse{Category: string(cat), Values: values}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode dimension values", zap.Error(err))
	}
}

func (h *CacheHandler) writeStatus(w http.ResponseWriter) {
	status := CacheStatusResponse{State: h.cache.State().String()}
	if snap, err := h.cache.Snapshot(); err == nil {
		status.Scope = string(snap.Scope())
		status.Generation = snap.Generation()
	}

	if err := WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("Failed to encode cache status", zap.Error(err))
	}
}
