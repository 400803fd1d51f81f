package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/services"
)

// CreateMappingRequest for POST body. IDs reference dimension values; zero
// means unset for the optional fields.
type CreateMappingRequest struct {
	UncuratedMakeID  uint32 `json:"uncurated_make_id"`
	UncuratedModelID uint32 `json:"uncurated_model_id"`
	ModelYearID      uint32 `json:"model_year_id,omitempty"`

	CanonicalMakeID  uint32 `json:"canonical_make_id"`
	CanonicalModelID uint32 `json:"canonical_model_id"`
	FuelTypeID       uint32 `json:"fuel_type_id,omitempty"`
	VehicleTypeID    uint32 `json:"vehicle_type_id,omitempty"`

	RecordCount int `json:"record_count,omitempty"`
}

// ListMappingsResponse wraps the array for frontend compatibility.
type ListMappingsResponse struct {
	Mappings []services.MappingView `json:"mappings"`
}

// GenerateHierarchyResponse reports the materialized combination count.
type GenerateHierarchyResponse struct {
	Combinations int `json:"combinations"`
}

// MappingsHandler handles the curation API: mapping CRUD, hierarchy
// generation, and auto-assignment suggestions.
type MappingsHandler struct {
	mappings *services.MappingService
	logger   *zap.Logger
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(mappings *services.MappingService, logger *zap.Logger) *MappingsHandler {
	return &MappingsHandler{mappings: mappings, logger: logger}
}

// RegisterRoutes registers the mappings handler's routes on the given mux.
func (h *MappingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/mappings", h.List)
	mux.HandleFunc("POST /api/mappings", h.Create)
	mux.HandleFunc("DELETE /api/mappings/{id}", h.Delete)
	mux.HandleFunc("POST /api/hierarchy/generate", h.GenerateHierarchy)
	mux.HandleFunc("GET /api/hierarchy/suggest", h.Suggest)
}

// List handles GET /api/mappings
func (h *MappingsHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.mappings.List(r.Context())
	if DomainError(w, err) {
		return
	}
	if views == nil {
		views = []services.MappingView{}
	}

	if err := WriteJSON(w, http.StatusOK, ListMappingsResponse{Mappings: views}); err != nil {
		h.logger.Error("Failed to encode mappings response", zap.Error(err))
	}
}

// Create handles POST /api/mappings
func (h *MappingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	mapping := &models.RegularizationMapping{
		UncuratedMakeID:  req.UncuratedMakeID,
		UncuratedModelID: req.UncuratedModelID,
		ModelYearID:      req.ModelYearID,
		CanonicalMakeID:  req.CanonicalMakeID,
		CanonicalModelID: req.CanonicalModelID,
		FuelTypeID:       req.FuelTypeID,
		VehicleTypeID:    req.VehicleTypeID,
		RecordCount:      req.RecordCount,
	}

	if DomainError(w, h.mappings.Add(r.Context(), mapping)) {
		return
	}

	if err := WriteJSON(w, http.StatusCreated, map[string]string{"id": mapping.ID.String()}); err != nil {
		h.logger.Error("Failed to encode mapping response", zap.Error(err))
	}
}

// Delete handles DELETE /api/mappings/{id}
func (h *MappingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid mapping id")
		return
	}

	if DomainError(w, h.mappings.Remove(r.Context(), id)) {
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"success": true}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// GenerateHierarchy handles POST /api/hierarchy/generate
func (h *MappingsHandler) GenerateHierarchy(w http.ResponseWriter, r *http.Request) {
	combinations, err := h.mappings.GenerateHierarchy(r.Context())
	if DomainError(w, err) {
		return
	}

	if err := WriteJSON(w, http.StatusOK, GenerateHierarchyResponse{Combinations: combinations}); err != nil {
		h.logger.Error("Failed to encode hierarchy response", zap.Error(err))
	}
}

// Suggest handles GET /api/hierarchy/suggest?make_id=&model_id=
func (h *MappingsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	makeID, err1 := strconv.ParseUint(r.URL.Query().Get("make_id"), 10, 32)
	modelID, err2 := strconv.ParseUint(r.URL.Query().Get("model_id"), 10, 32)
	if err1 != nil || err2 != nil || makeID == 0 || modelID == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "make_id and model_id are required")
		return
	}

	suggestion, err := h.mappings.Suggest(r.Context(), uint32(makeID), uint32(modelID))
	if DomainError(w, err) {
		return
	}

	if err := WriteJSON(w, http.StatusOK, suggestion); err != nil {
		h.logger.Error("Failed to encode suggestion response", zap.Error(err))
	}
}
