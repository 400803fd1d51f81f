package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/services"
)

// FilterRequest is the wire form of a filter: display-name tokens grouped by
// category, plus an optional registration-year window.
type FilterRequest struct {
	Scope     string              `json:"scope"`
	Selected  map[string][]string `json:"selected,omitempty"`
	YearFrom  int                 `json:"year_from,omitempty"`
	YearUntil int                 `json:"year_until,omitempty"`
}

// MetricRequest is the wire form of a metric.
type MetricRequest struct {
	Kind       string         `json:"kind"`
	Measure    string         `json:"measure,omitempty"`
	Baseline   *FilterRequest `json:"baseline,omitempty"`
	Normalize  bool           `json:"normalize,omitempty"`
	Cumulative bool           `json:"cumulative,omitempty"`
}

// QueryRequest for POST /api/query body.
type QueryRequest struct {
	Filter     FilterRequest `json:"filter"`
	Metric     MetricRequest `json:"metric"`
	Regularize bool          `json:"regularize"`
}

// QueriesHandler handles aggregate query requests.
type QueriesHandler struct {
	queries *services.QueryService
	logger  *zap.Logger
}

// NewQueriesHandler creates a new queries handler.
func NewQueriesHandler(queries *services.QueryService, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{queries: queries, logger: logger}
}

// RegisterRoutes registers the queries handler's routes on the given mux.
func (h *QueriesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
}

// Query handles POST /api/query
func (h *QueriesHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	spec, err := req.Filter.toSpec()
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	metric, err := req.Metric.toSpec()
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.queries.ResolveAndQuery(r.Context(), spec, metric, req.Regularize)
	if DomainError(w, err) {
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

func (f *FilterRequest) toSpec() (models.FilterSpec, error) {
	spec := models.FilterSpec{
		Scope:     models.EntityScope(f.Scope),
		YearFrom:  f.YearFrom,
		YearUntil: f.YearUntil,
	}
	if !spec.Scope.Valid() {
		return spec, fmt.Errorf("unknown scope %q", f.Scope)
	}
	if len(f.Selected) > 0 {
		spec.Selected = make(map[models.DimensionCategory][]string, len(f.Selected))
		for cat, tokens := range f.Selected {
			spec.Selected[models.DimensionCategory(cat)] = tokens
		}
	}
	return spec, nil
}

func (m *MetricRequest) toSpec() (models.MetricSpec, error) {
	spec := models.MetricSpec{
		Kind:       models.MetricKind(m.Kind),
		Measure:    models.Measure(m.Measure),
		Normalize:  m.Normalize,
		Cumulative: m.Cumulative,
	}
	if m.Baseline != nil {
		baseline, err := m.Baseline.toSpec()
		if err != nil {
			return spec, err
		}
		spec.Baseline = &baseline
	}
	return spec, nil
}
