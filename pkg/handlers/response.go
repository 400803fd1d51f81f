package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// DomainError maps domain errors onto HTTP responses. Returns false when err
// is nil so handlers can write their success response.
func DomainError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	var unresolved *apperrors.UnresolvedFilterValueError
	if errors.As(err, &unresolved) {
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "unresolved_filter_value", unresolved.Error())
		return true
	}

	var conflict *apperrors.ConflictingMappingError
	if errors.As(err, &conflict) {
		_ = ErrorResponse(w, http.StatusConflict, "conflicting_mapping", conflict.Error())
		return true
	}

	switch {
	case errors.Is(err, apperrors.ErrCacheNotReady):
		_ = ErrorResponse(w, http.StatusConflict, "cache_not_ready", err.Error())
	case errors.Is(err, apperrors.ErrImportInProgress):
		_ = ErrorResponse(w, http.StatusConflict, "import_in_progress", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrSchema), errors.Is(err, apperrors.ErrStorage):
		_ = ErrorResponse(w, http.StatusInternalServerError, "storage_error", err.Error())
	default:
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error())
	}
	return true
}
