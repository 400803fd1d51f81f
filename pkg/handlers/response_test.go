package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "bad_request", "invalid input"},
		{"not found", http.StatusNotFound, "not_found", "resource not found"},
		{"conflict", http.StatusConflict, "cache_not_ready", "initialize first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message)
			if err != nil {
				t.Fatalf("ErrorResponse returned error: %v", err)
			}

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.statusCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			ct := resp.Header.Get("Content-Type")
			if ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}

			if body["error"] != tt.errorCode {
				t.Errorf("body[error] = %q, want %q", body["error"], tt.errorCode)
			}
			if body["message"] != tt.message {
				t.Errorf("body[message] = %q, want %q", body["message"], tt.message)
			}
		})
	}
}

func TestWriteJSON_Status200(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteJSON(w, http.StatusOK, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["key"] != "value" {
		t.Errorf("body[key] = %q, want %q", body["key"], "value")
	}
}

func TestDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unresolved filter value maps to 422",
			err:        &apperrors.UnresolvedFilterValueError{Category: "make", Tokens: []string{"Yamaha"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unresolved_filter_value",
		},
		{
			name:       "conflicting mapping maps to 409",
			err:        &apperrors.ConflictingMappingError{UncuratedMakeID: 1, ExistingCanonicalID: 2, ProposedCanonicalID: 3},
			wantStatus: http.StatusConflict,
			wantCode:   "conflicting_mapping",
		},
		{
			name:       "cache not ready maps to 409",
			err:        apperrors.ErrCacheNotReady,
			wantStatus: http.StatusConflict,
			wantCode:   "cache_not_ready",
		},
		{
			name:       "import in progress maps to 409",
			err:        apperrors.ErrImportInProgress,
			wantStatus: http.StatusConflict,
			wantCode:   "import_in_progress",
		},
		{
			name:       "not found maps to 404",
			err:        apperrors.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "storage faults map to 500",
			err:        apperrors.Storage("query", errors.New("disk gone")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "storage_error",
		},
		{
			name:       "anything else maps to 400",
			err:        errors.New("metric sum requires a valid measure"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			if !DomainError(w, tt.err) {
				t.Fatal("DomainError returned false for a non-nil error")
			}

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body["error"] != tt.wantCode {
				t.Errorf("body[error] = %q, want %q", body["error"], tt.wantCode)
			}
		})
	}
}

func TestDomainError_NilError(t *testing.T) {
	w := httptest.NewRecorder()
	if DomainError(w, nil) {
		t.Fatal("DomainError returned true for nil")
	}
	if w.Body.Len() != 0 {
		t.Errorf("DomainError wrote a body for nil error: %q", w.Body.String())
	}
}
