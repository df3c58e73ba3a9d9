package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/solana-scanner/internal/errors"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondCategorized sends a categorized error as-is.
func respondCategorized(w http.ResponseWriter, err *apperrors.CategorizedError) {
	respondJSON(w, err.StatusCode, ErrorResponse{Error: *err.ToServiceError()})
}

// respondServiceError maps a service error to its HTTP response. Internal
// details are logged, never returned.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context()).WithError(err)
	catErr := apperrors.Categorize(err)

	if apperrors.IsUserError(catErr) {
		logger.WithField("code", catErr.Code).Debug("Request rejected")
		respondCategorized(w, catErr)
		return
	}
	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.WithField("category", catErr.Category).Error("Request failed")
		respondError(w, catErr.StatusCode, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}
	respondCategorized(w, catErr)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

const maxRequestBodyBytes = 64 << 10

// Common error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNoEvent           = "NO_EVENT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)
