// Path: internal/delivery/rest/errors.go
package rest

import (
	"errors"
	"net/http"

	"media-search/internal/daterange"
	"media-search/internal/logging"
	"media-search/internal/service"
	"media-search/internal/validation"

	"github.com/goccy/go-json"
)

// APIError is the body of every error response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse wraps APIError.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// errNavigation is returned when next or prev is not possible.
var errNavigation = errors.New("no page in that direction")

// errBadBody is returned for an unreadable request body.
var errBadBody = errors.New("request body is not valid JSON")

// toHTTP maps an error to a status and a safe message.
func toHTTP(err error) (int, APIError) {
	var dateErr *daterange.Error
	var verrs validation.Errors
	switch {
	case errors.As(err, &dateErr):
		return http.StatusBadRequest, APIError{Code: string(dateErr.Reason), Message: dateErr.Error(), Field: dateErr.Field()}
	case errors.As(err, &verrs):
		return http.StatusBadRequest, APIError{Code: "invalid_argument", Message: verrs.Error()}
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, APIError{Code: "invalid_argument", Message: errBadBody.Error()}
	case errors.Is(err, service.ErrInvalidPageSize):
		return http.StatusBadRequest, APIError{Code: "invalid_page_size", Message: err.Error(), Field: "pageSize"}
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()}
	case errors.Is(err, errNavigation):
		return http.StatusConflict, APIError{Code: "no_page", Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{Code: "internal", Message: "internal error"}
	}
}

// WriteError writes err as a JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := toHTTP(err)
	apiErr.RequestID = logging.RequestIDFromContext(r.Context())
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
