package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chathub-backend/internal/config"
	"chathub-backend/internal/database"
	"chathub-backend/internal/models"
	"chathub-backend/internal/services"
	"chathub-backend/internal/session"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *services.ValidationError
		authErr       *services.AuthError
		connErr       *database.ConnectionError
		queryErr      *database.QueryError
		cfgErr        *config.Error
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", authErr.Message, r))
	case errors.As(err, &connErr):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("DB_UNAVAILABLE", "Database connection failed", r))
	case errors.As(err, &queryErr):
		writeJSON(w, http.StatusInternalServerError, errorResp("QUERY_ERROR", queryErr.Error(), r))
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusInternalServerError, errorResp("CONFIG_ERROR", cfgErr.Error(), r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// currentSession returns the session attached by the session middleware.
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "No session", r))
		return nil, false
	}
	return sess, true
}
