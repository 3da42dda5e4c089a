// Package api holds the response helpers shared by every HTTP handler:
// JSON encoding and the mapping from domain errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vinabook/bookshop/internal/domain"
)

func WriteJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	WriteJSON(logger, w, status, map[string]string{"error": message})
}

// WriteDomainError maps the error taxonomy to HTTP statuses. Unexpected
// errors are logged and reported as a generic 500; the underlying cause
// stays in the logs, not in the response body.
func WriteDomainError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(logger, w, http.StatusUnauthorized, "please log in")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(logger, w, http.StatusForbidden, "you do not have permission to do this")
	case errors.Is(err, domain.ErrValidation):
		WriteError(logger, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		WriteError(logger, w, http.StatusConflict, err.Error())
	case errors.As(err, &stockErr):
		WriteError(logger, w, http.StatusBadRequest, stockErr.Error())
	case domain.IsNotFound(err):
		WriteError(logger, w, http.StatusNotFound, err.Error())
	default:
		logger.Error("unexpected error", "error", err)
		WriteError(logger, w, http.StatusInternalServerError, "internal server error")
	}
}
