package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vinabook/bookshop/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unauthorized", err: domain.ErrUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "forbidden", err: domain.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "validation", err: domain.ErrValidation, wantStatus: http.StatusBadRequest},
		{name: "conflict", err: domain.ErrConflict, wantStatus: http.StatusConflict},
		{name: "empty cart", err: domain.ErrCartEmpty, wantStatus: http.StatusNotFound},
		{name: "book not found", err: domain.ErrBookNotFound, wantStatus: http.StatusNotFound},
		{name: "order not found", err: domain.ErrOrderNotFound, wantStatus: http.StatusNotFound},
		{
			name:       "insufficient stock",
			err:        &domain.InsufficientStockError{BookName: "Dune", Available: 1, Requested: 3},
			wantStatus: http.StatusBadRequest,
		},
		{name: "unexpected", err: errors.New("database on fire"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(logger, rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteDomainErrorRedactsInternal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	WriteDomainError(logger, rec, errors.New("pq: connection refused"))

	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestWriteDomainErrorWrappedValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	err := errors.Join(errors.New("price must be a non-negative number"), domain.ErrValidation)
	WriteDomainError(logger, rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
