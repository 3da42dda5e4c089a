package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/domain"
)

type userStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Handler exposes the admin stock endpoints.
type Handler struct {
	ledger *Ledger
	users  userStore
	logger *slog.Logger
}

func NewHandler(ledger *Ledger, users userStore, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		users:  users,
		logger: logger,
	}
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return false
	}

	caller, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return false
	}
	if caller.Role != domain.RoleAdmin {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden)
		return false
	}

	return true
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	bookID := r.PathValue("id")
	quantity, err := h.ledger.Stock(r.Context(), bookID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"book_id":  bookID,
		"quantity": quantity,
		"tracked":  quantity != nil,
	})
}

type setStockRequest struct {
	// Quantity null means untracked stock.
	Quantity *int `json:"quantity"`
}

func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		api.WriteDomainError(h.logger, w, fmt.Errorf("quantity must not be negative: %w", domain.ErrValidation))
		return
	}

	bookID := r.PathValue("id")
	if err := h.ledger.SetStock(r.Context(), bookID, req.Quantity); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("stock updated", "book_id", bookID)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "stock updated"})
}
