package cart

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/domain"
)

// Handler serves the authenticated cart endpoints. Every route reads the
// caller from the auth context; a user can only touch their own lines.
type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	items, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, items)
}

type addItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.BookID == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("book_id is required: %w", domain.ErrValidation))
		return
	}
	if req.Quantity < 1 {
		api.WriteDomainError(h.logger, w, fmt.Errorf("quantity must be at least 1: %w", domain.ErrValidation))
		return
	}

	item, err := h.repo.AddItem(r.Context(), userID, req.BookID, req.Quantity)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("cart item added", "user_id", userID, "book_id", req.BookID, "quantity", item.Quantity)
	api.WriteJSON(h.logger, w, http.StatusCreated, map[string]any{"message": "added to cart", "item": item})
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.UpdateQuantity(r.Context(), userID, r.PathValue("id"), req.Quantity); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "cart updated"})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	if err := h.repo.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "cart item removed"})
}
