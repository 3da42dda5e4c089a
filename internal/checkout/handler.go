package checkout

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type payCartRequest struct {
	CartIDs    []string `json:"cart_ids"`
	ClientName string   `json:"client_name"`
	Phone      string   `json:"phone"`
	Address    string   `json:"address"`
	Note       string   `json:"note"`
}

func (h *Handler) HandlePayCart(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	var req payCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.CartIDs) == 0 {
		api.WriteDomainError(h.logger, w, fmt.Errorf("cart_ids is required: %w", domain.ErrValidation))
		return
	}
	if req.ClientName == "" || req.Phone == "" || req.Address == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("client_name, phone and address are required: %w", domain.ErrValidation))
		return
	}

	recipient := domain.RecipientInfo{
		ClientName: req.ClientName,
		Phone:      req.Phone,
		Address:    req.Address,
		Note:       req.Note,
	}

	lines, err := h.service.CheckoutCart(r.Context(), userID, req.CartIDs, recipient)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    "payment successful",
		"orderItems": lines,
	})
}

type directOrderRequest struct {
	BookID     string `json:"book_id"`
	Quantity   int    `json:"quantity"`
	ClientName string `json:"client_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Note       string `json:"note"`
}

func (h *Handler) HandleDirectOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	var req directOrderRequest
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
	if req.ClientName == "" || req.Phone == "" || req.Address == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("client_name, phone and address are required: %w", domain.ErrValidation))
		return
	}

	recipient := domain.RecipientInfo{
		ClientName: req.ClientName,
		Phone:      req.Phone,
		Address:    req.Address,
		Note:       req.Note,
	}

	lines, err := h.service.CheckoutDirect(r.Context(), userID, req.BookID, req.Quantity, recipient)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    "order placed",
		"orderItems": lines,
	})
}
