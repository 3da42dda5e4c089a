package contact

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

// Handler serves the contact-us form. Submission is public; listing and
// deletion are admin-only.
type Handler struct {
	repo   *Repository
	users  userStore
	logger *slog.Logger
}

func NewHandler(repo *Repository, users userStore, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
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

type contactRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Phone == "" || req.Message == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name, phone and message are required: %w", domain.ErrValidation))
		return
	}

	contact := &domain.Contact{Name: req.Name, Phone: req.Phone, Message: req.Message}
	if err := h.repo.Create(r.Context(), contact); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("contact message received", "contact_id", contact.ID)
	api.WriteJSON(h.logger, w, http.StatusCreated, map[string]string{"message": "thank you for reaching out"})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	contacts, err := h.repo.List(r.Context())
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, contacts)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("contact deleted", "contact_id", id)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "contact deleted"})
}
