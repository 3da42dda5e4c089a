package users

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/domain"
)

// Handler exposes the admin user-management endpoints. Every route is
// behind the auth middleware and additionally requires the admin role.
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

// requireAdmin resolves the caller and rejects non-admins. A nil return
// means the response has already been written.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) *domain.User {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return nil
	}

	caller, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return nil
	}

	if caller.Role != domain.RoleAdmin {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden)
		return nil
	}

	return caller
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, total, err := h.repo.List(r.Context(), page, limit)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	response := map[string]any{"users": users, "total": total}
	if limit > 0 {
		response["total_pages"] = (total + limit - 1) / limit
		response["current_page"] = page
	}

	api.WriteJSON(h.logger, w, http.StatusOK, response)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	user, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, user)
}

type createUserRequest struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Username == "" || req.Password == "" || req.Role == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("email, username, password and role are required: %w", domain.ErrValidation))
		return
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleUser {
		api.WriteDomainError(h.logger, w, fmt.Errorf("invalid role %q: %w", req.Role, domain.ErrValidation))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &domain.User{
		Email:    req.Email,
		Username: req.Username,
		Password: string(hash),
		Role:     req.Role,
	}

	if err := h.repo.Create(r.Context(), user); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	api.WriteJSON(h.logger, w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Username == "" || req.Role == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("email, username and role are required: %w", domain.ErrValidation))
		return
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleUser {
		api.WriteDomainError(h.logger, w, fmt.Errorf("invalid role %q: %w", req.Role, domain.ErrValidation))
		return
	}

	user := &domain.User{
		ID:       r.PathValue("id"),
		Email:    req.Email,
		Username: req.Username,
		Role:     req.Role,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("failed to hash password", "error", err)
			api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		user.Password = string(hash)
	}

	if err := h.repo.Update(r.Context(), user); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("user updated", "user_id", user.ID)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "user updated"})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("user deleted", "user_id", id)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "user deleted"})
}
