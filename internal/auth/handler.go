package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/domain"
)

// UserStore is the slice of the users repository that auth needs.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type Handler struct {
	store  UserStore
	tokens *TokenManager
	logger *slog.Logger
}

func NewHandler(store UserStore, tokens *TokenManager, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Username == "" || req.Password == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("email, username and password are required: %w", domain.ErrValidation))
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
		Role:     domain.RoleUser,
	}

	if err := h.store.Create(r.Context(), user); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	api.WriteJSON(h.logger, w, http.StatusCreated, map[string]any{
		"message": "registration successful",
		"user":    userResponse{ID: user.ID, Email: user.Email, Username: user.Username, Role: user.Role},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("username and password are required: %w", domain.ErrValidation))
		return
	}

	user, err := h.store.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Do not reveal whether the username exists.
			api.WriteError(h.logger, w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		api.WriteDomainError(h.logger, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		api.WriteError(h.logger, w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"message": "login successful",
		"token":   token,
		"user":    userResponse{ID: user.ID, Email: user.Email, Username: user.Username, Role: user.Role},
	})
}
