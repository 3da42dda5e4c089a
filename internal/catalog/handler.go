package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/blob"
	"github.com/vinabook/bookshop/internal/cache"
	"github.com/vinabook/bookshop/internal/domain"
)

const (
	booksCacheKey = "catalog:books"
	menuCacheKey  = "catalog:menu"

	maxUploadBytes = 10 << 20
	bookImageDir   = "/vinabook/book_images"
	menuImageDir   = "/casa_coffee/menu_images"
)

// userStore is the slice of the users repository the catalog needs for
// admin checks.
type userStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Handler serves books, labels and the café menu. Mutations are
// admin-gated; list endpoints are public and go through the cache.
type Handler struct {
	repo     *Repository
	users    userStore
	uploader blob.Uploader
	cache    *cache.Cache
	logger   *slog.Logger
}

func NewHandler(repo *Repository, users userStore, uploader blob.Uploader, c *cache.Cache, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		users:    users,
		uploader: uploader,
		cache:    c,
		logger:   logger,
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

// formImage reads the optional "image" part of a multipart form. Returns
// nil data when the part is absent.
func formImage(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}

	return data, header.Filename, nil
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	// Only the unpaginated storefront listing is cached.
	if limit <= 0 {
		var cached []domain.Book
		if err := h.cache.GetJSON(r.Context(), booksCacheKey, &cached); err == nil {
			api.WriteJSON(h.logger, w, http.StatusOK, cached)
			return
		}
	}

	books, total, err := h.repo.ListBooks(r.Context(), page, limit)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	if limit <= 0 {
		if err := h.cache.SetJSON(r.Context(), booksCacheKey, books); err != nil {
			h.logger.Warn("failed to cache book list", "error", err)
		}
		api.WriteJSON(h.logger, w, http.StatusOK, books)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"books":        books,
		"total":        total,
		"total_pages":  (total + limit - 1) / limit,
		"current_page": page,
	})
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.repo.GetBook(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}
	api.WriteJSON(h.logger, w, http.StatusOK, book)
}

// parseBookForm reads the multipart fields shared by create and update.
func parseBookForm(r *http.Request) (*domain.Book, error) {
	book := &domain.Book{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Type:        domain.BookType(r.FormValue("type")),
		LabelID:     r.FormValue("label_id"),
	}
	if book.Type == "" {
		book.Type = domain.BookTypeNew
	}
	if book.Type != domain.BookTypeNew && book.Type != domain.BookTypeSale {
		return nil, fmt.Errorf("invalid book type %q: %w", book.Type, domain.ErrValidation)
	}

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil || price < 0 {
		return nil, fmt.Errorf("price must be a non-negative number: %w", domain.ErrValidation)
	}
	book.Price = price

	// Empty quantity means untracked stock.
	if raw := r.FormValue("quantity"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("quantity must be a non-negative integer: %w", domain.ErrValidation)
		}
		book.Quantity = &qty
	}

	return book, nil
}

func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	book, err := parseBookForm(r)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}
	if book.Name == "" || book.Description == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name, price and description are required: %w", domain.ErrValidation))
		return
	}

	data, filename, err := formImage(r)
	if err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid image upload")
		return
	}
	if data == nil {
		api.WriteDomainError(h.logger, w, fmt.Errorf("an image is required: %w", domain.ErrValidation))
		return
	}

	url, err := h.uploader.Upload(r.Context(), data, filename, bookImageDir)
	if err != nil {
		h.logger.Error("failed to upload book image", "error", err)
		api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}
	book.Image = url

	if err := h.repo.CreateBook(r.Context(), book); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.invalidate(r.Context(), booksCacheKey)
	h.logger.Info("book created", "book_id", book.ID, "name", book.Name)
	api.WriteJSON(h.logger, w, http.StatusCreated, map[string]any{"message": "book created", "data": book})
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	existing, err := h.repo.GetBook(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	book, err := parseBookForm(r)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}
	if book.Name == "" || book.Description == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name, price and description are required: %w", domain.ErrValidation))
		return
	}
	book.ID = existing.ID
	book.Image = existing.Image

	if data, filename, err := formImage(r); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid image upload")
		return
	} else if data != nil {
		url, err := h.uploader.Upload(r.Context(), data, filename, bookImageDir)
		if err != nil {
			h.logger.Error("failed to upload book image", "error", err)
			api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		book.Image = url
	}

	if err := h.repo.UpdateBook(r.Context(), book); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.invalidate(r.Context(), booksCacheKey)
	h.logger.Info("book updated", "book_id", book.ID)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "book updated"})
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := r.PathValue("id")
	if err := h.repo.DeleteBook(r.Context(), id); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.invalidate(r.Context(), booksCacheKey)
	h.logger.Info("book deleted", "book_id", id)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "book deleted"})
}

func (h *Handler) HandleListLabels(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	labels, total, err := h.repo.ListLabels(r.Context(), page, limit)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	if limit <= 0 {
		api.WriteJSON(h.logger, w, http.StatusOK, labels)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"labels":       labels,
		"total":        total,
		"total_pages":  (total + limit - 1) / limit,
		"current_page": page,
	})
}

type labelRequest struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (h *Handler) HandleCreateLabel(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Value == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name and value are required: %w", domain.ErrValidation))
		return
	}

	label := &domain.Label{Name: req.Name, Value: req.Value, Description: req.Description}
	if err := h.repo.CreateLabel(r.Context(), label); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("label created", "label_id", label.ID)
	api.WriteJSON(h.logger, w, http.StatusCreated, label)
}

func (h *Handler) HandleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Value == "" {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name and value are required: %w", domain.ErrValidation))
		return
	}

	label := &domain.Label{
		ID:          r.PathValue("id"),
		Name:        req.Name,
		Value:       req.Value,
		Description: req.Description,
	}
	if err := h.repo.UpdateLabel(r.Context(), label); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "label updated"})
}

func (h *Handler) HandleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.repo.DeleteLabel(r.Context(), r.PathValue("id")); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "label deleted"})
}

func (h *Handler) HandleListMenu(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	if limit <= 0 {
		var cached []domain.MenuItem
		if err := h.cache.GetJSON(r.Context(), menuCacheKey, &cached); err == nil {
			api.WriteJSON(h.logger, w, http.StatusOK, cached)
			return
		}
	}

	items, total, err := h.repo.ListMenu(r.Context(), page, limit)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	if limit <= 0 {
		if err := h.cache.SetJSON(r.Context(), menuCacheKey, items); err != nil {
			h.logger.Warn("failed to cache menu", "error", err)
		}
		api.WriteJSON(h.logger, w, http.StatusOK, items)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"menu":         items,
		"total":        total,
		"total_pages":  (total + limit - 1) / limit,
		"current_page": page,
	})
}

func (h *Handler) HandleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	price, priceErr := strconv.ParseFloat(r.FormValue("price"), 64)
	data, filename, imgErr := formImage(r)
	if name == "" || priceErr != nil || price < 0 || imgErr != nil || data == nil {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name, price and image are required: %w", domain.ErrValidation))
		return
	}

	url, err := h.uploader.Upload(r.Context(), data, filename, menuImageDir)
	if err != nil {
		h.logger.Error("failed to upload menu image", "error", err)
		api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	item := &domain.MenuItem{Name: name, Price: price, Image: url}
	if err := h.repo.CreateMenuItem(r.Context(), item); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.invalidate(r.Context(), menuCacheKey)
	h.logger.Info("menu item created", "menu_id", item.ID)
	api.WriteJSON(h.logger, w, http.StatusCreated, map[string]any{"message": "menu item created", "data": item})
}

func (h *Handler) HandleUpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	price, priceErr := strconv.ParseFloat(r.FormValue("price"), 64)
	data, filename, imgErr := formImage(r)
	if name == "" || priceErr != nil || price < 0 || imgErr != nil || data == nil {
		api.WriteDomainError(h.logger, w, fmt.Errorf("name, price and image are required: %w", domain.ErrValidation))
		return
	}

	url, err := h.uploader.Upload(r.Context(), data, filename, menuImageDir)
	if err != nil {
		h.logger.Error("failed to upload menu image", "error", err)
		api.WriteError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	item := &domain.MenuItem{ID: r.PathValue("id"), Name: name, Price: price, Image: url}
	if err := h.repo.UpdateMenuItem(r.Context(), item); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.invalidate(r.Context(), menuCacheKey)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "menu item updated"})
}

func (h *Handler) HandleDeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.repo.DeleteMenuItem(r.Context(), r.PathValue("id")); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	h.invalidate(r.Context(), menuCacheKey)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "menu item deleted"})
}

func (h *Handler) invalidate(ctx context.Context, key string) {
	if err := h.cache.Invalidate(ctx, key); err != nil {
		h.logger.Warn("failed to invalidate cache", "key", key, "error", err)
	}
}
