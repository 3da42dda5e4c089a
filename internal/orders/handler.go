package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/domain"
	"github.com/vinabook/bookshop/internal/email"
)

const dateLayout = "2006-01-02"

type userStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Handler exposes order management and the sales reports. Listing,
// status changes, deletion and reports are admin-only; users can read
// their own orders.
type Handler struct {
	repo     *Repository
	users    userStore
	notifier email.Notifier
	logger   *slog.Logger
}

func NewHandler(repo *Repository, users userStore, notifier email.Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		users:    users,
		notifier: notifier,
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

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, total, err := h.repo.List(r.Context(), page, limit)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	response := map[string]any{"orders": orders, "total": total}
	if limit > 0 {
		response["total_pages"] = (total + limit - 1) / limit
		response["current_page"] = page
	}

	api.WriteJSON(h.logger, w, http.StatusOK, response)
}

// HandleListMine returns the caller's own orders, newest first.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		api.WriteDomainError(h.logger, w, domain.ErrUnauthorized)
		return
	}

	order, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	// Non-admins can only read their own orders.
	if order.UserID != userID {
		caller, err := h.users.GetByID(r.Context(), userID)
		if err != nil {
			api.WriteDomainError(h.logger, w, err)
			return
		}
		if caller.Role != domain.RoleAdmin {
			api.WriteDomainError(h.logger, w, domain.ErrForbidden)
			return
		}
	}

	api.WriteJSON(h.logger, w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// HandleUpdateStatus persists the new status and then emails the order's
// owner. The email is best-effort: a delivery failure never rolls the
// status change back.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidOrderStatus(req.Status) {
		api.WriteDomainError(h.logger, w, fmt.Errorf("invalid order status %q: %w", req.Status, domain.ErrValidation))
		return
	}

	order, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	owner, err := h.users.GetByID(r.Context(), order.UserID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), order.ID, req.Status); err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	msg := email.RenderStatusUpdate(owner.Username, order.ID, req.Status)
	if err := h.notifier.Send(r.Context(), owner.Email, msg.Subject, msg.Text, msg.HTML); err != nil {
		h.logger.Warn("failed to send status email", "order_id", order.ID, "error", err)
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", req.Status)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "order status updated"})
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

	h.logger.Info("order deleted", "order_id", id)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "order deleted"})
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start_date"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be YYYY-MM-DD: %w", domain.ErrValidation)
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end_date"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date must be YYYY-MM-DD: %w", domain.ErrValidation)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date must not precede start_date: %w", domain.ErrValidation)
	}
	return start, end, nil
}

func (h *Handler) HandleBestSellers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	sellers, err := h.repo.BestSellers(r.Context(), start, end)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, sellers)
}

func (h *Handler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	counts, err := h.repo.VolumeOverTime(r.Context(), start, end)
	if err != nil {
		api.WriteDomainError(h.logger, w, err)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, counts)
}
