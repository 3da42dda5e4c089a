// Package checkout runs the purchase workflow: stock validation, loyalty
// accrual, order fan-out and cart settlement, all inside one database
// transaction. Customer notification happens strictly after commit.
package checkout

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vinabook/bookshop/internal/cart"
	"github.com/vinabook/bookshop/internal/domain"
	"github.com/vinabook/bookshop/internal/email"
	"github.com/vinabook/bookshop/internal/inventory"
	"github.com/vinabook/bookshop/internal/loyalty"
	"github.com/vinabook/bookshop/internal/messaging"
	"github.com/vinabook/bookshop/internal/orders"
)

var meter = otel.Meter("bookshop/checkout")

type userStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Service owns the checkout workflow. The producer is optional: when it is
// nil, confirmation emails are sent inline instead of through the worker.
type Service struct {
	db       *sql.DB
	users    userStore
	carts    *cart.Repository
	ledger   *inventory.Ledger
	loyalty  *loyalty.Engine
	orders   *orders.Repository
	notifier email.Notifier
	producer *messaging.Producer
	logger   *slog.Logger

	checkouts metric.Int64Counter
	booksSold metric.Int64Counter
}

func NewService(
	db *sql.DB,
	users userStore,
	carts *cart.Repository,
	ledger *inventory.Ledger,
	engine *loyalty.Engine,
	orderRepo *orders.Repository,
	notifier email.Notifier,
	producer *messaging.Producer,
	logger *slog.Logger,
) (*Service, error) {
	checkouts, err := meter.Int64Counter("checkout.completed",
		metric.WithDescription("Number of completed checkouts"))
	if err != nil {
		return nil, err
	}

	booksSold, err := meter.Int64Counter("checkout.books_sold",
		metric.WithDescription("Number of books sold across completed checkouts"))
	if err != nil {
		return nil, err
	}

	return &Service{
		db:        db,
		users:     users,
		carts:     carts,
		ledger:    ledger,
		loyalty:   engine,
		orders:    orderRepo,
		notifier:  notifier,
		producer:  producer,
		logger:    logger,
		checkouts: checkouts,
		booksSold: booksSold,
	}, nil
}

// purchaseLine is one book/quantity pair entering the workflow, either from
// a cart line or a direct order.
type purchaseLine struct {
	bookID   string
	quantity int
}

// CheckoutCart pays for the given pending cart lines. Lines that are not
// pending, or belong to another user, are ignored; an empty remaining set
// fails with ErrCartEmpty before anything is written.
func (s *Service) CheckoutCart(ctx context.Context, userID string, cartIDs []string, recipient domain.RecipientInfo) ([]domain.CheckoutLine, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	items, err := s.carts.SelectPendingTx(ctx, tx, userID, cartIDs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	lines := make([]purchaseLine, 0, len(items))
	settled := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, purchaseLine{bookID: item.BookID, quantity: item.Quantity})
		settled = append(settled, item.ID)
	}

	result, err := s.fulfill(ctx, tx, user, lines, recipient)
	if err != nil {
		return nil, err
	}

	if err := s.carts.SettleTx(ctx, tx, settled); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, user, result, "cart")
	return result, nil
}

// CheckoutDirect buys a single book without going through the cart.
func (s *Service) CheckoutDirect(ctx context.Context, userID, bookID string, quantity int, recipient domain.RecipientInfo) ([]domain.CheckoutLine, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := s.fulfill(ctx, tx, user, []purchaseLine{{bookID: bookID, quantity: quantity}}, recipient)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, user, result, "direct")
	return result, nil
}

// fulfill is the shared transactional core. It locks every book up front,
// verifies all requested quantities against the locked stock, and only then
// starts writing: loyalty accrual, order plus detail, stock decrement. Any
// failure aborts the whole transaction with nothing persisted.
func (s *Service) fulfill(ctx context.Context, tx *sql.Tx, user *domain.User, lines []purchaseLine, recipient domain.RecipientInfo) ([]domain.CheckoutLine, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.bookID)
	}

	books, err := s.ledger.LockBooksTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	// All-or-nothing: reject the entire checkout before any write.
	for _, line := range lines {
		book, ok := books[line.bookID]
		if !ok {
			return nil, domain.ErrBookNotFound
		}
		if err := s.ledger.CheckAvailability(book, line.quantity); err != nil {
			return nil, err
		}
	}

	result := make([]domain.CheckoutLine, 0, len(lines))
	for _, line := range lines {
		book := books[line.bookID]

		if _, _, err := s.loyalty.AccrueTx(ctx, tx, user.ID, line.quantity); err != nil {
			return nil, fmt.Errorf("accrue loyalty points: %w", err)
		}

		order, err := s.orders.CreateWithDetailTx(ctx, tx, user.ID, book.ID, recipient, line.quantity, book.Price)
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}

		if book.Tracked() {
			if err := s.ledger.DecrementTx(ctx, tx, book.ID, line.quantity); err != nil {
				return nil, fmt.Errorf("decrement stock: %w", err)
			}
		}

		result = append(result, domain.CheckoutLine{
			OrderID:  order.ID,
			BookID:   book.ID,
			BookName: book.Name,
			Quantity: line.quantity,
			Price:    book.Price,
		})
	}

	return result, nil
}

// afterCommit records metrics and kicks off the confirmation email. Nothing
// in here can undo the committed checkout.
func (s *Service) afterCommit(ctx context.Context, user *domain.User, lines []domain.CheckoutLine, kind string) {
	sold := 0
	for _, line := range lines {
		sold += line.Quantity
	}

	attrs := metric.WithAttributes(attribute.String("checkout.kind", kind))
	s.checkouts.Add(ctx, 1, attrs)
	s.booksSold.Add(ctx, int64(sold), attrs)

	s.logger.Info("checkout completed",
		"user_id", user.ID, "kind", kind, "orders", len(lines), "books_sold", sold)

	s.notify(ctx, user, lines)
}

func (s *Service) notify(ctx context.Context, user *domain.User, lines []domain.CheckoutLine) {
	if s.producer != nil {
		event := domain.CheckoutCompletedEvent{
			UserID:    user.ID,
			Email:     user.Email,
			Username:  user.Username,
			Lines:     lines,
			Timestamp: time.Now().UTC(),
		}
		err := s.producer.Publish(ctx, user.ID, event)
		if err == nil {
			return
		}
		s.logger.Warn("failed to publish checkout event, sending email inline", "error", err)
	}

	msg, err := email.RenderConfirmation(user.Username, lines)
	if err != nil {
		s.logger.Error("failed to render confirmation email", "error", err)
		return
	}
	if err := s.notifier.Send(ctx, user.Email, msg.Subject, msg.Text, msg.HTML); err != nil {
		s.logger.Warn("failed to send confirmation email", "user_id", user.ID, "error", err)
	}
}
