package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vinabook/bookshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser returns the user's pending cart lines with their books joined.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.book_id, c.status, c.quantity,
		       b.id, b.name, b.price, b.image, b.description, b.type,
		       COALESCE(b.label_id::text, ''), b.quantity
		FROM carts c
		JOIN books b ON b.id = c.book_id
		WHERE c.user_id = $1 AND c.status = 'pending'
		ORDER BY b.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		var book domain.Book
		if err := rows.Scan(&item.ID, &item.UserID, &item.BookID, &item.Status, &item.Quantity,
			&book.ID, &book.Name, &book.Price, &book.Image, &book.Description, &book.Type,
			&book.LabelID, &book.Quantity); err != nil {
			return nil, err
		}
		item.Book = &book
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// AddItem inserts a pending line, or bumps the quantity of the existing
// pending line for the same book. The partial unique index on
// (user_id, book_id) WHERE status = 'pending' makes the upsert atomic.
func (r *Repository) AddItem(ctx context.Context, userID, bookID string, quantity int) (*domain.CartItem, error) {
	item := &domain.CartItem{
		UserID:   userID,
		BookID:   bookID,
		Status:   domain.CartStatusPending,
		Quantity: quantity,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, book_id, status, quantity)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (user_id, book_id) WHERE status = 'pending'
		DO UPDATE SET quantity = carts.quantity + EXCLUDED.quantity
		RETURNING id, quantity
	`, uuid.New().String(), userID, bookID, quantity).Scan(&item.ID, &item.Quantity)
	if err != nil {
		var pqErr *pq.Error
		// 23503 is a foreign key violation: the book does not exist.
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}

	return item, nil
}

// UpdateQuantity sets the quantity of a pending line. A quantity below one
// removes the line instead.
func (r *Repository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	if quantity < 1 {
		return r.Delete(ctx, userID, itemID)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE carts SET quantity = $3
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
	`, itemID, userID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, userID, itemID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM carts
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
	`, itemID, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return nil
}

// SelectPendingTx loads the given pending lines inside the checkout
// transaction, with row locks held until commit. Lines that are missing,
// settled or owned by another user are silently absent from the result;
// a concurrent payment of the same lines blocks here and then sees none.
func (r *Repository) SelectPendingTx(ctx context.Context, tx *sql.Tx, userID string, ids []string) ([]domain.CartItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, book_id, status, quantity
		FROM carts
		WHERE user_id = $1 AND status = 'pending' AND id = ANY($2)
		FOR UPDATE
	`, userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.BookID, &item.Status, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// SettleTx removes the paid lines. Deleting them frees the (user, book)
// slot in the partial unique index for future carts and keeps the table
// from accumulating settled rows.
func (r *Repository) SettleTx(ctx context.Context, tx *sql.Tx, ids []string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM carts
		WHERE id = ANY($1)
	`, pq.Array(ids))
	return err
}
