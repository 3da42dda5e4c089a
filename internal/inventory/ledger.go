// Package inventory guards tracked book stock. All mutating methods run
// inside the caller's checkout transaction so a failed checkout leaves no
// partial decrement behind.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vinabook/bookshop/internal/domain"
)

type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// LockBooksTx loads the given books with row locks held for the rest of
// the transaction. Concurrent checkouts touching the same books serialize
// here, which is what makes the availability pre-check trustworthy.
func (l *Ledger) LockBooksTx(ctx context.Context, tx *sql.Tx, ids []string) (map[string]*domain.Book, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, price, image, description, type, COALESCE(label_id::text, ''), quantity
		FROM books
		WHERE id = ANY($1)
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	books := make(map[string]*domain.Book, len(ids))
	for rows.Next() {
		book := &domain.Book{}
		if err := rows.Scan(&book.ID, &book.Name, &book.Price, &book.Image,
			&book.Description, &book.Type, &book.LabelID, &book.Quantity); err != nil {
			return nil, err
		}
		books[book.ID] = book
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return books, nil
}

// CheckAvailability rejects a requested quantity the locked stock cannot
// cover. Untracked books (nil quantity) always pass.
func (l *Ledger) CheckAvailability(book *domain.Book, requested int) error {
	if !book.Tracked() {
		return nil
	}
	if *book.Quantity < requested {
		return &domain.InsufficientStockError{
			BookName:  book.Name,
			Available: *book.Quantity,
			Requested: requested,
		}
	}
	return nil
}

// DecrementTx subtracts quantity from a tracked book. The WHERE clause
// re-checks the stock so the update can never push it below zero even if
// the pre-check was skipped.
func (l *Ledger) DecrementTx(ctx context.Context, tx *sql.Tx, bookID string, quantity int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE books SET quantity = quantity - $2
		WHERE id = $1 AND quantity IS NOT NULL AND quantity >= $2
	`, bookID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("stock decrement rejected for book %s", bookID)
	}

	return nil
}

// Stock reads the current quantity outside any transaction. A nil result
// means the book is untracked.
func (l *Ledger) Stock(ctx context.Context, bookID string) (*int, error) {
	var quantity *int
	err := l.db.QueryRowContext(ctx, `SELECT quantity FROM books WHERE id = $1`, bookID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return quantity, nil
}

// SetStock replaces the quantity. A nil quantity switches the book to
// untracked stock.
func (l *Ledger) SetStock(ctx context.Context, bookID string, quantity *int) error {
	result, err := l.db.ExecContext(ctx, `UPDATE books SET quantity = $2 WHERE id = $1`, bookID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}
