package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vinabook/bookshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithDetailTx inserts a pending order and its single detail line
// inside the checkout transaction. The detail price is a snapshot of the
// book's price at purchase time.
func (r *Repository) CreateWithDetailTx(ctx context.Context, tx *sql.Tx, userID, bookID string, recipient domain.RecipientInfo, quantity int, price float64) (*domain.Order, error) {
	order := &domain.Order{
		ID:         uuid.New().String(),
		UserID:     userID,
		BookID:     bookID,
		ClientName: recipient.ClientName,
		Phone:      recipient.Phone,
		Address:    recipient.Address,
		Note:       recipient.Note,
		Status:     domain.OrderStatusPending,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, user_id, book_id, client_name, phone, address, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), 'pending')
		RETURNING created_at
	`, order.ID, order.UserID, order.BookID, order.ClientName, order.Phone, order.Address, order.Note).Scan(&order.CreatedAt)
	if err != nil {
		return nil, err
	}

	order.Detail = &domain.OrderDetail{
		ID:       uuid.New().String(),
		OrderID:  order.ID,
		BookID:   bookID,
		Quantity: quantity,
		Price:    price,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_details (id, order_id, book_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`, order.Detail.ID, order.Detail.OrderID, order.Detail.BookID, order.Detail.Quantity, order.Detail.Price)
	if err != nil {
		return nil, err
	}

	return order, nil
}

const orderColumns = `
	o.id, o.user_id, o.book_id, o.client_name, o.phone, o.address,
	COALESCE(o.note, ''), o.status, o.created_at,
	d.id, d.quantity, d.price
`

func scanOrder(scanner interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{Detail: &domain.OrderDetail{}}
	err := scanner.Scan(&order.ID, &order.UserID, &order.BookID, &order.ClientName,
		&order.Phone, &order.Address, &order.Note, &order.Status, &order.CreatedAt,
		&order.Detail.ID, &order.Detail.Quantity, &order.Detail.Price)
	if err != nil {
		return nil, err
	}
	order.Detail.OrderID = order.ID
	order.Detail.BookID = order.BookID
	return order, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN order_details d ON d.order_id = o.id
		WHERE o.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// List returns a page of orders, newest first. limit <= 0 disables paging.
func (r *Repository) List(ctx context.Context, page, limit int) ([]domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN order_details d ON d.order_id = o.id
		ORDER BY o.created_at DESC
	`
	args := []any{}
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, (page-1)*limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	result := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN order_details d ON d.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// BestSellers ranks books by units sold over the closed date interval
// [start, end], top ten only.
func (r *Repository) BestSellers(ctx context.Context, start, end time.Time) ([]domain.BestSeller, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.price, b.image, b.description, b.type,
		       COALESCE(b.label_id::text, ''), b.quantity,
		       COALESCE(l.id::text, ''), COALESCE(l.name, ''), COALESCE(l.value, ''),
		       SUM(d.quantity) AS total_quantity
		FROM order_details d
		JOIN orders o ON o.id = d.order_id
		JOIN books b ON b.id = d.book_id
		LEFT JOIN labels l ON l.id = b.label_id
		WHERE o.created_at >= $1::date AND o.created_at < $2::date + INTERVAL '1 day'
		GROUP BY b.id, l.id
		ORDER BY total_quantity DESC
		LIMIT 10
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sellers := []domain.BestSeller{}
	for rows.Next() {
		var s domain.BestSeller
		var label domain.Label
		if err := rows.Scan(&s.Book.ID, &s.Book.Name, &s.Book.Price, &s.Book.Image,
			&s.Book.Description, &s.Book.Type, &s.Book.LabelID, &s.Book.Quantity,
			&label.ID, &label.Name, &label.Value, &s.TotalQuantity); err != nil {
			return nil, err
		}
		if label.ID != "" {
			s.Label = &label
		}
		sellers = append(sellers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sellers, nil
}

// VolumeOverTime counts orders per calendar day across [start, end].
// Days with no orders appear with a zero count.
func (r *Repository) VolumeOverTime(ctx context.Context, start, end time.Time) ([]domain.DailyOrderCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), COALESCE(COUNT(o.id), 0)
		FROM generate_series($1::date, $2::date, '1 day') AS day
		LEFT JOIN orders o ON o.created_at >= day AND o.created_at < day + INTERVAL '1 day'
		GROUP BY day
		ORDER BY day
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := []domain.DailyOrderCount{}
	for rows.Next() {
		var c domain.DailyOrderCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
