package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/vinabook/bookshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListBooks returns a page of books ordered by name, plus the total count.
// limit <= 0 disables paging.
func (r *Repository) ListBooks(ctx context.Context, page, limit int) ([]domain.Book, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, price, image, description, type, COALESCE(label_id::text, ''), quantity
		FROM books
		ORDER BY name
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

	books := []domain.Book{}
	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(&book.ID, &book.Name, &book.Price, &book.Image,
			&book.Description, &book.Type, &book.LabelID, &book.Quantity); err != nil {
			return nil, 0, err
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return books, total, nil
}

func (r *Repository) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	book := &domain.Book{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, image, description, type, COALESCE(label_id::text, ''), quantity
		FROM books
		WHERE id = $1
	`, id).Scan(&book.ID, &book.Name, &book.Price, &book.Image,
		&book.Description, &book.Type, &book.LabelID, &book.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (r *Repository) CreateBook(ctx context.Context, book *domain.Book) error {
	book.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (id, name, price, image, description, type, label_id, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8)
	`, book.ID, book.Name, book.Price, book.Image, book.Description, book.Type, book.LabelID, book.Quantity)
	return err
}

func (r *Repository) UpdateBook(ctx context.Context, book *domain.Book) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET name = $2, price = $3, image = $4, description = $5, type = $6,
		    label_id = NULLIF($7, '')::uuid, quantity = $8
		WHERE id = $1
	`, book.ID, book.Name, book.Price, book.Image, book.Description, book.Type, book.LabelID, book.Quantity)
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

func (r *Repository) DeleteBook(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
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

func (r *Repository) ListLabels(ctx context.Context, page, limit int) ([]domain.Label, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM labels`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, value, COALESCE(description, '')
		FROM labels
		ORDER BY name
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

	labels := []domain.Label{}
	for rows.Next() {
		var label domain.Label
		if err := rows.Scan(&label.ID, &label.Name, &label.Value, &label.Description); err != nil {
			return nil, 0, err
		}
		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return labels, total, nil
}

func (r *Repository) CreateLabel(ctx context.Context, label *domain.Label) error {
	label.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO labels (id, name, value, description)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`, label.ID, label.Name, label.Value, label.Description)
	return err
}

func (r *Repository) UpdateLabel(ctx context.Context, label *domain.Label) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE labels SET name = $2, value = $3, description = NULLIF($4, '')
		WHERE id = $1
	`, label.ID, label.Name, label.Value, label.Description)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrLabelNotFound
	}

	return nil
}

func (r *Repository) DeleteLabel(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM labels WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrLabelNotFound
	}

	return nil
}

func (r *Repository) ListMenu(ctx context.Context, page, limit int) ([]domain.MenuItem, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, price, image
		FROM menu_items
		ORDER BY name
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

	items := []domain.MenuItem{}
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Image); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *Repository) CreateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	item.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, name, price, image)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.Name, item.Price, item.Image)
	return err
}

func (r *Repository) UpdateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE menu_items SET name = $2, price = $3, image = $4
		WHERE id = $1
	`, item.ID, item.Name, item.Price, item.Image)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrMenuItemNotFound
	}

	return nil
}

func (r *Repository) DeleteMenuItem(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrMenuItemNotFound
	}

	return nil
}
