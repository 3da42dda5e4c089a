package contact

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/vinabook/bookshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, contact *domain.Contact) error {
	contact.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, phone, message)
		VALUES ($1, $2, $3, $4)
	`, contact.ID, contact.Name, contact.Phone, contact.Message)
	return err
}

func (r *Repository) List(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, phone, message
		FROM contacts
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	contacts := []domain.Contact{}
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Message); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return contacts, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrContactNotFound
	}

	return nil
}
