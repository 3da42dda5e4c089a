// Package loyalty accrues purchase points and keeps the derived customer
// tier in step. One point per book purchased; the tier is recomputed from
// the cumulative total after every accrual.
package loyalty

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/vinabook/bookshop/internal/domain"
)

type Engine struct {
	db *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// LevelFor maps a cumulative point total to a tier. Thirty points or more
// is VIP, twenty or more is familiar, anything below stays normal.
func LevelFor(points int) int {
	switch {
	case points >= 30:
		return domain.LevelVIP
	case points >= 20:
		return domain.LevelFamiliar
	default:
		return domain.LevelNormal
	}
}

// AccrueTx adds quantity points to the user's balance and upserts the tier
// derived from the new total. It runs inside the checkout transaction so a
// failed checkout accrues nothing.
func (e *Engine) AccrueTx(ctx context.Context, tx *sql.Tx, userID string, quantity int) (points, level int, err error) {
	err = tx.QueryRowContext(ctx, `
		INSERT INTO point_purchases (id, user_id, point)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET point = point_purchases.point + EXCLUDED.point
		RETURNING point
	`, uuid.New().String(), userID, quantity).Scan(&points)
	if err != nil {
		return 0, 0, err
	}

	level = LevelFor(points)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO level_users (id, user_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET level = EXCLUDED.level
	`, uuid.New().String(), userID, level)
	if err != nil {
		return 0, 0, err
	}

	return points, level, nil
}

// Summary is the read path: users with no purchases yet report zero points
// at the normal tier.
func (e *Engine) Summary(ctx context.Context, userID string) (points, level int, err error) {
	err = e.db.QueryRowContext(ctx, `SELECT point FROM point_purchases WHERE user_id = $1`, userID).Scan(&points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.LevelNormal, nil
		}
		return 0, 0, err
	}

	err = e.db.QueryRowContext(ctx, `SELECT level FROM level_users WHERE user_id = $1`, userID).Scan(&level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return points, LevelFor(points), nil
		}
		return 0, 0, err
	}

	return points, level, nil
}
