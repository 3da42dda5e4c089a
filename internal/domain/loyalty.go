package domain

// Loyalty levels are ordered: lower value means a better tier.
const (
	LevelVIP      = 0
	LevelFamiliar = 1
	LevelNormal   = 2
)

// PointPurchase is the singleton cumulative point balance per user,
// created lazily on first purchase.
type PointPurchase struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Point  int    `json:"point"`
}

// LevelUser is the derived tier row, recomputed after every accrual.
type LevelUser struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Level  int    `json:"level"`
}
