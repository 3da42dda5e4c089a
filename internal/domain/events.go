package domain

import "time"

// CheckoutLine is one purchased line as it appears in the confirmation
// email and the checkout response.
type CheckoutLine struct {
	OrderID  string  `json:"order_id"`
	BookID   string  `json:"book_id"`
	BookName string  `json:"book_name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CheckoutCompletedEvent is published after the checkout transaction
// commits. Delivery is best-effort: consumers send the confirmation
// email, nothing here can roll the checkout back.
type CheckoutCompletedEvent struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email"`
	Username  string         `json:"username"`
	Lines     []CheckoutLine `json:"lines"`
	Timestamp time.Time      `json:"timestamp"`
}
