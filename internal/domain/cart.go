package domain

type CartStatus string

const (
	CartStatusPending   CartStatus = "pending"
	CartStatusCompleted CartStatus = "completed"
)

// CartItem is one pending book/quantity line for a user. At most one
// pending line exists per (user, book) pair; adding the same book again
// increments the quantity instead of inserting a second line.
type CartItem struct {
	ID       string     `json:"id"`
	UserID   string     `json:"user_id"`
	BookID   string     `json:"book_id"`
	Status   CartStatus `json:"status"`
	Quantity int        `json:"quantity"`

	// Book is populated on read paths that join the catalog.
	Book *Book `json:"book,omitempty"`
}
