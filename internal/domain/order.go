package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// ValidOrderStatus reports whether s is one of the persistable statuses.
// There is no enforced transition graph: any status may follow any other.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

// Order is one purchased line item. Checkout fans out one order per cart
// line, so downstream status updates and emails stay per-book.
type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	BookID     string      `json:"book_id"`
	ClientName string      `json:"client_name"`
	Phone      string      `json:"phone"`
	Address    string      `json:"address"`
	Note       string      `json:"note,omitempty"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`

	Detail *OrderDetail `json:"detail,omitempty"`
}

// OrderDetail captures quantity and the unit price at purchase time.
// The price is a snapshot: later catalog edits never touch it.
type OrderDetail struct {
	ID       string  `json:"id"`
	OrderID  string  `json:"order_id"`
	BookID   string  `json:"book_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// RecipientInfo is the delivery information attached to every order
// created by one checkout.
type RecipientInfo struct {
	ClientName string `json:"client_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Note       string `json:"note,omitempty"`
}

// BestSeller is one row of the top-selling-books report.
type BestSeller struct {
	Book          Book   `json:"book"`
	Label         *Label `json:"label,omitempty"`
	TotalQuantity int    `json:"total_quantity"`
}

// DailyOrderCount is one calendar day of the order-volume report.
// Days with no orders are present with a zero count.
type DailyOrderCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
