package domain

type BookType string

const (
	BookTypeNew  BookType = "new"
	BookTypeSale BookType = "sale"
)

// Book is a catalog item. Quantity is nil for untracked stock: such books
// are always purchasable and checkout never decrements them.
type Book struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Type        BookType `json:"type"`
	LabelID     string   `json:"label_id"`
	Quantity    *int     `json:"quantity"`
}

// Tracked reports whether the book is under stock control.
func (b *Book) Tracked() bool {
	return b.Quantity != nil
}

type Label struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// MenuItem is a café menu entry. It is catalog-only and never passes
// through checkout.
type MenuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}
