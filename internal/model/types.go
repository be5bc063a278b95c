package model

import "slices"

// Order statuses as reported by the order service.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusServed    = "served"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Order is the last-known full representation of one order.
// Snapshots are replaced wholesale, never patched field by field.
type Order struct {
	ID          string      `json:"id"`
	Number      int         `json:"number"`       // Human-facing ticket number
	TableNumber string      `json:"table_number"` // Empty for takeaway
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items"`
	TotalCents  int64       `json:"total_cents"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   int64       `json:"created_at"` // µs since epoch
	UpdatedAt   int64       `json:"updated_at"` // µs since epoch
}

// OrderItem is a single line on an order.
type OrderItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
	Notes      string `json:"notes,omitempty"`
}

// Equal reports whether two snapshots are identical.
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID &&
		o.Number == other.Number &&
		o.TableNumber == other.TableNumber &&
		o.Status == other.Status &&
		o.TotalCents == other.TotalCents &&
		o.Notes == other.Notes &&
		o.CreatedAt == other.CreatedAt &&
		o.UpdatedAt == other.UpdatedAt &&
		slices.Equal(o.Items, other.Items)
}

// OpenStatuses are the statuses of orders still being worked by the kitchen or floor.
var OpenStatuses = []string{StatusPending, StatusPreparing, StatusReady, StatusServed}

// IsOpen returns true while the order is still being worked by the kitchen or floor.
func (o Order) IsOpen() bool {
	return slices.Contains(OpenStatuses, o.Status)
}

// IDs returns the ids of the given orders in order.
func IDs(orders []Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
