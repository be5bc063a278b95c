package api

import "errors"

// Errors
var (
	ErrBulkUnsupported = errors.New("bulk order read not supported")
	ErrOrderNotFound   = errors.New("order not found")
)

// OrdersResponse from GET /orders and GET /orders/batch
type OrdersResponse struct {
	Orders []APIOrder `json:"orders"`
	Total  int        `json:"total,omitempty"`
}

// SingleOrderResponse from GET /orders/{id}
type SingleOrderResponse struct {
	Order APIOrder `json:"order"`
}

// APIOrder represents an order as served by the order service.
type APIOrder struct {
	ID          string `json:"id"`
	MongoID     string `json:"_id,omitempty"` // Older deployments key orders by _id
	OrderNumber int    `json:"order_number"`
	TableNumber string `json:"table_number"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`

	Items []APIOrderItem `json:"items"`

	// Prices as strings, in dollars
	TotalDollars string `json:"total_dollars"`

	// Timestamps (ISO 8601)
	CreatedTime string `json:"created_at"`
	UpdatedTime string `json:"updated_at"`
}

// APIOrderItem is one line of an APIOrder.
type APIOrderItem struct {
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	PriceDollars string `json:"price_dollars"`
	Notes        string `json:"notes"`
}
