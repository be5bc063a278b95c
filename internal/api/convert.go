package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/ordersync/internal/model"
)

// DollarsToCents converts a dollar string to cents.
// "12.30" -> 1230, "4.5" -> 450, "0.005" -> 1
// Returns 0 for empty or invalid input.
func DollarsToCents(dollars string) int64 {
	dollars = strings.TrimSpace(dollars)
	if dollars == "" {
		return 0
	}

	f, err := strconv.ParseFloat(dollars, 64)
	if err != nil {
		return 0
	}

	if f < 0 {
		return int64(f*100 - 0.5)
	}
	return int64(f*100 + 0.5)
}

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}

// OrderID returns the order's id, falling back to _id.
func (o *APIOrder) OrderID() string {
	if o.ID != "" {
		return o.ID
	}
	return o.MongoID
}

// ToModel converts an APIOrder to model.Order.
func (o *APIOrder) ToModel() model.Order {
	var items []model.OrderItem
	if len(o.Items) > 0 {
		items = make([]model.OrderItem, len(o.Items))
		for i, it := range o.Items {
			items[i] = model.OrderItem{
				MenuItemID: it.MenuItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				PriceCents: DollarsToCents(it.PriceDollars),
				Notes:      it.Notes,
			}
		}
	}

	return model.Order{
		ID:          o.OrderID(),
		Number:      o.OrderNumber,
		TableNumber: o.TableNumber,
		Status:      strings.ToLower(o.Status),
		Items:       items,
		TotalCents:  DollarsToCents(o.TotalDollars),
		Notes:       o.Notes,
		CreatedAt:   ParseTimestamp(o.CreatedTime),
		UpdatedAt:   ParseTimestamp(o.UpdatedTime),
	}
}

// ToModels converts a slice of APIOrder, skipping entries without an id.
func ToModels(orders []APIOrder) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for i := range orders {
		if orders[i].OrderID() == "" {
			continue
		}
		out = append(out, orders[i].ToModel())
	}
	return out
}
