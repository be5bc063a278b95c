package querycache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/ordersync/internal/model"
)

// Errors
var (
	ErrNoLoader = errors.New("no loader registered for namespace")
)

// Namespace groups every view over the same collection.
type Namespace string

// OrdersNamespace is the namespace of order list views.
const OrdersNamespace Namespace = "orders"

// StatusOpen is a filter value matching every order that is not yet paid or cancelled.
const StatusOpen = "open"

// Params identifies one view within a namespace.
type Params struct {
	Status   string `json:"status,omitempty"` // Exact status, StatusOpen, or empty for all
	Search   string `json:"search,omitempty"` // Case-insensitive match on number, table, notes and item names
	Sort     string `json:"sort,omitempty"`
	Page     int    `json:"page,omitempty"` // 1-based; 0 is treated as 1
	PageSize int    `json:"page_size,omitempty"`
}

// Key returns the canonical encoding of p. Equal params have equal keys.
func (p Params) Key() string {
	v := url.Values{}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		v.Set("search", s)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	v.Set("page", strconv.Itoa(max(p.Page, 1)))
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return v.Encode()
}

// Query returns p as URL query values for the list endpoint.
func (p Params) Query() url.Values {
	v, _ := url.ParseQuery(p.Key())
	return v
}

// Admits reports whether an order absent from the view may be appended to it.
// Only the first page admits new orders, and the order must pass the view's
// status and search filters.
func (p Params) Admits(o model.Order) bool {
	if p.Page > 1 {
		return false
	}

	switch p.Status {
	case "":
	case StatusOpen:
		if !o.IsOpen() {
			return false
		}
	default:
		if o.Status != p.Status {
			return false
		}
	}

	return matchesSearch(o, p.Search)
}

func matchesSearch(o model.Order, search string) bool {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return true
	}

	fields := []string{o.ID, strconv.Itoa(o.Number), o.TableNumber, o.Notes}
	for _, it := range o.Items {
		fields = append(fields, it.Name)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// View is one cached result.
type View struct {
	Namespace Namespace
	Params    Params
	Orders    []model.Order
	LoadedAt  time.Time // When the loader last produced this view
	UpdatedAt time.Time // When the view was last written, by load or Replace
}

// Loader produces a fresh view for params.
type Loader func(ctx context.Context, params Params) ([]model.Order, error)

// InvalidateHook is called after a namespace is invalidated with the params
// of the views that were dropped.
type InvalidateHook func(ns Namespace, dropped []Params)

// Config holds cache configuration.
type Config struct {
	TTL             time.Duration // View lifetime; 0 = no expiry
	CleanupInterval time.Duration // Expired-entry sweep; 0 = no background sweep
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// Stats contains cache statistics.
type Stats struct {
	Views         int
	Hits          int64
	Misses        int64
	Loads         int64
	LoadErrors    int64
	Replaces      int64
	StaleReplaces int64 // Replace calls for views that no longer exist
	Invalidations int64
	Removed       int64 // Views expired or deleted
}

func key(ns Namespace, p Params) string {
	return fmt.Sprintf("%s|%s", ns, p.Key())
}
