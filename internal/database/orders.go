package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rickgao/ordersync/internal/model"
	"github.com/rickgao/ordersync/internal/querycache"
)

// ErrOrderNotFound is returned by GetOrder when no row has the id.
var ErrOrderNotFound = errors.New("order not found")

// Querier is the subset of *pgxpool.Pool used by OrderReader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const orderColumns = `id, order_number, table_number, status, items, total_cents, notes, created_at, updated_at`

// DefaultPageSize applies to list queries that do not set one.
const DefaultPageSize = 50

var sortClauses = map[string]string{
	"":        "created_at DESC, id",
	"newest":  "created_at DESC, id",
	"oldest":  "created_at ASC, id",
	"number":  "order_number ASC, id",
	"-number": "order_number DESC, id",
	"updated": "updated_at DESC, id",
}

// dbItem is the JSON shape of one entry in orders.items.
type dbItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
	Notes      string `json:"notes,omitempty"`
}

// OrderReader reads orders from the orders table.
type OrderReader struct {
	db     Querier
	logger *slog.Logger
}

// NewOrderReader creates an OrderReader.
func NewOrderReader(db Querier, logger *slog.Logger) *OrderReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderReader{
		db:     db,
		logger: logger.With("component", "order_reader"),
	}
}

// GetOrders returns the orders with the given ids in a single round trip.
// Unknown ids are absent from the result; order is unspecified.
func (r *OrderReader) GetOrders(ctx context.Context, ids []string) ([]model.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = ANY($1)`
	orders, err := r.query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	r.logger.Debug("bulk read", "requested", len(ids), "found", len(orders))
	return orders, nil
}

// GetOrder returns one order.
func (r *OrderReader) GetOrder(ctx context.Context, id string) (model.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	orders, err := r.query(ctx, sql, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if len(orders) == 0 {
		return model.Order{}, fmt.Errorf("get order %s: %w", id, ErrOrderNotFound)
	}
	return orders[0], nil
}

// ListOrders returns one page of the list view described by params.
func (r *OrderReader) ListOrders(ctx context.Context, params querycache.Params) ([]model.Order, error) {
	sql, args := listQuery(params)
	orders, err := r.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (r *OrderReader) query(ctx context.Context, sql string, args ...any) ([]model.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o                    model.Order
		number               int32
		table, notes         pgtype.Text
		items                []byte
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&o.ID, &number, &table, &o.Status, &items, &o.TotalCents, &notes, &createdAt, &updatedAt)
	if err != nil {
		return model.Order{}, fmt.Errorf("scan order: %w", err)
	}

	o.Number = int(number)
	o.TableNumber = table.String
	o.Notes = notes.String
	o.CreatedAt = createdAt.UnixMicro()
	o.UpdatedAt = updatedAt.UnixMicro()

	if len(items) > 0 {
		var raw []dbItem
		if err := json.Unmarshal(items, &raw); err != nil {
			return model.Order{}, fmt.Errorf("order %s items: %w", o.ID, err)
		}
		o.Items = make([]model.OrderItem, len(raw))
		for i, it := range raw {
			o.Items[i] = model.OrderItem(it)
		}
	}

	return o, nil
}

// listQuery builds the SELECT for a list view. Filters mirror
// querycache.Params.Admits so fetched pages and appended orders agree.
func listQuery(p querycache.Params) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch p.Status {
	case "":
	case querycache.StatusOpen:
		where = append(where, "status = ANY("+arg(model.OpenStatuses)+")")
	default:
		where = append(where, "status = "+arg(p.Status))
	}

	if s := strings.TrimSpace(p.Search); s != "" {
		n := arg("%" + escapeLike(s) + "%")
		where = append(where, "(id ILIKE "+n+
			" OR order_number::text ILIKE "+n+
			" OR COALESCE(table_number, '') ILIKE "+n+
			" OR COALESCE(notes, '') ILIKE "+n+
			" OR EXISTS (SELECT 1 FROM jsonb_array_elements(items) it WHERE it->>'name' ILIKE "+n+"))")
	}

	var b strings.Builder
	b.WriteString("SELECT " + orderColumns + " FROM orders")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	order, ok := sortClauses[p.Sort]
	if !ok {
		order = sortClauses[""]
	}
	b.WriteString(" ORDER BY " + order)

	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := max(p.Page, 1)
	b.WriteString(" LIMIT " + arg(size) + " OFFSET " + arg((page-1)*size))

	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
