package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rickgao/ordersync/internal/model"
	"github.com/rickgao/ordersync/internal/querycache"
)

// GetOrders fetches many orders in bulk. Ids the server does not know are
// absent from the result. Servers without the bulk endpoint yield
// ErrBulkUnsupported.
func (c *Client) GetOrders(ctx context.Context, ids []string) ([]model.Order, error) {
	var all []model.Order

	for start := 0; start < len(ids); start += c.maxBatch {
		end := min(start+c.maxBatch, len(ids))

		query := url.Values{}
		query.Set("ids", strings.Join(ids[start:end], ","))

		var resp OrdersResponse
		if err := c.get(ctx, "/orders/batch", query, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				switch apiErr.StatusCode {
				case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
					return nil, fmt.Errorf("%w: %v", ErrBulkUnsupported, err)
				}
			}
			return nil, fmt.Errorf("get orders: %w", err)
		}

		all = append(all, ToModels(resp.Orders)...)
	}

	return all, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var resp SingleOrderResponse
	if err := c.get(ctx, "/orders/"+url.PathEscape(id), nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return model.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return model.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}

	if resp.Order.OrderID() == "" {
		return model.Order{}, fmt.Errorf("%w: %s (empty body)", ErrOrderNotFound, id)
	}
	return resp.Order.ToModel(), nil
}

// ListOrders fetches one page of orders for a cached view.
func (c *Client) ListOrders(ctx context.Context, params querycache.Params) ([]model.Order, error) {
	var resp OrdersResponse
	if err := c.get(ctx, "/orders", params.Query(), &resp); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return ToModels(resp.Orders), nil
}
