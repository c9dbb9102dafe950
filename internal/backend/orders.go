package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ListClients fetches a page of the client listing. Only populated filters are
// sent. A result that is not an array yields an empty page.
func (c *API) ListClients(ctx context.Context, p ListParams) (*ClientPage, error) {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Filters.ID > 0 {
		query.Set("search_id", strconv.FormatInt(p.Filters.ID, 10))
	}
	if v := strings.TrimSpace(p.Filters.Name); v != "" {
		query.Set("search_name", v)
	}
	if v := strings.TrimSpace(p.Filters.Phone); v != "" {
		query.Set("search_phone", v)
	}
	if v := strings.TrimSpace(p.Filters.Address); v != "" {
		query.Set("search_address", v)
	}

	env, err := c.do(ctx, call{
		endpoint: "orders.list",
		method:   http.MethodGet,
		path:     "/orders/clients",
		query:    query,
	})
	if err != nil {
		return nil, err
	}

	page := &ClientPage{Pagination: env.Pagination}
	trimmed := bytes.TrimSpace(env.Result)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		page.Clients = []Client{}
		return page, nil
	}
	if err := json.Unmarshal(trimmed, &page.Clients); err != nil {
		return nil, fmt.Errorf("backend: decode client listing: %w", err)
	}
	return page, nil
}

// GetClientDetail fetches a client and their orders.
func (c *API) GetClientDetail(ctx context.Context, id ID) (*ClientDetail, error) {
	env, err := c.do(ctx, call{
		endpoint: "orders.detail",
		method:   http.MethodGet,
		path:     "/orders/clients/" + strconv.FormatInt(int64(id), 10),
	})
	if err != nil {
		return nil, err
	}
	if isNull(env.Result) {
		return nil, ErrNotFound
	}
	var detail ClientDetail
	if err := json.Unmarshal(env.Result, &detail); err != nil {
		return nil, fmt.Errorf("backend: decode client detail: %w", err)
	}
	if detail.Orders == nil {
		detail.Orders = []Order{}
	}
	return &detail, nil
}

// UpdateOrder patches an order.
func (c *API) UpdateOrder(ctx context.Context, id ID, in OrderUpdate) error {
	_, err := c.do(ctx, call{
		endpoint: "orders.update",
		method:   http.MethodPatch,
		path:     "/orders/" + strconv.FormatInt(int64(id), 10),
		body:     in,
	})
	return err
}

// DeleteOrder removes an order.
func (c *API) DeleteOrder(ctx context.Context, id ID) error {
	_, err := c.do(ctx, call{
		endpoint: "orders.delete",
		method:   http.MethodDelete,
		path:     "/orders/" + strconv.FormatInt(int64(id), 10),
	})
	return err
}
