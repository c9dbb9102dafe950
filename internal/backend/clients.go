package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// LookupByPhone finds a client by the digits of their phone number. The API
// answers with an object, an array (first element wins) or null. A 404, an
// empty result or an envelope code other than 200 is ErrNotFound.
func (c *API) LookupByPhone(ctx context.Context, digits string) (*Client, error) {
	env, err := c.do(ctx, call{
		endpoint: "clients.lookup",
		method:   http.MethodGet,
		path:     "/clients/phone/" + url.PathEscape(digits),
	})
	if err != nil {
		if status := StatusOf(err); status == http.StatusNotFound || (status >= 200 && status < 300) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return decodeSingleClient(env.Result)
}

func decodeSingleClient(raw json.RawMessage) (*Client, error) {
	if isNull(raw) {
		return nil, ErrNotFound
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		var list []Client
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("backend: decode client list: %w", err)
		}
		if len(list) == 0 {
			return nil, ErrNotFound
		}
		return &list[0], nil
	}
	var client Client
	if err := json.Unmarshal(trimmed, &client); err != nil {
		return nil, fmt.Errorf("backend: decode client: %w", err)
	}
	return &client, nil
}

// CreateClient registers a new client.
func (c *API) CreateClient(ctx context.Context, in NewClient) error {
	_, err := c.do(ctx, call{
		endpoint: "clients.create",
		method:   http.MethodPost,
		path:     "/clients",
		body:     in,
	})
	return err
}

// DeleteClient removes a client.
func (c *API) DeleteClient(ctx context.Context, id ID) error {
	_, err := c.do(ctx, call{
		endpoint: "clients.delete",
		method:   http.MethodDelete,
		path:     "/clients/" + strconv.FormatInt(int64(id), 10),
	})
	return err
}
