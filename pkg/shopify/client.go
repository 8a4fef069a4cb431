package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sudhir1041/nursery-orders/pkg/config"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/platform"
)

const (
	DefaultLimit = 50
	MaxLimit     = 250

	accessTokenHeader = "X-Shopify-Access-Token"
)

// Client talks to the Shopify Admin REST API.
type Client struct {
	transport *platform.Transport
}

// NewClient validates cfg and builds a client rooted at
// https://{shop}/admin/api/{version}/. Extra transport options (policy,
// sleeper, metrics) are applied after the config-derived ones.
func NewClient(cfg config.ShopifyConfig, opts ...platform.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("https://%s/admin/api/%s", cfg.ShopDomain, cfg.APIVersion)
	token := cfg.AccessToken

	base := []platform.Option{
		platform.WithTimeout(cfg.Timeout),
		platform.WithRateLimit(cfg.RequestsPerSecond, 0),
		platform.WithAuthorizer(func(req *http.Request) {
			req.Header.Set(accessTokenHeader, token)
		}),
	}
	return &Client{transport: platform.NewTransport("shopify", baseURL, append(base, opts...)...)}, nil
}

// GetOrder fetches one order by id and returns the raw order object.
func (c *Client) GetOrder(ctx context.Context, id int64) (json.RawMessage, error) {
	resp, err := c.transport.Do(ctx, platform.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("orders/%d.json", id),
	})
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Order json.RawMessage `json:"order"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	if len(envelope.Order) == 0 || string(envelope.Order) == "null" {
		return nil, pkgerrors.New(pkgerrors.CodeData, "shopify response missing order")
	}
	return envelope.Order, nil
}

// ListParams selects one since_id batch.
type ListParams struct {
	SinceID int64
	Limit   int
	Status  string
}

// OrderPage is one since_id batch in ascending id order.
type OrderPage struct {
	Orders      []json.RawMessage
	NextSinceID int64
}

// ListOrders fetches the orders with id > SinceID in ascending id order.
// NextSinceID is the largest id in the batch, or SinceID when empty.
func (c *Client) ListOrders(ctx context.Context, p ListParams) (OrderPage, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	status := p.Status
	if status == "" {
		status = "any"
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("order", "id asc")
	query.Set("status", status)
	query.Set("financial_status", "any")
	if p.SinceID > 0 {
		query.Set("since_id", strconv.FormatInt(p.SinceID, 10))
	}

	resp, err := c.transport.Do(ctx, platform.Request{Method: http.MethodGet, Path: "orders.json", Query: query})
	if err != nil {
		return OrderPage{}, err
	}
	page := OrderPage{NextSinceID: p.SinceID}
	if resp.NoData {
		return page, nil
	}

	var envelope struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return OrderPage{}, err
	}
	page.Orders = envelope.Orders
	for _, raw := range envelope.Orders {
		var idOnly struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &idOnly); err != nil {
			continue
		}
		if idOnly.ID > page.NextSinceID {
			page.NextSinceID = idOnly.ID
		}
	}
	return page, nil
}
