// Package client is a typed HTTP client for the backoffice API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	authdomain "storefront/backoffice/internal/domain/auth"
	orderdomain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"
	orderusecase "storefront/backoffice/internal/usecase/order"
	productusecase "storefront/backoffice/internal/usecase/product"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Client calls the backoffice API. Calls that need credentials take an explicit *Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a new session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return NewSession(out.Token), nil
}

// Renew swaps the session token for a fresh one in place.
func (c *Client) Renew(ctx context.Context, s *Session) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, s, http.MethodPost, "/auth/renew", nil, &out); err != nil {
		return err
	}
	s.set(out.Token)
	return nil
}

// Me returns the operator the session belongs to.
func (c *Client) Me(ctx context.Context, s *Session) (*authdomain.User, error) {
	var out struct {
		User *authdomain.User `json:"user"`
	}
	if err := c.do(ctx, s, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// ListProducts fetches one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, s *Session, q productdomain.Query) (productdomain.Page, error) {
	var page productdomain.Page
	err := c.do(ctx, s, http.MethodGet, "/api/products?"+encodeQuery(q).Encode(), nil, &page)
	return page, err
}

// ProductIndex walks every catalog page and indexes the products by id.
func (c *Client) ProductIndex(ctx context.Context, s *Session) (map[string]*productdomain.Product, error) {
	index := map[string]*productdomain.Product{}
	q := productdomain.Query{Page: 1, Limit: productdomain.MaxLimit}
	for {
		page, err := c.ListProducts(ctx, s, q)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			index[p.ID] = p
		}
		if len(page.Data) == 0 || q.Page*q.Limit >= page.Total {
			return index, nil
		}
		q.Page++
	}
}

// GetProduct fetches a product by id.
func (c *Client) GetProduct(ctx context.Context, s *Session, id string) (*productdomain.Product, error) {
	var p productdomain.Product
	if err := c.do(ctx, s, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct adds a product.
func (c *Client) CreateProduct(ctx context.Context, s *Session, in productusecase.CreateInput) (*productdomain.Product, error) {
	var p productdomain.Product
	if err := c.do(ctx, s, http.MethodPost, "/api/products", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct applies a partial update.
func (c *Client) UpdateProduct(ctx context.Context, s *Session, id string, in productusecase.UpdateInput) (*productdomain.Product, error) {
	var p productdomain.Product
	if err := c.do(ctx, s, http.MethodPatch, "/api/products/"+url.PathEscape(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, s *Session, id string) error {
	return c.do(ctx, s, http.MethodDelete, "/api/products/"+url.PathEscape(id), nil, nil)
}

// ListOrders returns orders newest first; an empty status lists all.
func (c *Client) ListOrders(ctx context.Context, s *Session, status string) ([]*orderdomain.Order, error) {
	path := "/api/orders"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var out struct {
		Data []*orderdomain.Order `json:"data"`
	}
	if err := c.do(ctx, s, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetOrder fetches an order by id.
func (c *Client) GetOrder(ctx context.Context, s *Session, id string) (*orderdomain.Order, error) {
	return c.orderCall(ctx, s, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil)
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, s *Session, in orderusecase.CreateInput) (*orderdomain.Order, error) {
	return c.orderCall(ctx, s, http.MethodPost, "/api/orders", in)
}

// PayOrder marks an order paid.
func (c *Client) PayOrder(ctx context.Context, s *Session, id string) (*orderdomain.Order, error) {
	return c.orderCall(ctx, s, http.MethodPost, "/api/orders/"+url.PathEscape(id)+"/pay", nil)
}

// CancelOrder cancels an order.
func (c *Client) CancelOrder(ctx context.Context, s *Session, id string) (*orderdomain.Order, error) {
	return c.orderCall(ctx, s, http.MethodPost, "/api/orders/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *Client) orderCall(ctx context.Context, s *Session, method, path string, body any) (*orderdomain.Order, error) {
	var out struct {
		Data *orderdomain.Order `json:"data"`
	}
	if err := c.do(ctx, s, method, path, body, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// do sends one request. A nil session sends no credentials; a cleared one fails early.
func (c *Client) do(ctx context.Context, s *Session, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil {
		if err := s.authorize(req); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func encodeQuery(q productdomain.Query) url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set(productdomain.ParamPage, strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set(productdomain.ParamLimit, strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		values.Set(productdomain.ParamSearch, q.Search)
	}
	if len(q.Sort) > 0 {
		keys := make([]string, len(q.Sort))
		for i, k := range q.Sort {
			keys[i] = k.String()
		}
		values.Set(productdomain.ParamSort, strings.Join(keys, ","))
	}
	return values
}
