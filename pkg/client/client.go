// Package client is a Go client for the groceries API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

const (
	groceriesPath  = "/v1/groceries"
	defaultTimeout = 15 * time.Second
)

// Item is a grocery item as sent and returned by the API.
type Item = model.Item

// NewItem creates an Item for Add. The server assigns the id.
func NewItem(name string, quantity int, value decimal.Decimal) Item {
	return model.NewItem(name, quantity, value)
}

// itemBody is the request body of Add and Update. Value is sent as a JSON
// number.
type itemBody struct {
	ID       *int        `json:"id,omitempty"`
	Name     string      `json:"name"`
	Quantity int         `json:"quantity"`
	Value    json.Number `json:"value"`
}

func newItemBody(item Item) itemBody {
	return itemBody{
		Name:     item.Name,
		Quantity: item.Quantity,
		Value:    json.Number(item.Value.String()),
	}
}

// APIError is returned when the server answers with a 4xx or 5xx status.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("groceries api error: status=%d, message=%s, details=%s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("groceries api error: status=%d, message=%s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.SetTimeout(d)
	}
}

// WithRetryCount retries requests that fail at the transport level up to n
// times.
func WithRetryCount(n int) Option {
	return func(c *Client) {
		c.httpClient.SetRetryCount(n)
	}
}

// WithLogger routes resty's own diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.httpClient.SetLogger(logger.Sugar())
	}
}

// WithCircuitBreaker stops calling the server for openFor after maxFailures
// consecutive transport errors or 5xx responses. Client errors (4xx) do not
// count as failures.
func WithCircuitBreaker(maxFailures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "groceries-api",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: isSuccessful,
		})
	}
}

// Client calls the groceries endpoints of a running server.
type Client struct {
	httpClient *resty.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// New builds a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(defaultTimeout),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// List returns every stored item in store order.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	var items []Item

	err := c.do("list items", func() (*resty.Response, error) {
		return c.request(ctx).SetResult(&items).Get(groceriesPath)
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// Add stores a new item. The server assigns the id, so item.ID is not sent.
func (c *Client) Add(ctx context.Context, item Item) error {
	body := newItemBody(item)

	return c.do("add item", func() (*resty.Response, error) {
		return c.request(ctx).SetBody(body).Post(groceriesPath)
	})
}

// Update replaces the item with item.ID.
func (c *Client) Update(ctx context.Context, item Item) error {
	body := newItemBody(item)
	body.ID = &item.ID

	return c.do("update item", func() (*resty.Response, error) {
		return c.request(ctx).SetBody(body).Put(groceriesPath)
	})
}

// Delete removes the item with the given id.
func (c *Client) Delete(ctx context.Context, id int) error {
	return c.do("delete item", func() (*resty.Response, error) {
		return c.request(ctx).SetQueryParam("Id", strconv.Itoa(id)).Delete(groceriesPath)
	})
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.httpClient.R().
		SetContext(ctx).
		SetError(&model.ErrorResponse{})
}

// do runs call through the circuit breaker, if any, and converts an error
// status into an *APIError.
func (c *Client) do(operation string, call func() (*resty.Response, error)) error {
	exec := func() (struct{}, error) {
		resp, err := call()
		if err != nil {
			return struct{}{}, fmt.Errorf("%s: %w", operation, err)
		}
		return struct{}{}, checkResponse(resp)
	}

	if c.breaker == nil {
		_, err := exec()
		return err
	}

	_, err := c.breaker.Execute(exec)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return err
}

// checkResponse turns an error status into an *APIError, using the decoded
// error body when the server sent one.
func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Message:    http.StatusText(resp.StatusCode()),
	}
	if body, ok := resp.Error().(*model.ErrorResponse); ok && body.Message != "" {
		apiErr.Message = body.Message
		apiErr.Details = body.Details
	}

	return apiErr
}

// isSuccessful reports whether err leaves the circuit breaker closed.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}

	return false
}
