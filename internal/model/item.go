// Package model defines data structures used throughout the application.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a grocery item held by the store.
type Item struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// NewItem creates an Item without an identifier. The store assigns one on Add.
func NewItem(name string, quantity int, value decimal.Decimal) Item {
	return Item{
		Name:     name,
		Quantity: quantity,
		Value:    value,
	}
}

// itemJSON is the wire shape of an Item.
type itemJSON struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Quantity int         `json:"quantity"`
	Value    json.Number `json:"value"`
}

// MarshalJSON writes Value as a JSON number rather than the quoted string
// decimal uses by default.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		ID:       i.ID,
		Name:     i.Name,
		Quantity: i.Quantity,
		Value:    json.Number(i.Value.String()),
	})
}

// Equal reports whether two items carry the same id and fields.
// Values are compared numerically, so 1.5 and 1.50 are equal.
func (i Item) Equal(other Item) bool {
	return i.ID == other.ID &&
		i.Name == other.Name &&
		i.Quantity == other.Quantity &&
		i.Value.Equal(other.Value)
}

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChangeType names the kind of mutation carried by a ChangeEvent.
type ChangeType string

// Change event types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent describes a successful mutation of the grocery list.
// Item is nil for deletions.
type ChangeEvent struct {
	Type      ChangeType `json:"type"`
	ID        int        `json:"id"`
	Item      *Item      `json:"item,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewCreatedEvent creates an event for an item added to the store.
func NewCreatedEvent(item Item) ChangeEvent {
	return newItemEvent(ChangeCreated, item)
}

// NewUpdatedEvent creates an event for an item replaced in the store.
func NewUpdatedEvent(item Item) ChangeEvent {
	return newItemEvent(ChangeUpdated, item)
}

// NewDeletedEvent creates an event for an id removed from the store.
func NewDeletedEvent(id int) ChangeEvent {
	return ChangeEvent{
		Type:      ChangeDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func newItemEvent(t ChangeType, item Item) ChangeEvent {
	return ChangeEvent{
		Type:      t,
		ID:        item.ID,
		Item:      &item,
		Timestamp: time.Now().UTC(),
	}
}
