// Package store provides data storage interfaces and implementations.
package store

import (
	"context"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// Store defines the interface for grocery item storage operations.
//
// None of the operations has a business-level failure. Implementations
// return an error only when the context is done or the backing storage
// cannot be reached.
type Store interface {
	// List returns all items in insertion order.
	List(ctx context.Context) ([]model.Item, error)

	// Add stores a copy of item under a newly assigned ID and returns it.
	// Any ID on the input is ignored.
	Add(ctx context.Context, item model.Item) (model.Item, error)

	// Update removes every item with item.ID and then stores item as given.
	// An unknown ID turns the update into an insert.
	Update(ctx context.Context, item model.Item) error

	// Delete removes every item with the given ID. Unknown IDs are a no-op.
	Delete(ctx context.Context, id int) error
}
