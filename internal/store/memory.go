package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// MemoryStore implements Store with an ordered in-memory list and a
// monotonically increasing ID counter starting at 0.
type MemoryStore struct {
	mu     sync.RWMutex
	items  []model.Item
	nextID int
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make([]model.Item, 0),
	}
}

// List returns all items from the store.
func (s *MemoryStore) List(ctx context.Context) ([]model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.items), nil
}

// Add assigns the next ID to item and appends it.
func (s *MemoryStore) Add(ctx context.Context, item model.Item) (model.Item, error) {
	select {
	case <-ctx.Done():
		return model.Item{}, fmt.Errorf("add item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.nextID
	s.nextID++
	s.items = append(s.items, item)

	return item, nil
}

// Update replaces every item sharing item.ID with item, which goes to the
// end of the list.
//
// The ID is taken from the caller and is not checked against the counter.
// Inserting an ID at or above the next one to be assigned lets a later Add
// produce a second item with the same ID.
func (s *MemoryStore) Update(ctx context.Context, item model.Item) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("update item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(item.ID)
	s.items = append(s.items, item)

	return nil
}

// Delete removes every item with the given ID.
func (s *MemoryStore) Delete(ctx context.Context, id int) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)

	return nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// removeLocked drops all items with id. Callers must hold s.mu.
func (s *MemoryStore) removeLocked(id int) {
	s.items = slices.DeleteFunc(s.items, func(item model.Item) bool {
		return item.ID == id
	})
}
