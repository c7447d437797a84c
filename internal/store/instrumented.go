package store

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// Operation label values.
const (
	opList   = "list"
	opAdd    = "add"
	opUpdate = "update"
	opDelete = "delete"
)

// lengther is implemented by stores that can report their size without
// copying their contents.
type lengther interface {
	Len() int
}

// InstrumentedStore wraps a Store and records Prometheus metrics for it.
type InstrumentedStore struct {
	inner      Store
	operations *prometheus.CounterVec
	items      prometheus.Gauge
}

// NewInstrumentedStore creates an InstrumentedStore registering its metrics
// with reg.
func NewInstrumentedStore(inner Store, reg prometheus.Registerer) *InstrumentedStore {
	factory := promauto.With(reg)

	return &InstrumentedStore{
		inner: inner,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groceries_store_operations_total",
				Help: "Total number of grocery store operations",
			},
			[]string{"operation", "result"},
		),
		items: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "groceries_store_items",
				Help: "Number of grocery items currently stored",
			},
		),
	}
}

// List returns all items from the inner store.
func (s *InstrumentedStore) List(ctx context.Context) ([]model.Item, error) {
	items, err := s.inner.List(ctx)
	s.observe(opList, err)
	if err == nil {
		s.items.Set(float64(len(items)))
	}

	return items, err
}

// Add stores an item in the inner store.
func (s *InstrumentedStore) Add(ctx context.Context, item model.Item) (model.Item, error) {
	added, err := s.inner.Add(ctx, item)
	s.observe(opAdd, err)
	s.refreshItems(ctx, err)

	return added, err
}

// Update replaces an item in the inner store.
func (s *InstrumentedStore) Update(ctx context.Context, item model.Item) error {
	err := s.inner.Update(ctx, item)
	s.observe(opUpdate, err)
	s.refreshItems(ctx, err)

	return err
}

// Delete removes an item from the inner store.
func (s *InstrumentedStore) Delete(ctx context.Context, id int) error {
	err := s.inner.Delete(ctx, id)
	s.observe(opDelete, err)
	s.refreshItems(ctx, err)

	return err
}

func (s *InstrumentedStore) observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.operations.WithLabelValues(operation, result).Inc()
}

// refreshItems updates the item gauge after a successful mutation. The count
// is read after the inner store released its lock, so concurrent mutations
// can leave the gauge briefly behind; the next mutation corrects it.
func (s *InstrumentedStore) refreshItems(ctx context.Context, err error) {
	if err != nil {
		return
	}

	if l, ok := s.inner.(lengther); ok {
		s.items.Set(float64(l.Len()))
		return
	}

	if items, listErr := s.inner.List(ctx); listErr == nil {
		s.items.Set(float64(len(items)))
	}
}
