package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	domain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"
)

// OrderRepository keeps orders in a Store and adjusts product stock in the same critical section.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository constructs a repository over store.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

var _ domain.Repository = (*OrderRepository)(nil)

// Create stores the order after reserving stock for each line.
func (r *OrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// Check everything first so a failure leaves stock untouched.
	for _, item := range order.Items {
		if item.Qty < 1 || item.Qty > domain.MaxQty {
			return fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, item.ProductID)
		}
		p, ok := r.store.products[item.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", productdomain.ErrNotFound, item.ProductID)
		}
		if p.Stock < item.Qty {
			return fmt.Errorf("%w: %s has %d, need %d", domain.ErrInsufficientStock, p.SKU, p.Stock, item.Qty)
		}
	}
	for _, item := range order.Items {
		p := r.store.products[item.ProductID]
		p.Stock -= item.Qty
		p.UpdatedAt = order.CreatedAt
	}

	r.store.orders[order.ID] = order.Clone()
	r.store.orderOrder = append(r.store.orderOrder, order.ID)
	return nil
}

// GetByID fetches an order by id.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	o, ok := r.store.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

// List returns orders newest first.
func (r *OrderRepository) List(_ context.Context, filter domain.Filter) ([]*domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.store.orderOrder))
	for _, id := range slices.Backward(r.store.orderOrder) {
		o := r.store.orders[id]
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o.Clone())
	}
	slices.SortStableFunc(out, func(a, b *domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Transition changes the order status, restocking on cancellation.
func (r *OrderRepository) Transition(_ context.Context, id string, next domain.Status, now time.Time) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := o.Transition(next, now); err != nil {
		return nil, err
	}
	if next == domain.StatusCancelled {
		for _, item := range o.Items {
			// Products deleted since the order was placed have nothing to restock.
			if p, ok := r.store.products[item.ProductID]; ok {
				p.Stock += item.Qty
				p.UpdatedAt = now
			}
		}
	}
	return o.Clone(), nil
}
