package order

import (
	"context"
	"time"
)

// Repository defines persistence behaviours for orders.
type Repository interface {
	// Create stores the order and reserves stock for every item atomically.
	// It fails with ErrInsufficientStock or product.ErrNotFound without side effects.
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter Filter) ([]*Order, error)
	// Transition applies Order.Transition under a row lock and returns the
	// updated order. Moving to StatusCancelled returns the items to stock.
	Transition(ctx context.Context, id string, next Status, now time.Time) (*Order, error)
}

// Filter narrows order listings.
type Filter struct {
	Status Status
}
