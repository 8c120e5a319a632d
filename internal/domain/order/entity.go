package order

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxQty is the largest quantity one order line may carry; it matches the
// INTEGER qty column.
const MaxQty = math.MaxInt32

var (
	// ErrNotFound indicates an order could not be located.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyOrder is returned when an order has no items.
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// ErrInvalidQuantity is returned for item quantities outside [1, MaxQty].
	ErrInvalidQuantity = errors.New("item quantity must be between 1 and 2147483647")
	// ErrInsufficientStock signals that a product cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus accepts any letter case and rejects unknown states.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusNew, StatusPaid, StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown order status %q", raw)
	}
}

// CanTransition reports whether an order in s may move to next.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusPaid:
		return s == StatusNew
	case StatusCancelled:
		return s == StatusNew || s == StatusPaid
	default:
		return false
	}
}

// Item is a single order line. UnitPrice is captured when the order is placed.
type Item struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// Subtotal is Qty times UnitPrice.
func (i Item) Subtotal() float64 {
	return float64(i.Qty) * i.UnitPrice
}

// Order is a placed order with its lines.
type Order struct {
	ID          string    `json:"id"`
	OrderNo     string    `json:"order_no"`
	Status      Status    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	Items       []Item    `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transition moves the order to next or returns ErrInvalidTransition.
func (o *Order) Transition(next Status, now time.Time) error {
	if !o.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// Recalculate sets TotalAmount from the items.
func (o *Order) Recalculate() {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	o.TotalAmount = total
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

// NumberFor derives the human readable order number.
func NumberFor(id string, createdAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("ORD-%s-%s", createdAt.UTC().Format("20060102"), suffix)
}
