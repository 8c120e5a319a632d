package order

import (
	"context"
	"time"

	domain "storefront/backoffice/internal/domain/order"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventOrderCreated   EventType = "order_created"
	EventOrderPaid      EventType = "order_paid"
	EventOrderCancelled EventType = "order_cancelled"
)

// Event is published after every successful lifecycle change.
type Event struct {
	Type        EventType     `json:"event_type"`
	OrderID     string        `json:"order_id"`
	OrderNo     string        `json:"order_no"`
	Status      domain.Status `json:"status"`
	TotalAmount float64       `json:"total_amount"`
	Items       []domain.Item `json:"items"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// EventPublisher delivers order events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func eventFor(t EventType, o *domain.Order, at time.Time) Event {
	return Event{
		Type:        t,
		OrderID:     o.ID,
		OrderNo:     o.OrderNo,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Items:       o.Items,
		OccurredAt:  at,
	}
}
