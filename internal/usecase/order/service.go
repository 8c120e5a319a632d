package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"
	"storefront/backoffice/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("storefront/backoffice/usecase/order")

// ProductLookup resolves the products an order refers to.
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*productdomain.Product, error)
}

// CatalogInvalidator is told when stock levels change.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service encapsulates order use cases.
type Service struct {
	orders   domain.Repository
	products ProductLookup
	events   EventPublisher
	catalog  CatalogInvalidator
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithCatalog sets the catalog to invalidate after stock changes.
func WithCatalog(c CatalogInvalidator) Option {
	return func(s *Service) { s.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// NewService constructs an order service.
func NewService(orders domain.Repository, products ProductLookup, opts ...Option) *Service {
	s := &Service{
		orders:   orders,
		products: products,
		events:   NoopPublisher{},
		logger:   zap.NewNop(),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// CreateInput is the payload for placing an order.
type CreateInput struct {
	Items []ItemInput `json:"items"`
}

// Create places an order, capturing current unit prices and reserving stock.
// Lines for the same product are merged.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "order.Create")
	defer span.End()

	lines, err := mergeLines(input.Items)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	id := uuid.NewString()
	order := &domain.Order{
		ID:        id,
		OrderNo:   domain.NumberFor(id, now),
		Status:    domain.StatusNew,
		Items:     make([]domain.Item, 0, len(lines)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, line := range lines {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, domain.Item{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Qty:       line.Qty,
			UnitPrice: p.Price,
		})
	}
	order.Recalculate()

	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)

	s.afterChange(ctx, EventOrderCreated, order)
	return order, nil
}

// Get fetches an order by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("order id is required")
	}
	return s.orders.GetByID(ctx, id)
}

// List returns orders newest first. An empty status lists everything.
func (s *Service) List(ctx context.Context, status string) ([]*domain.Order, error) {
	filter := domain.Filter{}
	if strings.TrimSpace(status) != "" {
		parsed, err := domain.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = parsed
	}
	return s.orders.List(ctx, filter)
}

// Pay marks a NEW order as PAID.
func (s *Service) Pay(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.StatusPaid, EventOrderPaid)
}

// Cancel cancels a NEW or PAID order and returns its items to stock.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.StatusCancelled, EventOrderCancelled)
}

func (s *Service) transition(ctx context.Context, id string, next domain.Status, event EventType) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "order.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.next", string(next)))

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("order id is required")
	}

	order, err := s.orders.Transition(ctx, id, next, s.nowFunc().UTC())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.afterChange(ctx, event, order)
	return order, nil
}

func (s *Service) afterChange(ctx context.Context, t EventType, order *domain.Order) {
	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()

	if s.catalog != nil && (t == EventOrderCreated || t == EventOrderCancelled) {
		s.catalog.Invalidate(ctx)
	}

	if err := s.events.Publish(ctx, eventFor(t, order, order.UpdatedAt)); err != nil {
		// The order is already committed at this point.
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", string(t)),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func mergeLines(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	merged := make([]ItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			return nil, errors.New("product_id is required")
		}
		if item.Qty < 1 || item.Qty > domain.MaxQty {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			if merged[i].Qty > domain.MaxQty-item.Qty {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, item.ProductID)
			}
			merged[i].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
