package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "storefront/backoffice/internal/domain/product"
	"storefront/backoffice/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("storefront/backoffice/usecase/product")

// SnapshotCache keeps a copy of the full catalog between requests.
// Implementations swallow their own errors; a failed Load is a miss.
//
// Load also reports the cache generation it looked at. Store is handed that
// generation back and must not make the snapshot visible if Invalidate ran
// in between, so a list read before a mutation never outlives it.
type SnapshotCache interface {
	Load(ctx context.Context) (products []*domain.Product, generation int64, ok bool)
	Store(ctx context.Context, generation int64, products []*domain.Product)
	Invalidate(ctx context.Context)
}

type noopCache struct{}

func (noopCache) Load(context.Context) ([]*domain.Product, int64, bool) { return nil, 0, false }
func (noopCache) Store(context.Context, int64, []*domain.Product)       {}
func (noopCache) Invalidate(context.Context)                            {}

// Service encapsulates product use cases.
type Service struct {
	repo    domain.Repository
	cache   SnapshotCache
	nowFunc func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithCache enables snapshot caching.
func WithCache(cache SnapshotCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// NewService constructs a product service.
func NewService(repo domain.Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		cache:   noopCache{},
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput contains the payload required for product creation.
type CreateInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SKU         string  `json:"sku"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// UpdateInput encapsulates partial product updates.
type UpdateInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	SKU         *string  `json:"sku"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
}

// Create stores a new product after validation.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "product.Create")
	defer span.End()

	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.TrimSpace(input.SKU)
	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	if input.SKU == "" {
		return nil, errors.New("sku is required")
	}

	if err := s.ensureSKUFree(ctx, input.SKU); err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		SKU:         input.SKU,
		Price:       input.Price,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	span.SetAttributes(attribute.String("product.id", product.ID))
	return product, nil
}

// List answers a catalog query against the current snapshot.
func (s *Service) List(ctx context.Context, query domain.Query) (domain.Page, error) {
	ctx, span := tracer.Start(ctx, "product.List")
	defer span.End()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Page{}, err
	}
	page := domain.Apply(snapshot, query)
	span.SetAttributes(
		attribute.Int("catalog.total", page.Total),
		attribute.Int("catalog.returned", len(page.Data)),
	)
	return page, nil
}

// Snapshot returns the full catalog, from the cache when it has one.
// The result is shared read-only data; callers must not modify it.
func (s *Service) Snapshot(ctx context.Context) ([]*domain.Product, error) {
	cached, generation, ok := s.cache.Load(ctx)
	if ok {
		metrics.CatalogQueriesTotal.WithLabelValues("cache").Inc()
		return cached, nil
	}
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	metrics.CatalogQueriesTotal.WithLabelValues("store").Inc()
	s.cache.Store(ctx, generation, products)
	return products, nil
}

// Get fetches a product by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Update applies partial updates to a product.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "product.Update")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("id is required")
	}
	span.SetAttributes(attribute.String("product.id", id))

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		input.Name = &name
	}
	if input.SKU != nil {
		sku := strings.TrimSpace(*input.SKU)
		if sku == "" {
			return nil, errors.New("sku cannot be empty")
		}
		if sku != product.SKU {
			if err := s.ensureSKUFree(ctx, sku); err != nil {
				return nil, err
			}
		}
		input.SKU = &sku
	}

	product.Update(input.Name, input.Description, input.SKU, input.Price, input.Stock, s.nowFunc().UTC())
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return product, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached snapshot. Stock changes made outside this
// service, such as order placement, call it.
func (s *Service) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

// SeedIfEmpty stores products when the catalog has none and reports how many were added.
func (s *Service) SeedIfEmpty(ctx context.Context, products []*domain.Product) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i, p := range products {
		if err := s.repo.Create(ctx, p); err != nil {
			return i, fmt.Errorf("seeding %s: %w", p.SKU, err)
		}
	}
	s.cache.Invalidate(ctx)
	return len(products), nil
}

func (s *Service) ensureSKUFree(ctx context.Context, sku string) error {
	if _, err := s.repo.GetBySKU(ctx, sku); err == nil {
		return domain.ErrDuplicateSKU
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
