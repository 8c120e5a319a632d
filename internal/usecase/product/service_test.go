package product

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	domain "storefront/backoffice/internal/domain/product"
	"storefront/backoffice/internal/infrastructure/memory"
)

type fakeCache struct {
	snapshot    []*domain.Product
	generation  int64
	loads       int
	stores      int
	invalidates int
}

func (c *fakeCache) Load(context.Context) ([]*domain.Product, int64, bool) {
	c.loads++
	return c.snapshot, c.generation, c.snapshot != nil
}

func (c *fakeCache) Store(_ context.Context, generation int64, products []*domain.Product) {
	if generation != c.generation {
		return
	}
	c.stores++
	c.snapshot = products
}

func (c *fakeCache) Invalidate(context.Context) {
	c.invalidates++
	c.generation++
	c.snapshot = nil
}

// interleavedRepo runs during once, right after List has read the store.
type interleavedRepo struct {
	domain.Repository
	during func()
}

func (r *interleavedRepo) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := r.Repository.List(ctx)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return products, err
}

func newSeededService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewService(memory.NewProductRepository(memory.NewStore()), opts...)
	fixtures, err := domain.Fixtures()
	if err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	n, err := svc.SeedIfEmpty(context.Background(), fixtures)
	if err != nil || n != 15 {
		t.Fatalf("Expected 15 seeded products, got %d (%v)", n, err)
	}
	return svc
}

func TestService_ListAppliesQuery(t *testing.T) {
	svc := newSeededService(t)

	page, err := svc.List(context.Background(), domain.ParseQuery(url.Values{"search": {"t-shirt"}, "sort": {"-price"}}))
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("Expected two t-shirts, got total=%d", page.Total)
	}
	if page.Data[0].Name != "T-Shirt Premium" {
		t.Errorf("Expected the pricier t-shirt first, got %s", page.Data[0].Name)
	}
}

func TestService_SeedIfEmptyIsIdempotent(t *testing.T) {
	svc := newSeededService(t)
	fixtures, _ := domain.Fixtures()

	n, err := svc.SeedIfEmpty(context.Background(), fixtures)
	if err != nil || n != 0 {
		t.Errorf("Expected second seed to be a no-op, got %d (%v)", n, err)
	}
}

func TestService_SnapshotUsesCache(t *testing.T) {
	cache := &fakeCache{}
	svc := newSeededService(t, WithCache(cache))
	ctx := context.Background()

	if _, err := svc.List(ctx, domain.Query{}); err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if cache.stores != 1 {
		t.Fatalf("Expected the snapshot to be cached once, got %d", cache.stores)
	}
	if _, err := svc.List(ctx, domain.Query{}); err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if cache.stores != 1 {
		t.Errorf("Expected the second list to be served from cache")
	}

	if _, err := svc.Create(ctx, CreateInput{Name: "Tote Bag", SKU: "SKU-TB-001", Price: 30000, Stock: 10}); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if cache.snapshot != nil {
		t.Fatalf("Expected create to invalidate the snapshot")
	}
	page, err := svc.List(ctx, domain.Query{Search: "tote"})
	if err != nil || page.Total != 1 {
		t.Errorf("Expected the new product to be visible after invalidation, got %d (%v)", page.Total, err)
	}
}

func TestService_SnapshotReadBeforeUpdateIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	repo := &interleavedRepo{Repository: memory.NewProductRepository(memory.NewStore())}
	svc := NewService(repo, WithCache(cache))
	created, err := svc.Create(ctx, CreateInput{Name: "Tote Bag", SKU: "SKU-TB-001", Price: 30000, Stock: 10})
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	price := 45000.0
	repo.during = func() {
		if _, err := svc.Update(ctx, created.ID, UpdateInput{Price: &price}); err != nil {
			t.Errorf("Failed to update: %v", err)
		}
	}
	stale, err := svc.List(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if stale.Data[0].Price != 30000 {
		t.Fatalf("Expected the in-flight read to see the old price, got %v", stale.Data[0].Price)
	}
	if cache.snapshot != nil {
		t.Fatalf("Expected the stale read not to be cached")
	}

	fresh, err := svc.List(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if fresh.Data[0].Price != price {
		t.Errorf("Expected the updated price after the mutation, got %v", fresh.Data[0].Price)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := newSeededService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{"duplicate sku", CreateInput{Name: "Dup", SKU: "SKU-HD-001"}, domain.ErrDuplicateSKU},
		{"negative price", CreateInput{Name: "Neg", SKU: "SKU-NEG-1", Price: -1}, domain.ErrInvalidPrice},
		{"negative stock", CreateInput{Name: "Neg", SKU: "SKU-NEG-2", Stock: -1}, domain.ErrInvalidStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.input); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := svc.Create(ctx, CreateInput{Name: "  ", SKU: "SKU-X"}); err == nil {
		t.Errorf("Expected blank name to be rejected")
	}
	if _, err := svc.Create(ctx, CreateInput{Name: "X", SKU: " "}); err == nil {
		t.Errorf("Expected blank sku to be rejected")
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := newSeededService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	const hoodie = "3b7f5d7e-3b1d-4f39-9b1d-333333333333"

	price := 70000.0
	sku := " SKU-HD-002 "
	updated, err := svc.Update(ctx, hoodie, UpdateInput{Price: &price, SKU: &sku})
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if updated.Price != 70000 || updated.SKU != "SKU-HD-002" || !updated.UpdatedAt.Equal(now) {
		t.Errorf("Unexpected update result %+v", updated)
	}

	taken := "SKU-MG-001"
	if _, err := svc.Update(ctx, hoodie, UpdateInput{SKU: &taken}); !errors.Is(err, domain.ErrDuplicateSKU) {
		t.Errorf("Expected duplicate SKU, got %v", err)
	}

	if err := svc.Delete(ctx, hoodie); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := svc.Get(ctx, hoodie); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, hoodie); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}
