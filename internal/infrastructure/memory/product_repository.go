package memory

import (
	"context"

	domain "storefront/backoffice/internal/domain/product"
)

// ProductRepository keeps products in a Store.
type ProductRepository struct {
	store *Store
}

// NewProductRepository constructs a repository over store.
func NewProductRepository(store *Store) *ProductRepository {
	return &ProductRepository{store: store}
}

var _ domain.Repository = (*ProductRepository)(nil)

// Create inserts a new product.
func (r *ProductRepository) Create(_ context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.skuTaken(product.SKU, "") {
		return domain.ErrDuplicateSKU
	}
	r.store.products[product.ID] = product.Clone()
	r.store.productOrder = append(r.store.productOrder, product.ID)
	return nil
}

// GetByID fetches a product by id.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

// GetBySKU fetches a product using its SKU.
func (r *ProductRepository) GetBySKU(_ context.Context, sku string) (*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.products {
		if p.SKU == sku {
			return p.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

// List returns copies of all products in insertion order.
func (r *ProductRepository) List(_ context.Context) ([]*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.store.productOrder))
	for _, id := range r.store.productOrder {
		out = append(out, r.store.products[id].Clone())
	}
	return out, nil
}

// Update replaces a stored product.
func (r *ProductRepository) Update(_ context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[product.ID]; !ok {
		return domain.ErrNotFound
	}
	if r.skuTaken(product.SKU, product.ID) {
		return domain.ErrDuplicateSKU
	}
	r.store.products[product.ID] = product.Clone()
	return nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.store.products, id)
	r.store.productOrder = removeID(r.store.productOrder, id)
	return nil
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.products), nil
}

// skuTaken must be called with the lock held.
func (r *ProductRepository) skuTaken(sku, exceptID string) bool {
	for id, p := range r.store.products {
		if id != exceptID && p.SKU == sku {
			return true
		}
	}
	return false
}
