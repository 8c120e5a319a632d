package product

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a product could not be located.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU signals SKU uniqueness constraint breaches.
	ErrDuplicateSKU = errors.New("product with SKU already exists")
	// ErrInvalidPrice is returned for negative prices.
	ErrInvalidPrice = errors.New("price must not be negative")
	// ErrInvalidStock is returned for negative stock levels.
	ErrInvalidStock = errors.New("stock must not be negative")
)

// Product is a catalog entry as seen by the backoffice.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SKU         string    `json:"sku"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update applies the non-nil fields and stamps UpdatedAt.
func (p *Product) Update(name, description, sku *string, price *float64, stock *int, now time.Time) {
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	if sku != nil {
		p.SKU = *sku
	}
	if price != nil {
		p.Price = *price
	}
	if stock != nil {
		p.Stock = *stock
	}
	p.UpdatedAt = now
}

// Validate checks the numeric invariants of a product.
func (p *Product) Validate() error {
	if p.Price < 0 {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

// Clone returns a detached copy.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
