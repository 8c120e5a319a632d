// Package memory is a process-local storage driver. It backs the service when
// no database is configured and keeps the HTTP stack testable.
package memory

import (
	"sync"

	authdomain "storefront/backoffice/internal/domain/auth"
	orderdomain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"
)

// Store holds every table behind a single lock. Order placement reserves
// stock while holding it.
type Store struct {
	mu sync.RWMutex

	products     map[string]*productdomain.Product
	productOrder []string

	orders     map[string]*orderdomain.Order
	orderOrder []string

	users map[string]*authdomain.User
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]*productdomain.Product),
		orders:   make(map[string]*orderdomain.Order),
		users:    make(map[string]*authdomain.User),
	}
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
