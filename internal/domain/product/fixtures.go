package product

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed fixtures/products.json
var fixturesJSON []byte

// Fixtures returns a fresh copy of the reference catalog.
func Fixtures() ([]*Product, error) {
	var items []*Product
	if err := json.Unmarshal(fixturesJSON, &items); err != nil {
		return nil, fmt.Errorf("decoding product fixtures: %w", err)
	}
	return items, nil
}
