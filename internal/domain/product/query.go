package product

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Query parameter names accepted by the list endpoint.
const (
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSearch = "search"
	ParamSort   = "sort"
)

// Paging bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MinLimit     = 1
	MaxLimit     = 100
)

// SortField enumerates the fields a catalog listing can be ordered by.
type SortField string

const (
	SortByID        SortField = "id"
	SortByName      SortField = "name"
	SortBySKU       SortField = "sku"
	SortByPrice     SortField = "price"
	SortByStock     SortField = "stock"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

var comparators = map[SortField]func(a, b *Product) int{
	SortByID:        func(a, b *Product) int { return strings.Compare(a.ID, b.ID) },
	SortByName:      func(a, b *Product) int { return strings.Compare(a.Name, b.Name) },
	SortBySKU:       func(a, b *Product) int { return strings.Compare(a.SKU, b.SKU) },
	SortByPrice:     func(a, b *Product) int { return cmp.Compare(a.Price, b.Price) },
	SortByStock:     func(a, b *Product) int { return cmp.Compare(a.Stock, b.Stock) },
	SortByCreatedAt: func(a, b *Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
	SortByUpdatedAt: func(a, b *Product) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

// Valid reports whether the field has a comparator.
func (f SortField) Valid() bool {
	_, ok := comparators[f]
	return ok
}

// SortKey is one entry of a sort order such as "-price".
type SortKey struct {
	Field SortField
	Desc  bool
}

func (k SortKey) String() string {
	if k.Desc {
		return "-" + string(k.Field)
	}
	return string(k.Field)
}

// DefaultSort orders newest first.
var DefaultSort = []SortKey{{Field: SortByCreatedAt, Desc: true}}

// Query describes one catalog listing request.
//
// A nil Sort selects DefaultSort. A non-nil empty Sort keeps the input order.
type Query struct {
	Page   int
	Limit  int
	Search string
	Sort   []SortKey
}

// Page is the engine result; it is also the list endpoint body.
type Page struct {
	Data  []*Product `json:"data"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// ParseQuery builds a Query from string-encoded parameters. It never fails:
// malformed numbers fall back to their defaults and are then clamped.
func ParseQuery(values url.Values) Query {
	q := Query{
		Page:   parseIntOr(values.Get(ParamPage), DefaultPage),
		Limit:  parseIntOr(values.Get(ParamLimit), DefaultLimit),
		Search: values.Get(ParamSearch),
	}
	if raw := values.Get(ParamSort); raw != "" {
		q.Sort = ParseSort(raw)
	}
	return q.Normalize()
}

// ParseSort parses a comma separated key list such as "price,-created_at".
// Unknown fields are dropped. The result is non-nil even when every key is dropped.
func ParseSort(raw string) []SortKey {
	parts := strings.Split(raw, ",")
	keys := make([]SortKey, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := SortKey{Field: SortField(part)}
		if strings.HasPrefix(part, "-") {
			key = SortKey{Field: SortField(part[1:]), Desc: true}
		}
		if !key.Field.Valid() {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Normalize clamps Page to at least 1 and Limit into [MinLimit, MaxLimit].
func (q Query) Normalize() Query {
	q.Page = max(q.Page, DefaultPage)
	q.Limit = min(max(q.Limit, MinLimit), MaxLimit)
	return q
}

// Apply runs filter, sort and paginate over items. The input slice and the
// products it points to are left untouched.
func Apply(items []*Product, q Query) Page {
	q = q.Normalize()

	matched := Filter(items, q.Search)
	Sort(matched, q.Sort)

	total := len(matched)
	page := Page{Data: []*Product{}, Total: total, Page: q.Page, Limit: q.Limit}

	// page-1 beyond the last page cannot be multiplied safely.
	if q.Page-1 > total/q.Limit {
		return page
	}
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return page
	}
	end := min(start+q.Limit, total)
	page.Data = matched[start:end]
	return page
}

// Filter returns a new slice holding the products whose name or sku contains
// search, ignoring case. An empty search keeps every non-nil product.
func Filter(items []*Product, search string) []*Product {
	out := make([]*Product, 0, len(items))
	needle := strings.ToLower(search)
	for _, p := range items {
		if p == nil {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.SKU), needle) {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders items in place by keys, falling back to DefaultSort when keys is nil.
// The sort is stable, so products equal on every key keep their relative order.
func Sort(items []*Product, keys []SortKey) {
	if keys == nil {
		keys = DefaultSort
	}
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b *Product) int {
		for _, key := range keys {
			compare, ok := comparators[key.Field]
			if !ok {
				continue
			}
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if key.Desc {
				return -c
			}
			return c
		}
		return 0
	})
}

func parseIntOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}
