package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "storefront/backoffice/internal/domain/product"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var productColumns = []string{"id", "name", "description", "sku", "price", "stock", "created_at", "updated_at"}

// ProductRepository persists products in PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository constructs a repository.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

var _ domain.Repository = (*ProductRepository)(nil)

func selectProducts() squirrel.SelectBuilder {
	return psql.Select(productColumns...).From("products")
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query, args, err := psql.Insert("products").
		Columns(productColumns...).
		Values(p.ID, p.Name, p.Description, p.SKU, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building product insert: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSKU
		}
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

// GetByID fetches a product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetBySKU fetches a product using its SKU.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"sku": sku})
}

func (r *ProductRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Product, error) {
	query, args, err := selectProducts().Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building product lookup: %w", err)
	}
	product, err := scanProduct(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return product, err
}

// List returns the whole catalog in insertion order. Query ordering is
// applied in memory by the catalog engine.
func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query, args, err := selectProducts().OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building product list: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Update writes every mutable column of p.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query, args, err := psql.Update("products").
		SetMap(map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"sku":         p.SKU,
			"price":       p.Price,
			"stock":       p.Stock,
			"updated_at":  p.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building product update: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSKU
		}
		return fmt.Errorf("updating product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("products").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building product delete: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("products").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
