package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepository persists orders and their items in PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository constructs a repository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

var _ domain.Repository = (*OrderRepository)(nil)

// Create reserves stock and inserts the order inside one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, item := range order.Items {
			if err := reserveStock(ctx, tx, item, order.CreatedAt); err != nil {
				return err
			}
		}

		insertOrder, args, err := psql.Insert("orders").
			SetMap(map[string]any{
				"id":           order.ID,
				"order_no":     order.OrderNo,
				"status":       string(order.Status),
				"total_amount": order.TotalAmount,
				"created_at":   order.CreatedAt,
				"updated_at":   order.UpdatedAt,
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building order insert: %w", err)
		}
		if _, err := tx.Exec(ctx, insertOrder, args...); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		items := psql.Insert("order_items").Columns("id", "order_id", "product_id", "qty", "unit_price", "position")
		for i, item := range order.Items {
			items = items.Values(item.ID, order.ID, item.ProductID, item.Qty, item.UnitPrice, i)
		}
		insertItems, args, err := items.ToSql()
		if err != nil {
			return fmt.Errorf("building item insert: %w", err)
		}
		if _, err := tx.Exec(ctx, insertItems, args...); err != nil {
			return fmt.Errorf("inserting order items: %w", err)
		}
		return nil
	})
}

func reserveStock(ctx context.Context, tx pgx.Tx, item domain.Item, at time.Time) error {
	const query = `
UPDATE products
SET stock = stock - $2, updated_at = $3
WHERE id = $1 AND stock >= $2
`
	tag, err := tx.Exec(ctx, query, item.ProductID, item.Qty, at)
	if err != nil {
		return fmt.Errorf("reserving stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, item.ProductID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", productdomain.ErrNotFound, item.ProductID)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s has %d, need %d", domain.ErrInsufficientStock, item.ProductID, stock, item.Qty)
}

// GetByID fetches an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// List returns orders newest first, optionally narrowed by status.
func (r *OrderRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Order, error) {
	builder := psql.Select("id", "order_no", "status", "total_amount", "created_at", "updated_at").
		From("orders").
		OrderBy("created_at DESC", "id DESC")
	if filter.Status != "" {
		builder = builder.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	orders := []*domain.Order{}
	byID := map[string]*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
		byID[o.ID] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := loadItems(ctx, r.pool, squirrel.Eq{"order_id": ids})
	if err != nil {
		return nil, err
	}
	for orderID, lines := range items {
		if o, ok := byID[orderID]; ok {
			o.Items = lines
		}
	}
	return orders, nil
}

// Transition locks the order row, applies the status change and restocks on cancel.
func (r *OrderRepository) Transition(ctx context.Context, id string, next domain.Status, now time.Time) (*domain.Order, error) {
	var updated *domain.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := o.Transition(next, now); err != nil {
			return err
		}

		query, args, err := psql.Update("orders").
			Set("status", string(o.Status)).
			Set("updated_at", o.UpdatedAt).
			Where(squirrel.Eq{"id": o.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building order update: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("updating order status: %w", err)
		}

		if next == domain.StatusCancelled {
			for _, item := range o.Items {
				_, err := tx.Exec(ctx,
					`UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1`,
					item.ProductID, item.Qty, now,
				)
				if err != nil {
					return fmt.Errorf("restocking %s: %w", item.ProductID, err)
				}
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func getOrder(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Order, error) {
	builder := psql.Select("id", "order_no", "status", "total_amount", "created_at", "updated_at").
		From("orders").
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order lookup: %w", err)
	}

	o, err := scanOrder(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	items, err := loadItems(ctx, q, squirrel.Eq{"order_id": o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []domain.Item{}
	}
	return o, nil
}

func loadItems(ctx context.Context, q querier, where squirrel.Sqlizer) (map[string][]domain.Item, error) {
	query, args, err := psql.Select("order_id", "id", "product_id", "qty", "unit_price").
		From("order_items").
		Where(where).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item lookup: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]domain.Item{}
	for rows.Next() {
		var orderID string
		var item domain.Item
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.Qty, &item.UnitPrice); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], item)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	if err := row.Scan(&o.ID, &o.OrderNo, &status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	return &o, nil
}
