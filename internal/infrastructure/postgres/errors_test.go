package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}
	if !isUniqueViolation(fmt.Errorf("inserting product: %w", dup)) {
		t.Errorf("Expected wrapped 23505 to be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Errorf("Expected foreign key violation to be ignored")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Errorf("Expected plain error to be ignored")
	}
}

func TestStatementBuilders(t *testing.T) {
	query, args, err := selectProducts().Where(squirrel.Eq{"sku": "SKU-1"}).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT id, name, description, sku, price, stock, created_at, updated_at FROM products WHERE sku = $1"
	if query != want || len(args) != 1 {
		t.Errorf("Unexpected lookup\nwant %s\ngot  %s %v", want, query, args)
	}

	query, args, err = psql.Select("order_id").From("order_items").
		Where(squirrel.Eq{"order_id": []string{"a", "b"}}).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if query != "SELECT order_id FROM order_items WHERE order_id IN ($1,$2)" || len(args) != 2 {
		t.Errorf("Unexpected item lookup %s %v", query, args)
	}
}
