package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/domain/stock"
)

const (
	listProductsSQL = `SELECT id, kind, name, weight_kg, stock_quantity, created_at
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, kind, name, weight_kg, stock_quantity, created_at
		FROM products WHERE id = $1`

	insertProductSQL = `INSERT INTO products (id, kind, name, weight_kg, stock_quantity)
		VALUES ($1, $2, $3, $4, $5)`

	updateProductSQL = `UPDATE products SET kind = $2, name = $3, weight_kg = $4
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ stock.Adjuster     = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL, plus
// the out-of-band stock.Adjuster that funnels corrections through the same
// ledger statements the sale transactions use.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create persists a new product with its initial stock level.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Kind, p.Name, p.WeightKg, p.StockQuantity,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update persists display attributes. Stock is owned by the ledger and is
// deliberately absent from the statement.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL, p.ID, p.Kind, p.Name, p.WeightKg)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product. Products still referenced by sale line items are
// protected by the foreign key and reported as product.ErrInUse.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return product.ErrInUse
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Adjust applies a signed stock delta in its own transaction. Negative
// deltas go through the same availability check as sale deductions, so an
// adjustment can never drive stock below zero.
func (r *ProductRepository) Adjust(ctx context.Context, productID string, delta int) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", mapTxErr(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var level int
	switch {
	case delta >= 0:
		level, err = incrementStock(ctx, tx, productID, delta)
	default:
		level, err = decrementStock(ctx, tx, productID, -delta)
	}
	if err != nil {
		return 0, mapTxErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", mapTxErr(err))
	}
	return level, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.WeightKg, &p.StockQuantity, &p.CreatedAt)
	return p, err
}
