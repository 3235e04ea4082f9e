package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/domain/stock"
)

const (
	lockStockSQL = `SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE id = $1 RETURNING stock_quantity`

	incrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity + $2
		WHERE id = $1 RETURNING stock_quantity`
)

// decrementStock locks the product row, checks availability, and subtracts
// qty. The FOR UPDATE lock serializes concurrent decrements of the same
// product, so the read-then-write pair cannot lose an update.
func decrementStock(ctx context.Context, q queryer, productID string, qty int) (int, error) {
	var available int
	err := q.QueryRow(ctx, lockStockSQL, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("locking stock for product %q: %w", productID, err)
	}

	if qty > available {
		return 0, &stock.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}

	var remaining int
	if err := q.QueryRow(ctx, decrementStockSQL, productID, qty).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("decrementing stock for product %q: %w", productID, err)
	}
	return remaining, nil
}

// incrementStock adds qty units back. The UPDATE itself takes the row lock;
// restitution has no upper bound, so no availability check applies.
func incrementStock(ctx context.Context, q queryer, productID string, qty int) (int, error) {
	var level int
	err := q.QueryRow(ctx, incrementStockSQL, productID, qty).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("incrementing stock for product %q: %w", productID, err)
	}
	return level, nil
}
