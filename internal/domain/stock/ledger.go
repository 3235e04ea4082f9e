// Package stock defines the ports through which product stock levels are
// mutated. The ledger is the sole writer of a product's stock quantity;
// every deduction and restitution flows through it.
package stock

import (
	"context"
	"fmt"
)

// InsufficientStockError indicates a decrement asked for more units than the
// product currently holds.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Ledger mutates product stock levels inside the caller's enclosing
// transaction: a later rollback of that transaction undoes the mutation.
//
// Implementations must serialize concurrent callers targeting the same
// product (row-level locking or equivalent) so the stock quantity never goes
// negative under concurrent decrements.
type Ledger interface {
	// Decrement subtracts qty units and returns the remaining stock.
	// It fails with product.ErrNotFound when the product does not exist and
	// with *InsufficientStockError when qty exceeds the available stock.
	Decrement(ctx context.Context, productID string, qty int) (int, error)

	// Increment adds qty units back and returns the new stock level.
	// It fails only when the product does not exist; restitution has no
	// upper bound.
	Increment(ctx context.Context, productID string, qty int) (int, error)
}

// Adjuster applies an out-of-band signed stock correction (restock, shrinkage)
// in its own transaction, through the same ledger primitives.
type Adjuster interface {
	Adjust(ctx context.Context, productID string, delta int) (int, error)
}
