package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInUse is returned when a product cannot be deleted because sale line
// items still reference it.
var ErrInUse = errors.New("product is referenced by sale line items")

// Product represents a catalog item held in stock.
//
// StockQuantity is owned by the stock ledger: sale logic never writes it
// directly, and Update implementations must leave it untouched.
type Product struct {
	ID            string
	Kind          string
	Name          string
	WeightKg      decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	// Update persists display attributes (kind, name, weight) only.
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
