// Package sale holds the sale aggregate and the transactional service that
// keeps product stock consistent with committed line items.
package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/coffeeflow/backoffice/internal/domain/stock"
)

// Sentinel errors for sale validation.
var (
	ErrCustomerRequired = errors.New("customer reference required")

	// ErrTxConflict signals a lock or serialization failure from the
	// persistence layer. It is the only error kind a caller may retry.
	ErrTxConflict = errors.New("transaction conflict, retry")
)

// SaleNotFoundError indicates the requested sale does not exist.
type SaleNotFoundError struct {
	SaleID string
}

func (e *SaleNotFoundError) Error() string {
	return fmt.Sprintf("sale %s not found", e.SaleID)
}

// ProductNotFoundError indicates a line item references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Sale is a sale header together with its full current set of line items,
// treated as one unit: it is only ever observed in a state produced by a
// single completed Create/Replace/Delete operation.
type Sale struct {
	ID            string
	CustomerID    string
	SaleDate      time.Time
	ShipAddressID string
	Freight       decimal.Decimal
	Items         []LineItem
	CreatedAt     time.Time
}

// LineItem is a single product position within a sale. UnitPrice is a
// snapshot taken at sale time, not a live reference to the catalog price.
type LineItem struct {
	ID        string
	SaleID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Store provides transactional access to the persisted sale state.
type Store interface {
	// WithinTx runs fn inside one atomic transaction. When fn returns an
	// error every change made through tx, including ledger mutations, is
	// rolled back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetByID(ctx context.Context, id string) (*Sale, error)
	List(ctx context.Context) ([]Sale, error)
}

// Tx is the set of operations available inside one sale transaction. The
// embedded ledger participates in the same transaction, so a rollback
// undoes stock mutations together with row changes.
type Tx interface {
	stock.Ledger

	InsertSale(ctx context.Context, s *Sale) error
	// GetSaleForUpdate loads the sale aggregate and locks its header row
	// against concurrent replace/delete. Missing sales surface as
	// *SaleNotFoundError.
	GetSaleForUpdate(ctx context.Context, id string) (*Sale, error)
	UpdateSaleHeader(ctx context.Context, s *Sale) error
	DeleteSale(ctx context.Context, id string) error
	InsertLineItem(ctx context.Context, item *LineItem) error
	DeleteLineItems(ctx context.Context, saleID string) error
}
