package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coffeeflow/backoffice/internal/domain/sale"
)

const (
	insertSaleSQL = `INSERT INTO sales (id, customer_id, sale_date, ship_address_id, freight)
		VALUES ($1, $2, $3, $4, $5)`

	getSaleSQL = `SELECT id, customer_id, sale_date, ship_address_id, freight, created_at
		FROM sales WHERE id = $1`

	getSaleForUpdateSQL = getSaleSQL + ` FOR UPDATE`

	listSalesSQL = `SELECT id, customer_id, sale_date, ship_address_id, freight, created_at
		FROM sales ORDER BY created_at, id`

	updateSaleHeaderSQL = `UPDATE sales SET customer_id = $2, sale_date = $3,
		ship_address_id = $4, freight = $5 WHERE id = $1`

	deleteSaleSQL = `DELETE FROM sales WHERE id = $1`

	getLineItemsSQL = `SELECT id, sale_id, product_id, quantity, unit_price
		FROM line_items WHERE sale_id = $1 ORDER BY position, id`

	listLineItemsSQL = `SELECT id, sale_id, product_id, quantity, unit_price
		FROM line_items ORDER BY sale_id, position, id`

	insertLineItemSQL = `INSERT INTO line_items (id, sale_id, product_id, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM line_items WHERE sale_id = $2))`

	deleteLineItemsSQL = `DELETE FROM line_items WHERE sale_id = $1`
)

var _ sale.Store = (*SaleStore)(nil)

// SaleStore implements sale.Store backed by PostgreSQL. Each WithinTx call
// maps to exactly one database transaction; the ledger statements run on the
// same transaction handle, so an abort rolls stock mutations back together
// with the row changes.
type SaleStore struct {
	pool *pgxpool.Pool
}

// NewSaleStore returns a SaleStore that uses the given pool.
func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// WithinTx runs fn inside one transaction, committing on success and rolling
// back on any error or panic. Lock and serialization failures are reported
// as sale.ErrTxConflict.
func (s *SaleStore) WithinTx(ctx context.Context, fn func(tx sale.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapTxErr(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&saleTx{tx: tx}); err != nil {
		return mapTxErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapTxErr(err))
	}
	return nil
}

// GetByID loads a sale aggregate without locking.
func (s *SaleStore) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	return getSale(ctx, s.pool, getSaleSQL, id)
}

// List returns all sales with their line items.
func (s *SaleStore) List(ctx context.Context) ([]sale.Sale, error) {
	rows, err := s.pool.Query(ctx, listSalesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	sales, err := pgx.CollectRows(rows, scanSale)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}

	itemRows, err := s.pool.Query(ctx, listLineItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}
	items, err := pgx.CollectRows(itemRows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}

	bySale := make(map[string][]sale.LineItem, len(sales))
	for _, item := range items {
		bySale[item.SaleID] = append(bySale[item.SaleID], item)
	}
	for i := range sales {
		sales[i].Items = bySale[sales[i].ID]
	}
	return sales, nil
}

// saleTx implements sale.Tx on a single pgx transaction.
type saleTx struct {
	tx pgx.Tx
}

func (t *saleTx) Decrement(ctx context.Context, productID string, qty int) (int, error) {
	return decrementStock(ctx, t.tx, productID, qty)
}

func (t *saleTx) Increment(ctx context.Context, productID string, qty int) (int, error) {
	return incrementStock(ctx, t.tx, productID, qty)
}

func (t *saleTx) InsertSale(ctx context.Context, s *sale.Sale) error {
	_, err := t.tx.Exec(ctx, insertSaleSQL,
		s.ID, s.CustomerID, s.SaleDate, nullIfEmpty(s.ShipAddressID), s.Freight,
	)
	if err != nil {
		return fmt.Errorf("inserting sale %q: %w", s.ID, err)
	}
	return nil
}

func (t *saleTx) GetSaleForUpdate(ctx context.Context, id string) (*sale.Sale, error) {
	return getSale(ctx, t.tx, getSaleForUpdateSQL, id)
}

func (t *saleTx) UpdateSaleHeader(ctx context.Context, s *sale.Sale) error {
	tag, err := t.tx.Exec(ctx, updateSaleHeaderSQL,
		s.ID, s.CustomerID, s.SaleDate, nullIfEmpty(s.ShipAddressID), s.Freight,
	)
	if err != nil {
		return fmt.Errorf("updating sale %q: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &sale.SaleNotFoundError{SaleID: s.ID}
	}
	return nil
}

func (t *saleTx) DeleteSale(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, deleteSaleSQL, id); err != nil {
		return fmt.Errorf("deleting sale %q: %w", id, err)
	}
	return nil
}

func (t *saleTx) InsertLineItem(ctx context.Context, item *sale.LineItem) error {
	_, err := t.tx.Exec(ctx, insertLineItemSQL,
		item.ID, item.SaleID, item.ProductID, item.Quantity, item.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("inserting line item %q: %w", item.ID, err)
	}
	return nil
}

func (t *saleTx) DeleteLineItems(ctx context.Context, saleID string) error {
	if _, err := t.tx.Exec(ctx, deleteLineItemsSQL, saleID); err != nil {
		return fmt.Errorf("deleting line items of sale %q: %w", saleID, err)
	}
	return nil
}

func getSale(ctx context.Context, q queryer, query, id string) (*sale.Sale, error) {
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &sale.SaleNotFoundError{SaleID: id}
		}
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}

	itemRows, err := q.Query(ctx, getLineItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting line items of sale %q: %w", id, err)
	}
	s.Items, err = pgx.CollectRows(itemRows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("getting line items of sale %q: %w", id, err)
	}
	return &s, nil
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var (
		s    sale.Sale
		ship *string
	)
	err := row.Scan(&s.ID, &s.CustomerID, &s.SaleDate, &ship, &s.Freight, &s.CreatedAt)
	if ship != nil {
		s.ShipAddressID = *ship
	}
	return s, err
}

func scanLineItem(row pgx.CollectableRow) (sale.LineItem, error) {
	var item sale.LineItem
	err := row.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice)
	return item, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
