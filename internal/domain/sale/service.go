package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/coffeeflow/backoffice/internal/domain/product"
)

// ItemInput describes one requested line item.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateRequest holds the input for creating a sale. Items may be empty: a
// zero-item sale is a valid (cancelled/empty) order state.
type CreateRequest struct {
	CustomerID    string
	SaleDate      time.Time
	ShipAddressID string
	Freight       decimal.Decimal
	Items         []ItemInput
}

// ReplaceRequest holds the input for updating a sale. Nil fields retain the
// previous value; a nil Items leaves line items and stock untouched, while a
// non-nil (possibly empty) Items replaces the whole item set.
type ReplaceRequest struct {
	CustomerID    *string
	SaleDate      *time.Time
	ShipAddressID *string
	Freight       *decimal.Decimal
	Items         *[]ItemInput
}

// Service is the order transaction manager: it creates, replaces and deletes
// sales while keeping product stock levels consistent with the line items
// actually committed. Each operation runs as one atomic transaction and
// either fully applies or leaves the sale and stock state unchanged.
type Service struct {
	store  Store
	tracer trace.Tracer
}

// NewService creates a sale Service on top of the given transactional store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		tracer: otel.Tracer("coffeeflow.sale"),
	}
}

// Create persists a new sale and deducts stock for every line item, in input
// order. The first missing product or insufficient stock aborts the whole
// transaction: no partial stock change, no partial sale.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sale.Create",
		trace.WithAttributes(attribute.Int("sale.items", len(req.Items))))
	defer span.End()

	if req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	out := &Sale{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		SaleDate:      req.SaleDate,
		ShipAddressID: req.ShipAddressID,
		Freight:       req.Freight,
	}

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertSale(ctx, out); err != nil {
			return errors.Wrap(err, "insert sale")
		}
		items, err := s.addItems(ctx, tx, out.ID, req.Items)
		if err != nil {
			return err
		}
		out.Items = items
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("sale.id", out.ID))
	return out, nil
}

// Replace applies header changes and, when Items is non-nil, swaps the whole
// line item set: every existing item's quantity is restituted to its product
// before the new set is deducted. Any item-level failure rolls back both the
// restitutions and the deductions, leaving the sale exactly as before.
func (s *Service) Replace(ctx context.Context, saleID string, req ReplaceRequest) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sale.Replace",
		trace.WithAttributes(attribute.String("sale.id", saleID)))
	defer span.End()

	if req.Items != nil {
		if err := validateItems(*req.Items); err != nil {
			return nil, err
		}
	}

	var out *Sale
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}

		applyHeader(cur, req)
		if err := tx.UpdateSaleHeader(ctx, cur); err != nil {
			return errors.Wrap(err, "update sale header")
		}

		if req.Items != nil {
			// Restitute the old set before deducting the new one. A failed
			// deduction below rolls these increments back as well.
			for _, item := range cur.Items {
				if _, err := tx.Increment(ctx, item.ProductID, item.Quantity); err != nil {
					return errors.Wrapf(err, "restitute product %s", item.ProductID)
				}
			}
			if err := tx.DeleteLineItems(ctx, saleID); err != nil {
				return errors.Wrap(err, "delete line items")
			}

			items, err := s.addItems(ctx, tx, saleID, *req.Items)
			if err != nil {
				return err
			}
			cur.Items = items
		}

		out = cur
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// Delete restitutes every live line item's quantity to its product, then
// removes the items and the sale header. Restitution has no insufficiency
// check, so the operation cannot fail once the sale is known to exist.
func (s *Service) Delete(ctx context.Context, saleID string) error {
	ctx, span := s.tracer.Start(ctx, "sale.Delete",
		trace.WithAttributes(attribute.String("sale.id", saleID)))
	defer span.End()

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		for _, item := range cur.Items {
			if _, err := tx.Increment(ctx, item.ProductID, item.Quantity); err != nil {
				return errors.Wrapf(err, "restitute product %s", item.ProductID)
			}
		}
		if err := tx.DeleteLineItems(ctx, saleID); err != nil {
			return errors.Wrap(err, "delete line items")
		}
		return tx.DeleteSale(ctx, saleID)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Get loads a sale aggregate by ID.
func (s *Service) Get(ctx context.Context, saleID string) (*Sale, error) {
	return s.store.GetByID(ctx, saleID)
}

// List returns all sales with their line items.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	return s.store.List(ctx)
}

// addItems runs the per-item deduction loop shared by Create and Replace:
// items are processed in input order and the first failure aborts the
// enclosing transaction (fail-fast, not best-effort).
func (s *Service) addItems(ctx context.Context, tx Tx, saleID string, items []ItemInput) ([]LineItem, error) {
	out := make([]LineItem, 0, len(items))
	for _, in := range items {
		if _, err := tx.Decrement(ctx, in.ProductID, in.Quantity); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: in.ProductID}
			}
			return nil, err
		}

		item := LineItem{
			ID:        uuid.New().String(),
			SaleID:    saleID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		}
		if err := tx.InsertLineItem(ctx, &item); err != nil {
			return nil, errors.Wrapf(err, "insert line item for product %s", in.ProductID)
		}
		out = append(out, item)
	}
	return out, nil
}

func validateItems(items []ItemInput) error {
	for _, in := range items {
		if in.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: in.ProductID}
		}
	}
	return nil
}

func applyHeader(s *Sale, req ReplaceRequest) {
	if req.CustomerID != nil {
		s.CustomerID = *req.CustomerID
	}
	if req.SaleDate != nil {
		s.SaleDate = *req.SaleDate
	}
	if req.ShipAddressID != nil {
		s.ShipAddressID = *req.ShipAddressID
	}
	if req.Freight != nil {
		s.Freight = *req.Freight
	}
}
