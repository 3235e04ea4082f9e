package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/domain/sale"
	"github.com/coffeeflow/backoffice/internal/domain/stock"
)

// respondSaleError maps domain failures from the sale service to HTTP
// responses. Unknown errors become an opaque 500: nothing is swallowed, the
// middleware stack logs the details.
func respondSaleError(w http.ResponseWriter, err error) {
	var (
		snfErr *sale.SaleNotFoundError
		pnfErr *sale.ProductNotFoundError
		iqErr  *sale.InvalidQuantityError
		isErr  *stock.InsufficientStockError
	)

	switch {
	case errors.As(err, &snfErr):
		writeError(w, http.StatusNotFound, snfErr.Error())
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	case errors.As(err, &iqErr):
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
	case errors.Is(err, sale.ErrCustomerRequired):
		writeError(w, http.StatusUnprocessableEntity, sale.ErrCustomerRequired.Error())
	case errors.As(err, &isErr):
		writeError(w, http.StatusConflict, isErr.Error())
	case errors.Is(err, sale.ErrTxConflict):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, sale.ErrTxConflict.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondProductError maps catalog failures to HTTP responses.
func respondProductError(w http.ResponseWriter, err error) {
	var isErr *stock.InsufficientStockError

	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, product.ErrNotFound.Error())
	case errors.Is(err, product.ErrInUse):
		writeError(w, http.StatusConflict, product.ErrInUse.Error())
	case errors.As(err, &isErr):
		writeError(w, http.StatusConflict, isErr.Error())
	case errors.Is(err, sale.ErrTxConflict):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, sale.ErrTxConflict.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
