// Package handler exposes the HTTP API of the back-office.
package handler

import (
	"net/http"

	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/domain/sale"
	"github.com/coffeeflow/backoffice/internal/domain/stock"
)

// Handler serves the /api routes, delegating business logic to the sale
// service and the catalog repository.
type Handler struct {
	products product.Repository
	stocks   stock.Adjuster
	sales    *sale.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	stocks stock.Adjuster,
	sales *sale.Service,
) *Handler {
	return &Handler{
		products: products,
		stocks:   stocks,
		sales:    sales,
	}
}

// Routes returns the API route table. Authentication is applied by the
// caller, which wraps the returned handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.deleteProduct)
	mux.HandleFunc("POST /api/products/{id}/stock", h.adjustStock)

	mux.HandleFunc("GET /api/sales", h.listSales)
	mux.HandleFunc("POST /api/sales", h.createSale)
	mux.HandleFunc("GET /api/sales/{id}", h.getSale)
	mux.HandleFunc("PUT /api/sales/{id}", h.replaceSale)
	mux.HandleFunc("DELETE /api/sales/{id}", h.deleteSale)

	return mux
}
