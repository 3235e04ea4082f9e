package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/coffeeflow/backoffice/internal/domain/sale"
)

type lineItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createSaleRequest struct {
	CustomerID    string            `json:"customer_id"`
	SaleDate      string            `json:"sale_date"`
	ShipAddressID string            `json:"ship_address_id"`
	Freight       decimal.Decimal   `json:"freight"`
	Items         []lineItemRequest `json:"items"`
}

type replaceSaleRequest struct {
	CustomerID    *string            `json:"customer_id"`
	SaleDate      *string            `json:"sale_date"`
	ShipAddressID *string            `json:"ship_address_id"`
	Freight       *decimal.Decimal   `json:"freight"`
	Items         *[]lineItemRequest `json:"items"`
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.sales.List(r.Context())
	if err != nil {
		respondSaleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, s := range sales {
			encodeSale(e, s)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondSaleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSale(e, *s) })
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	date, err := parseSaleDate(req.SaleDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "sale_date must be formatted as YYYY-MM-DD")
		return
	}

	s, err := h.sales.Create(r.Context(), sale.CreateRequest{
		CustomerID:    req.CustomerID,
		SaleDate:      date,
		ShipAddressID: req.ShipAddressID,
		Freight:       req.Freight,
		Items:         toItemInputs(req.Items),
	})
	if err != nil {
		respondSaleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeSale(e, *s) })
}

func (h *Handler) replaceSale(w http.ResponseWriter, r *http.Request) {
	var req replaceSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	domainReq := sale.ReplaceRequest{
		CustomerID:    req.CustomerID,
		ShipAddressID: req.ShipAddressID,
		Freight:       req.Freight,
	}
	if req.SaleDate != nil {
		date, err := parseSaleDate(*req.SaleDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "sale_date must be formatted as YYYY-MM-DD")
			return
		}
		domainReq.SaleDate = &date
	}
	if req.Items != nil {
		items := toItemInputs(*req.Items)
		domainReq.Items = &items
	}

	s, err := h.sales.Replace(r.Context(), r.PathValue("id"), domainReq)
	if err != nil {
		respondSaleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSale(e, *s) })
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.sales.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondSaleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toItemInputs(items []lineItemRequest) []sale.ItemInput {
	out := make([]sale.ItemInput, len(items))
	for i, item := range items {
		out[i] = sale.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

func parseSaleDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s)
}
