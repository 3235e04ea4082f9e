package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coffeeflow/backoffice/internal/domain/product"
)

type productRequest struct {
	Kind          string          `json:"kind"`
	Name          string          `json:"name"`
	WeightKg      decimal.Decimal `json:"weight_kg"`
	StockQuantity int             `json:"stock_quantity"`
}

type stockAdjustRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondProductError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondProductError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" || req.Kind == "" {
		writeError(w, http.StatusUnprocessableEntity, "kind and name are required")
		return
	}
	if req.StockQuantity < 0 {
		writeError(w, http.StatusUnprocessableEntity, "stock_quantity must not be negative")
		return
	}

	p := product.Product{
		ID:            uuid.New().String(),
		Kind:          req.Kind,
		Name:          req.Name,
		WeightKg:      req.WeightKg,
		StockQuantity: req.StockQuantity,
	}
	if err := h.products.Create(r.Context(), &p); err != nil {
		respondProductError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cur, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		respondProductError(w, err)
		return
	}

	var req struct {
		Kind     *string          `json:"kind"`
		Name     *string          `json:"name"`
		WeightKg *decimal.Decimal `json:"weight_kg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.Kind != nil {
		cur.Kind = *req.Kind
	}
	if req.Name != nil {
		cur.Name = *req.Name
	}
	if req.WeightKg != nil {
		cur.WeightKg = *req.WeightKg
	}
	if cur.Name == "" || cur.Kind == "" {
		writeError(w, http.StatusUnprocessableEntity, "kind and name are required")
		return
	}

	if err := h.products.Update(r.Context(), cur); err != nil {
		respondProductError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *cur) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondProductError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req stockAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusUnprocessableEntity, "delta must not be zero")
		return
	}

	level, err := h.stocks.Adjust(r.Context(), id, req.Delta)
	if err != nil {
		respondProductError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStockLevel(e, id, level) })
}
