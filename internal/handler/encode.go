package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/domain/sale"
)

const dateFormat = "2006-01-02"

// writeJSON encodes a payload with jx and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {"code", "message"} error payload.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("kind")
	e.Str(p.Kind)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("weight_kg")
	e.Float64(p.WeightKg.InexactFloat64())
	e.FieldStart("stock_quantity")
	e.Int(p.StockQuantity)
	if !p.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(p.CreatedAt.Format(time.RFC3339))
	}
	e.ObjEnd()
}

func encodeSale(e *jx.Encoder, s sale.Sale) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(s.ID)
	e.FieldStart("customer_id")
	e.Str(s.CustomerID)
	e.FieldStart("sale_date")
	e.Str(s.SaleDate.Format(dateFormat))
	if s.ShipAddressID != "" {
		e.FieldStart("ship_address_id")
		e.Str(s.ShipAddressID)
	}
	e.FieldStart("freight")
	e.Float64(s.Freight.InexactFloat64())
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range s.Items {
		encodeLineItem(e, item)
	}
	e.ArrEnd()
	if !s.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(s.CreatedAt.Format(time.RFC3339))
	}
	e.ObjEnd()
}

func encodeLineItem(e *jx.Encoder, item sale.LineItem) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(item.ID)
	e.FieldStart("product_id")
	e.Str(item.ProductID)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
	e.FieldStart("unit_price")
	e.Float64(item.UnitPrice.InexactFloat64())
	e.ObjEnd()
}

func encodeStockLevel(e *jx.Encoder, productID string, level int) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(productID)
	e.FieldStart("stock_quantity")
	e.Int(level)
	e.ObjEnd()
}
