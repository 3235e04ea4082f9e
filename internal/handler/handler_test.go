package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeeflow/backoffice/internal/domain/auth"
	"github.com/coffeeflow/backoffice/internal/domain/product"
	"github.com/coffeeflow/backoffice/internal/domain/sale"
	"github.com/coffeeflow/backoffice/internal/domain/stock"
)

// --- Mock implementations ---

// stubStore drives the sale service through scripted transaction outcomes:
// the zero value is an always-succeeding store holding one empty sale per
// GetSaleForUpdate call.
type stubStore struct {
	decrementErr error
	txErr        error
	getSale      *sale.Sale
	getErr       error
}

func (s *stubStore) WithinTx(_ context.Context, fn func(tx sale.Tx) error) error {
	if s.txErr != nil {
		return s.txErr
	}
	return fn(&stubTx{s: s})
}

func (s *stubStore) GetByID(_ context.Context, id string) (*sale.Sale, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.getSale != nil {
		return s.getSale, nil
	}
	return nil, &sale.SaleNotFoundError{SaleID: id}
}

func (s *stubStore) List(_ context.Context) ([]sale.Sale, error) {
	if s.getSale != nil {
		return []sale.Sale{*s.getSale}, nil
	}
	return nil, nil
}

type stubTx struct {
	s *stubStore
}

func (t *stubTx) Decrement(_ context.Context, _ string, _ int) (int, error) {
	return 0, t.s.decrementErr
}

func (t *stubTx) Increment(_ context.Context, _ string, _ int) (int, error) { return 0, nil }

func (t *stubTx) InsertSale(_ context.Context, _ *sale.Sale) error { return nil }

func (t *stubTx) GetSaleForUpdate(_ context.Context, id string) (*sale.Sale, error) {
	if t.s.getErr != nil {
		return nil, t.s.getErr
	}
	if t.s.getSale != nil {
		return t.s.getSale, nil
	}
	return nil, &sale.SaleNotFoundError{SaleID: id}
}

func (t *stubTx) UpdateSaleHeader(_ context.Context, _ *sale.Sale) error   { return nil }
func (t *stubTx) DeleteSale(_ context.Context, _ string) error             { return nil }
func (t *stubTx) InsertLineItem(_ context.Context, _ *sale.LineItem) error { return nil }
func (t *stubTx) DeleteLineItems(_ context.Context, _ string) error        { return nil }

type stubProductRepo struct {
	byID      map[string]*product.Product
	createErr error
	deleteErr error
}

func (m *stubProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *stubProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *stubProductRepo) Create(_ context.Context, _ *product.Product) error { return m.createErr }
func (m *stubProductRepo) Update(_ context.Context, _ *product.Product) error { return nil }
func (m *stubProductRepo) Delete(_ context.Context, _ string) error           { return m.deleteErr }

type stubAdjuster struct {
	level int
	err   error
}

func (m *stubAdjuster) Adjust(_ context.Context, _ string, _ int) (int, error) {
	return m.level, m.err
}

type stubAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *stubAPIKeyRepo) FindByHash(_ context.Context, _ string) (*auth.APIKeyInfo, error) {
	return m.info, m.err
}

// --- Helpers ---

func newTestHandler(store sale.Store, products *stubProductRepo, stocks *stubAdjuster) http.Handler {
	if products == nil {
		products = &stubProductRepo{byID: map[string]*product.Product{}}
	}
	if stocks == nil {
		stocks = &stubAdjuster{}
	}
	return NewHandler(products, stocks, sale.NewService(store)).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Code, payload.Message
}

const validSaleBody = `{
	"customer_id": "c1",
	"sale_date": "2025-03-14",
	"freight": 12.5,
	"items": [{"product_id": "p1", "quantity": 2, "unit_price": 4.5}]
}`

// --- Sales ---

func TestCreateSale_Created(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", validSaleBody)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID       string  `json:"id"`
		Customer string  `json:"customer_id"`
		SaleDate string  `json:"sale_date"`
		Freight  float64 `json:"freight"`
		Items    []struct {
			ProductID string  `json:"product_id"`
			Quantity  int     `json:"quantity"`
			UnitPrice float64 `json:"unit_price"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "c1", resp.Customer)
	assert.Equal(t, "2025-03-14", resp.SaleDate)
	assert.InDelta(t, 12.5, resp.Freight, 1e-9)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "p1", resp.Items[0].ProductID)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.InDelta(t, 4.5, resp.Items[0].UnitPrice, 1e-9)
}

func TestCreateSale_MalformedBody(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", `{"customer_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSale_BadDate(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales",
		`{"customer_id": "c1", "sale_date": "14/03/2025"}`)

	code, msg := decodeError(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, msg, "sale_date")
}

func TestCreateSale_MissingCustomer(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", `{"sale_date": "2025-03-14"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateSale_InvalidQuantity(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", `{
		"customer_id": "c1", "sale_date": "2025-03-14",
		"items": [{"product_id": "p1", "quantity": 0, "unit_price": 1}]
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateSale_ProductNotFound(t *testing.T) {
	h := newTestHandler(&stubStore{decrementErr: product.ErrNotFound}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", validSaleBody)

	_, msg := decodeError(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, msg, "p1")
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	h := newTestHandler(&stubStore{decrementErr: &stock.InsufficientStockError{
		ProductID: "p1", Requested: 2, Available: 1,
	}}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", validSaleBody)

	_, msg := decodeError(t, rec)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, msg, "requested 2, available 1")
}

func TestCreateSale_TxConflict(t *testing.T) {
	h := newTestHandler(&stubStore{txErr: sale.ErrTxConflict}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/sales", validSaleBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGetSale_NotFound(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/sales/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSale_NotFound(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodDelete, "/api/sales/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplaceSale_HeaderOnly(t *testing.T) {
	existing := &sale.Sale{ID: "s1", CustomerID: "c1"}
	h := newTestHandler(&stubStore{getSale: existing}, nil, nil)

	rec := doJSON(t, h, http.MethodPut, "/api/sales/s1", `{"customer_id": "c2"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Customer string `json:"customer_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "c2", resp.Customer)
}

// --- Products ---

func TestCreateProduct_Created(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/products",
		`{"kind": "grain", "name": "Arabica", "weight_kg": 0.5, "stock_quantity": 40}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		ID    string `json:"id"`
		Stock int    `json:"stock_quantity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 40, resp.Stock)
}

func TestCreateProduct_MissingName(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/products", `{"kind": "grain"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/products/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProduct_InUse(t *testing.T) {
	products := &stubProductRepo{deleteErr: product.ErrInUse}
	h := newTestHandler(&stubStore{}, products, nil)

	rec := doJSON(t, h, http.MethodDelete, "/api/products/p1", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdjustStock_OK(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, &stubAdjuster{level: 7})

	rec := doJSON(t, h, http.MethodPost, "/api/products/p1/stock", `{"delta": -3}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ProductID string `json:"product_id"`
		Stock     int    `json:"stock_quantity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.ProductID)
	assert.Equal(t, 7, resp.Stock)
}

func TestAdjustStock_Insufficient(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, &stubAdjuster{
		err: &stock.InsufficientStockError{ProductID: "p1", Requested: 3, Available: 1},
	})

	rec := doJSON(t, h, http.MethodPost, "/api/products/p1/stock", `{"delta": -3}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdjustStock_ZeroDelta(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/products/p1/stock", `{"delta": 0}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Security ---

func TestSecurity_MissingKey(t *testing.T) {
	sec := NewSecurity(&stubAPIKeyRepo{err: context.Canceled}, []byte("pepper"))
	h := sec.Middleware(newTestHandler(&stubStore{}, nil, nil))

	rec := doJSON(t, h, http.MethodGet, "/api/products", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecurity_ValidKey(t *testing.T) {
	const key = "test-key"
	pepper := []byte("pepper")
	repo := &stubAPIKeyRepo{info: &auth.APIKeyInfo{
		ID:      "k1",
		KeyHash: HashAPIKey(key, pepper),
		Name:    "test",
	}}
	sec := NewSecurity(repo, pepper)
	h := sec.Middleware(newTestHandler(&stubStore{}, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set(APIKeyHeader, key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurity_WrongKey(t *testing.T) {
	pepper := []byte("pepper")
	repo := &stubAPIKeyRepo{info: &auth.APIKeyInfo{
		ID:      "k1",
		KeyHash: HashAPIKey("other-key", pepper),
		Name:    "test",
	}}
	sec := NewSecurity(repo, pepper)
	h := sec.Middleware(newTestHandler(&stubStore{}, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set(APIKeyHeader, "test-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
