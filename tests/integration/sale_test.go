//go:build integration

package integration

import (
	"net/http"
	"sync"
	"testing"
)

func mustCreateSale(t *testing.T, req saleRequest) saleResponse {
	t.Helper()

	resp := authPost(t, "/api/sales", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", resp.StatusCode)
	}

	return decodeJSON[saleResponse](t, resp)
}

func TestSale_CreateDeductsStock(t *testing.T) {
	pid := mustCreateProduct(t, "Kenya AA", 20)

	s := mustCreateSale(t, saleRequest{
		CustomerID: "cust-1",
		SaleDate:   "2026-08-10",
		Freight:    4.5,
		Items:      []lineItemRequest{{ProductID: pid, Quantity: 6, UnitPrice: 14}},
	})

	if !uuidPattern.MatchString(s.ID) {
		t.Errorf("sale ID %q is not a valid UUID", s.ID)
	}
	if len(s.Items) != 1 || s.Items[0].Quantity != 6 {
		t.Fatalf("unexpected items: %+v", s.Items)
	}
	if got := productStock(t, pid); got != 14 {
		t.Errorf("stock after sale: got %d, want 14", got)
	}
}

func TestSale_CreateEmptyItems(t *testing.T) {
	s := mustCreateSale(t, saleRequest{
		CustomerID: "cust-2",
		SaleDate:   "2026-08-10",
	})

	if len(s.Items) != 0 {
		t.Errorf("expected no items, got %d", len(s.Items))
	}
}

func TestSale_CreateMissingCustomer(t *testing.T) {
	resp := authPost(t, "/api/sales", saleRequest{SaleDate: "2026-08-10"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSale_CreateUnknownProduct(t *testing.T) {
	resp := authPost(t, "/api/sales", saleRequest{
		CustomerID: "cust-3",
		SaleDate:   "2026-08-10",
		Items:      []lineItemRequest{{ProductID: "no-such-product", Quantity: 1, UnitPrice: 5}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSale_CreateInsufficientStockIsAtomic(t *testing.T) {
	ok := mustCreateProduct(t, "Plenty Roast", 50)
	scarce := mustCreateProduct(t, "Rare Roast", 2)

	resp := authPost(t, "/api/sales", saleRequest{
		CustomerID: "cust-4",
		SaleDate:   "2026-08-10",
		Items: []lineItemRequest{
			{ProductID: ok, Quantity: 10, UnitPrice: 9},
			{ProductID: scarce, Quantity: 3, UnitPrice: 30},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	// The first item's deduction must have been rolled back.
	if got := productStock(t, ok); got != 50 {
		t.Errorf("stock of first product: got %d, want 50", got)
	}
	if got := productStock(t, scarce); got != 2 {
		t.Errorf("stock of scarce product: got %d, want 2", got)
	}
}

func TestSale_ReplaceHeaderOnly(t *testing.T) {
	pid := mustCreateProduct(t, "Header Roast", 10)
	s := mustCreateSale(t, saleRequest{
		CustomerID: "cust-5",
		SaleDate:   "2026-08-10",
		Items:      []lineItemRequest{{ProductID: pid, Quantity: 4, UnitPrice: 11}},
	})

	resp := authPut(t, "/api/sales/"+s.ID, map[string]any{"freight": 9.9})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decodeJSON[saleResponse](t, resp)
	if got.Freight != 9.9 {
		t.Errorf("freight: got %v, want 9.9", got.Freight)
	}
	if len(got.Items) != 1 {
		t.Fatalf("items must be untouched, got %d", len(got.Items))
	}
	if stock := productStock(t, pid); stock != 6 {
		t.Errorf("stock must be untouched: got %d, want 6", stock)
	}
}

func TestSale_ReplaceSwapsItems(t *testing.T) {
	oldP := mustCreateProduct(t, "Old Roast", 10)
	newP := mustCreateProduct(t, "New Roast", 10)
	s := mustCreateSale(t, saleRequest{
		CustomerID: "cust-6",
		SaleDate:   "2026-08-10",
		Items:      []lineItemRequest{{ProductID: oldP, Quantity: 5, UnitPrice: 8}},
	})

	resp := authPut(t, "/api/sales/"+s.ID, saleRequest{
		Items: []lineItemRequest{{ProductID: newP, Quantity: 2, UnitPrice: 8}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decodeJSON[saleResponse](t, resp)
	if len(got.Items) != 1 || got.Items[0].ProductID != newP {
		t.Fatalf("unexpected items: %+v", got.Items)
	}

	if stock := productStock(t, oldP); stock != 10 {
		t.Errorf("old product stock: got %d, want 10", stock)
	}
	if stock := productStock(t, newP); stock != 8 {
		t.Errorf("new product stock: got %d, want 8", stock)
	}
}

func TestSale_ReplaceRollbackOnInsufficientStock(t *testing.T) {
	pid := mustCreateProduct(t, "Rollback Roast", 10)
	s := mustCreateSale(t, saleRequest{
		CustomerID: "cust-7",
		SaleDate:   "2026-08-10",
		Items:      []lineItemRequest{{ProductID: pid, Quantity: 5, UnitPrice: 8}},
	})

	// 5 restituted + 5 in stock = 10 available; 11 must fail and roll back.
	resp := authPut(t, "/api/sales/"+s.ID, saleRequest{
		Items: []lineItemRequest{{ProductID: pid, Quantity: 11, UnitPrice: 8}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	if stock := productStock(t, pid); stock != 5 {
		t.Errorf("stock after failed replace: got %d, want 5", stock)
	}

	getResp := authGet(t, "/api/sales/"+s.ID)
	defer getResp.Body.Close()
	cur := decodeJSON[saleResponse](t, getResp)
	if len(cur.Items) != 1 || cur.Items[0].Quantity != 5 {
		t.Errorf("sale items after failed replace: %+v", cur.Items)
	}
}

func TestSale_ReplaceUnknown(t *testing.T) {
	resp := authPut(t, "/api/sales/00000000-0000-0000-0000-000000000000", saleRequest{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSale_DeleteRestitutesStock(t *testing.T) {
	pid := mustCreateProduct(t, "Restitution Roast", 10)
	s := mustCreateSale(t, saleRequest{
		CustomerID: "cust-8",
		SaleDate:   "2026-08-10",
		Items:      []lineItemRequest{{ProductID: pid, Quantity: 7, UnitPrice: 13}},
	})

	resp := authDelete(t, "/api/sales/"+s.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	if stock := productStock(t, pid); stock != 10 {
		t.Errorf("stock after delete: got %d, want 10", stock)
	}

	getResp := authGet(t, "/api/sales/"+s.ID)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getResp.StatusCode)
	}
}

func TestSale_DeleteUnknown(t *testing.T) {
	resp := authDelete(t, "/api/sales/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSale_ConcurrentLastUnit(t *testing.T) {
	pid := mustCreateProduct(t, "Last Unit Roast", 1)

	const workers = 4
	statuses := make([]int, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := authPost(t, "/api/sales", saleRequest{
				CustomerID: "cust-9",
				SaleDate:   "2026-08-10",
				Items:      []lineItemRequest{{ProductID: pid, Quantity: 1, UnitPrice: 20}},
			})
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	var created, conflicted int
	for _, code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Errorf("exactly one sale must win the last unit, got %d", created)
	}
	if stock := productStock(t, pid); stock != 0 {
		t.Errorf("stock after race: got %d, want 0", stock)
	}
}
