//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestPurchaseAmountMismatch(t *testing.T) {
	// No payment was captured, so a non-zero amount can never verify.
	resp := doPost(t, "/api/orders", map[string]any{
		"userId":    userAda,
		"productId": courseProduct,
		"amount":    "49.90",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPurchaseUnknownProduct(t *testing.T) {
	resp := doPost(t, "/api/orders", map[string]any{
		"userId":    userAda,
		"productId": "00000000-0000-0000-0000-000000000000",
		"amount":    "0",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// TestFreePurchaseAndRefundCap walks the free-order path end to end: price
// the ebook at zero, buy it without a payment, then check the refund ledger
// rejects anything beyond the (zero) order amount.
func TestFreePurchaseAndRefundCap(t *testing.T) {
	snap := doPost(t, "/api/products/"+ebookProduct+"/snapshots", map[string]any{
		"title":   "Practical Concurrency Patterns (free promo)",
		"pricing": map[string]any{"amount": "0"},
	})
	defer snap.Body.Close()
	if snap.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", snap.StatusCode)
	}

	purchase := doPost(t, "/api/orders", map[string]any{
		"userId":    userLin,
		"productId": ebookProduct,
		"amount":    "0",
	})
	defer purchase.Body.Close()
	if purchase.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", purchase.StatusCode)
	}

	o := decodeJSON[orderResponse](t, purchase)
	if o.ID == "" || o.EnrollmentID == "" || o.ProductSnapshotID == "" {
		t.Fatalf("incomplete order %+v", o)
	}
	if o.Amount != "0" {
		t.Fatalf("expected amount 0, got %s", o.Amount)
	}

	refund := doPost(t, "/api/orders/"+o.ID+"/refunds", map[string]any{
		"amount": "0.01",
		"reason": "over the cap",
	})
	defer refund.Body.Close()
	if refund.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", refund.StatusCode)
	}

	zero := doPost(t, "/api/orders/"+o.ID+"/refunds", map[string]any{
		"amount": "0",
		"reason": "nothing",
	})
	defer zero.Body.Close()
	if zero.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", zero.StatusCode)
	}
}

func TestRefundUnknownOrder(t *testing.T) {
	resp := doPost(t, "/api/orders/00000000-0000-0000-0000-000000000000/refunds", map[string]any{
		"amount": "1.00",
		"reason": "no such order",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
