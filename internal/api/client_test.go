package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

func TestGetAssignedOrders(t *testing.T) {
	var gotPath, gotAuth, gotAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.URL.Query().Get("agent")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"orders": [{
				"_id": "65a1b2c3",
				"orderNumber": "ORD-1042",
				"status": "Preparing",
				"paymentStatus": "Pending",
				"paymentMethod": "Cash on Delivery",
				"customer": {"name": "Asha", "phone": "98xxxxxx10", "address": "14 MG Road"},
				"items": [{"name": "Veg Thali", "quantity": 2, "price": 180}],
				"subtotal": 360,
				"gst": 18,
				"deliveryFee": 30,
				"total": 408,
				"deliveryAgent": "agent-7",
				"updatedAt": "2026-08-01T12:30:00Z"
			}]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithBearerToken("tok"))
	orders, err := client.GetAssignedOrders(context.Background(), "agent-7")
	if err != nil {
		t.Fatalf("GetAssignedOrders: %v", err)
	}

	if gotPath != "/orders/assigned" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotAgent != "agent-7" {
		t.Errorf("agent = %q", gotAgent)
	}

	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	o := orders[0]
	if o.ID != "65a1b2c3" || o.OrderNumber != "ORD-1042" {
		t.Errorf("ids = %q/%q", o.ID, o.OrderNumber)
	}
	if o.Status != model.StatusPreparing {
		t.Errorf("status = %q", o.Status)
	}
	if o.PaymentMethod != model.PaymentCOD {
		t.Errorf("payment method = %q", o.PaymentMethod)
	}
	if o.Customer.Name != "Asha" {
		t.Errorf("customer = %q", o.Customer.Name)
	}
	if len(o.Items) != 1 || o.Items[0].PriceRupees != 180 {
		t.Errorf("items = %+v", o.Items)
	}
	if o.Financials.TotalRupees != 408 {
		t.Errorf("total = %d", o.Financials.TotalRupees)
	}
	if o.UpdatedAt.IsZero() {
		t.Error("expected parsed UpdatedAt")
	}
}

func TestOrderWireDefaults(t *testing.T) {
	// Server omits customer, statuses and timestamps entirely.
	w := orderWire{ID: "x", OrderNumber: "ORD-1"}
	o := w.ToModel()

	if o.Status != model.StatusPending {
		t.Errorf("status = %q, want Pending default", o.Status)
	}
	if o.PaymentStatus != model.PaymentPending {
		t.Errorf("payment status = %q, want Pending default", o.PaymentStatus)
	}
	if o.Customer.Name != model.PlaceholderCustomerName {
		t.Errorf("customer = %q, want placeholder", o.Customer.Name)
	}
	if !o.UpdatedAt.IsZero() {
		t.Error("expected zero UpdatedAt for missing timestamp")
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithBearerToken("tok"))
	err := client.UpdateOrderStatus(context.Background(), "65a1b2c3", model.StatusOutForDelivery)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/orders/65a1b2c3/status" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["status"] != "Out for delivery" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"orders": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
	if _, err := client.GetPendingPaymentOrders(context.Background()); err != nil {
		t.Fatalf("GetPendingPaymentOrders: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
	_, err := client.GetPendingPaymentOrders(context.Background())

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("403 should not be retryable")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
