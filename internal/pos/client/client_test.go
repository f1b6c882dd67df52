package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pos-system/internal/domain"
)

func testOrder() domain.PendingOrder {
	return domain.PendingOrder{
		LocalID:   "ORD-1",
		Status:    domain.StatusPending,
		OrderType: domain.OrderTypeTakeout,
		Items:     []domain.CartLine{{ID: "A", Name: "Griot", UnitPrice: 10, Quantity: 2}},
		Subtotal:  20,
		Total:     20,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSubmit_Success(t *testing.T) {
	var got domain.SubmitOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(domain.SubmitOrderResponse{OrderNumber: "ORD_20250601_001", Status: "pending", TotalAmount: 20})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "staff-1", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := c.Submit(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.OrderNumber != "ORD_20250601_001" {
		t.Fatalf("unexpected ack %+v", resp)
	}
	if got.LocalID != "ORD-1" || got.StaffID != "staff-1" {
		t.Fatalf("payload missing ids: %+v", got)
	}
}

func TestSubmit_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"validation rejection", http.StatusBadRequest, domain.ErrRejected},
		{"conflict rejection", http.StatusConflict, domain.ErrRejected},
		{"server trouble is retryable", http.StatusInternalServerError, domain.ErrNetwork},
		{"bad gateway is retryable", http.StatusBadGateway, domain.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, _ := New(srv.URL, "staff-1", time.Second)
			_, err := c.Submit(context.Background(), testOrder())
			if !errors.Is(err, tt.want) {
				t.Fatalf("status %d: want %v, got %v", tt.status, tt.want, err)
			}
		})
	}
}

func TestSubmit_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c, _ := New(srv.URL, "staff-1", time.Second)
	_, err := c.Submit(context.Background(), testOrder())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("want ErrNetwork, got %v", err)
	}
}

func TestSubmit_TimeoutIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() { close(block); srv.Close() }()

	c, _ := New(srv.URL, "staff-1", 50*time.Millisecond)
	_, err := c.Submit(context.Background(), testOrder())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("timed-out submission must be a network failure, got %v", err)
	}
}

func TestLookupCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("phone") == "555" {
			_ = json.NewEncoder(w).Encode(domain.CustomerLookupResponse{ID: "c1", Name: "Marie", Points: 300})
			return
		}
		_ = json.NewEncoder(w).Encode(domain.CustomerLookupResponse{Points: 0})
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "staff-1", time.Second)

	known, err := c.LookupCustomer(context.Background(), "555")
	if err != nil || known.Points != 300 {
		t.Fatalf("known lookup: %+v err=%v", known, err)
	}
	unknown, err := c.LookupCustomer(context.Background(), "000")
	if err != nil || unknown.Points != 0 || unknown.ID != "" {
		t.Fatalf("unknown customer should be the zero default: %+v err=%v", unknown, err)
	}
}

func TestProbe(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/health-check" {
			t.Fatalf("unexpected probe %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer up.Close()

	c, _ := New(up.URL, "staff-1", time.Second)
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("probe against healthy server: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	c2, _ := New(down.URL, "staff-1", time.Second)
	if err := c2.Probe(context.Background()); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("unhealthy probe must be a network failure, got %v", err)
	}
}
