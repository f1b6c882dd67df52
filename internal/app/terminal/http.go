package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pos-system/internal/common/logger"
	"pos-system/internal/common/metrics"
	"pos-system/internal/domain"
	"pos-system/internal/pos/cart"
	"pos-system/internal/pos/checkout"
	"pos-system/internal/pos/connectivity"
	"pos-system/internal/pos/syncer"
)

// customerLookup resolves a phone number against the order service.
type customerLookup interface {
	LookupCustomer(ctx context.Context, phone string) (domain.CustomerLookupResponse, error)
}

type Handler struct {
	cart     *cart.Cart
	checkout *checkout.Service
	engine   *syncer.Engine
	mon      *connectivity.Monitor
	lookup   customerLookup
	met      *metrics.Registry
	lg       *logger.Logger
}

func NewHandler(c *cart.Cart, co *checkout.Service, eng *syncer.Engine, mon *connectivity.Monitor, lookup customerLookup, met *metrics.Registry, lg *logger.Logger) *Handler {
	return &Handler{cart: c, checkout: co, engine: eng, mon: mon, lookup: lookup, met: met, lg: lg}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/cart", h.Cart)
	mux.HandleFunc("/cart/quantity", h.CartQuantity)
	mux.HandleFunc("/checkout", h.Checkout)
	mux.HandleFunc("/sync", h.Sync)
	mux.HandleFunc("/status", h.Status)
	mux.HandleFunc("/customers", h.Customers)
	mux.Handle("/metrics", h.met.Handler())
	return mux
}

type cartItemRequest struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
}

type cartView struct {
	Items []domain.CartLine `json:"items"`
	Total float64           `json:"total"`
}

func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req cartItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.ID == "" || req.UnitPrice <= 0 {
			http.Error(w, "id and a positive unit_price are required", http.StatusBadRequest)
			return
		}
		h.cart.AddItem(req.ID, req.Name, req.UnitPrice)
	case http.MethodDelete:
		h.cart.Clear()
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, cartView{Items: h.cart.Lines(), Total: h.cart.Total()})
}

func (h *Handler) CartQuantity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	h.cart.UpdateQuantity(req.ID, req.Quantity)
	writeJSON(w, http.StatusOK, cartView{Items: h.cart.Lines(), Total: h.cart.Total()})
}

type checkoutRequest struct {
	OrderType       string                 `json:"order_type"`
	TableNumber     string                 `json:"table_number,omitempty"`
	DeliveryAddress string                 `json:"delivery_address,omitempty"`
	Customer        *domain.LoyaltyAccount `json:"customer,omitempty"`
	PointsToRedeem  int                    `json:"points_to_redeem,omitempty"`
}

type checkoutResponse struct {
	LocalID      string  `json:"local_id"`
	Submitted    bool    `json:"submitted"`
	OrderNumber  string  `json:"order_number,omitempty"`
	Total        float64 `json:"total"`
	PointsEarned int     `json:"points_earned"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	res, err := h.checkout.Checkout(r.Context(), checkout.Request{
		OrderType:       req.OrderType,
		TableNumber:     req.TableNumber,
		DeliveryAddress: req.DeliveryAddress,
		Customer:        req.Customer,
		PointsToRedeem:  req.PointsToRedeem,
	})
	switch {
	case errors.Is(err, checkout.ErrCartEmpty),
		errors.Is(err, checkout.ErrTableRequired),
		errors.Is(err, checkout.ErrAddressRequired),
		errors.Is(err, checkout.ErrBadOrderType):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrRejected):
		http.Error(w, "order rejected by server", http.StatusConflict)
		return
	case errors.Is(err, domain.ErrPersistence):
		http.Error(w, "local storage failure, order not captured", http.StatusInternalServerError)
		return
	case err != nil:
		h.lg.Error("checkout_failed", err, nil)
		http.Error(w, "checkout failed", http.StatusInternalServerError)
		return
	}
	resp := checkoutResponse{
		LocalID:      res.Order.LocalID,
		Submitted:    res.Submitted,
		Total:        res.Order.Total,
		PointsEarned: res.Quote.PointsEarned,
	}
	if res.Ack != nil {
		resp.OrderNumber = res.Ack.OrderNumber
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Sync kicks a drain by hand. Safe to mash: a drain already in flight
// coalesces into a no-op.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report, err := h.engine.Drain(r.Context())
	if err != nil {
		h.lg.Error("manual_sync_failed", err, nil)
		http.Error(w, "sync failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.mon.Snapshot())
}

// Customers proxies phone lookups to the order service so the UI only
// ever talks to the terminal. Offline lookups report 503; the operator
// falls back to a guest sale.
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		http.Error(w, "phone query parameter is required", http.StatusBadRequest)
		return
	}
	resp, err := h.lookup.LookupCustomer(r.Context(), phone)
	if errors.Is(err, domain.ErrNetwork) {
		h.mon.ReportOffline()
		http.Error(w, "customer lookup unavailable offline", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.lg.Error("customer_lookup_failed", err, map[string]any{"phone": phone})
		http.Error(w, "failed to look up customer", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
