package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pos-system/internal/common/config"
	"pos-system/internal/common/db"
	"pos-system/internal/common/httpx"
	"pos-system/internal/common/logger"
	"pos-system/internal/common/mq"
	"pos-system/internal/domain"
	"pos-system/internal/pos/loyalty"
	"pos-system/internal/repository"
)

type Handler struct {
	service ServiceInterface
	lg      *logger.Logger
}

func NewHandler(s ServiceInterface, lg *logger.Logger) *Handler {
	return &Handler{service: s, lg: lg}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", h.AddOrder)
	mux.HandleFunc("/customers", h.LookupCustomer)
	mux.HandleFunc("/health-check", h.HealthCheck)
	return mux
}

func (h *Handler) AddOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req domain.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.AddOrder(r.Context(), req)
	if errors.Is(err, ErrInvalidOrder) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.lg.Error("add_order_failed", err, map[string]any{"local_id": req.LocalID})
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) LookupCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		http.Error(w, "phone query parameter is required", http.StatusBadRequest)
		return
	}
	resp, err := h.service.LookupCustomer(r.Context(), phone)
	if err != nil {
		h.lg.Error("customer_lookup_failed", err, map[string]any{"phone": phone})
		http.Error(w, "failed to look up customer", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck answers terminal connectivity probes. HEAD keeps the probe
// cheap; GET reports the same thing for humans.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Run wires the order service: Postgres for confirmed orders, RabbitMQ
// for the kitchen feed, HTTP for the terminals.
func Run(ctx context.Context, cfg config.App, port int) error {
	lg := logger.New("order-service")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := repository.EnsureSchema(ctx, conn); err != nil {
		return err
	}

	rmq, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return err
	}
	defer rmq.Close()
	if err := rmq.DeclareAll(); err != nil {
		return err
	}

	calc := loyalty.NewCalculator(cfg.Loyalty.PointsPerUnit, cfg.Loyalty.RedeemRate)
	svc := NewService(repository.NewOrdersPG(conn), rmq, calc, lg)
	h := NewHandler(svc, lg)

	lg.Info("order_service_started", map[string]any{"port": port})
	srv := httpx.New(":"+strconv.Itoa(port), h.Routes())
	return srv.Run(ctx)
}
