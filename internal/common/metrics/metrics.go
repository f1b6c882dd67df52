package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Online        prometheus.Gauge
	PendingOrders prometheus.Gauge

	Drains        prometheus.Counter
	OrdersSynced  prometheus.Counter
	OrdersFailed  prometheus.Counter
	SyncRejected  prometheus.Counter
	ProbeFailures prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	online := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_online", Help: "1 when the order service is reachable"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_pending_orders", Help: "orders queued locally awaiting sync"})
	drains := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sync_drains_total", Help: "drain cycles started"})
	synced := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sync_orders_synced_total", Help: "orders confirmed by the server"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sync_orders_failed_total", Help: "orders that hit a network failure during sync"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sync_orders_rejected_total", Help: "orders the server rejected as invalid"})
	probeFail := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_probe_failures_total", Help: "health-check probes that failed"})

	r.MustRegister(online, pending, drains, synced, failed, rejected, probeFail)
	return &Registry{
		reg:           r,
		Online:        online,
		PendingOrders: pending,
		Drains:        drains,
		OrdersSynced:  synced,
		OrdersFailed:  failed,
		SyncRejected:  rejected,
		ProbeFailures: probeFail,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
