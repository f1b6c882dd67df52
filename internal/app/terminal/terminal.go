package terminal

import (
	"context"
	"strconv"
	"time"

	"pos-system/internal/common/config"
	"pos-system/internal/common/httpx"
	"pos-system/internal/common/logger"
	"pos-system/internal/common/metrics"
	"pos-system/internal/domain"
	"pos-system/internal/pos/cart"
	"pos-system/internal/pos/checkout"
	"pos-system/internal/pos/client"
	"pos-system/internal/pos/connectivity"
	"pos-system/internal/pos/loyalty"
	"pos-system/internal/pos/store"
	"pos-system/internal/pos/syncer"
)

// Run starts the POS terminal: the durable offline queue, the
// connectivity monitor, the sync engine, and the local HTTP surface the
// register UI talks to.
func Run(ctx context.Context, cfg config.App, port int) error {
	lg := logger.New("pos-terminal")

	st, err := store.Open(cfg.Terminal.Storage, cfg.Terminal.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	cli, err := client.New(cfg.Terminal.ServerURL, cfg.Terminal.StaffID,
		time.Duration(cfg.Terminal.SubmitSeconds)*time.Second)
	if err != nil {
		return err
	}

	met := metrics.NewRegistry()
	mon := connectivity.New(cli, time.Duration(cfg.Terminal.ProbeSeconds)*time.Second, lg, met)
	defer mon.Close()

	engine := syncer.New(st, cli, mon, lg, met)
	mon.OnOnline(func(ctx context.Context) {
		if _, err := engine.Drain(ctx); err != nil {
			lg.Error("drain_failed", err, nil)
		}
	})
	unsub := mon.Subscribe(func(snap domain.ConnectivitySnapshot) {
		lg.Info("connectivity_changed", map[string]any{
			"is_online":      snap.IsOnline,
			"pending_orders": snap.PendingOrders,
		})
	})
	defer unsub()

	// Orders queued by a previous session drain as soon as the first
	// probe confirms the server; the startup state is already online so
	// no transition would fire for them otherwise.
	if n, err := st.CountUnsynced(ctx); err == nil {
		mon.SetPending(n)
		if n > 0 {
			go func() {
				if _, err := engine.Drain(ctx); err != nil {
					lg.Error("startup_drain_failed", err, nil)
				}
			}()
		}
	}
	mon.Start(ctx)

	calc := loyalty.NewCalculator(cfg.Loyalty.PointsPerUnit, cfg.Loyalty.RedeemRate)
	c := cart.New()
	co := checkout.NewService(c, st, cli, mon, calc, lg)
	h := NewHandler(c, co, engine, mon, cli, met, lg)

	lg.Info("terminal_started", map[string]any{
		"port":    port,
		"server":  cfg.Terminal.ServerURL,
		"storage": cfg.Terminal.Storage,
	})
	srv := httpx.New(":"+strconv.Itoa(port), h.Routes())
	return srv.Run(ctx)
}
