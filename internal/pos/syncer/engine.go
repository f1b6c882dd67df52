package syncer

import (
	"context"
	"errors"
	"sync/atomic"

	"pos-system/internal/common/logger"
	"pos-system/internal/common/metrics"
	"pos-system/internal/domain"
	"pos-system/internal/pos/store"
)

// Submitter sends one order to the order service. Implemented by the POS
// client; duplicated submissions are tolerated server-side via the
// order's LocalID.
type Submitter interface {
	Submit(ctx context.Context, order domain.PendingOrder) (domain.SubmitOrderResponse, error)
}

// StatusSink receives the pending-order count after each drain.
// Implemented by the connectivity monitor.
type StatusSink interface {
	SetPending(n int)
}

// Engine replays queued orders against the order service. Replay is
// strictly sequential in creation order: redeeming points must be applied
// in the order they were committed, or a later order would see a stale
// balance.
type Engine struct {
	store  store.Store
	submit Submitter
	status StatusSink
	lg     *logger.Logger
	met    *metrics.Registry

	draining atomic.Bool
}

func New(st store.Store, submit Submitter, status StatusSink, lg *logger.Logger, met *metrics.Registry) *Engine {
	return &Engine{store: st, submit: submit, status: status, lg: lg, met: met}
}

// Report summarizes one drain cycle.
type Report struct {
	Attempted int
	Synced    int
	Rejected  int
	// Aborted is set when a network failure cut the batch short; the rest
	// of the queue waits for the next online transition.
	Aborted bool
	// Coalesced is set when another drain was already in flight and this
	// trigger became a no-op.
	Coalesced bool
}

// Drain submits every unsynced order, oldest first. A second trigger while
// a drain is in flight is coalesced, never run in parallel: a concurrent
// drain could double-submit. The unsynced list is snapshotted once up
// front, so orders enqueued mid-drain are left for the next cycle and the
// batch always terminates.
func (e *Engine) Drain(ctx context.Context) (Report, error) {
	if !e.draining.CompareAndSwap(false, true) {
		return Report{Coalesced: true}, nil
	}
	defer e.draining.Store(false)

	pending, err := e.store.ListUnsynced(ctx)
	if err != nil {
		return Report{}, err
	}
	e.met.Drains.Inc()
	e.lg.Info("drain_started", map[string]any{"pending": len(pending)})

	var rep Report
	for _, o := range pending {
		rep.Attempted++
		_, err := e.submit.Submit(ctx, o)
		switch {
		case err == nil:
			if merr := e.store.MarkSynced(ctx, o.LocalID); merr != nil {
				// the server has the order; resubmitting next cycle is safe
				e.lg.Error("mark_synced_failed", merr, map[string]any{"local_id": o.LocalID})
			} else {
				rep.Synced++
				e.met.OrdersSynced.Inc()
				e.lg.Info("order_synced", map[string]any{"local_id": o.LocalID})
			}
		case errors.Is(err, domain.ErrRejected):
			// permanently invalid order: flag it and move on, blind retry
			// would starve the queue
			rep.Rejected++
			e.met.SyncRejected.Inc()
			e.lg.Error("order_rejected", err, map[string]any{"local_id": o.LocalID})
			if merr := e.store.MarkFailed(ctx, o.LocalID); merr != nil {
				e.lg.Error("mark_failed_failed", merr, map[string]any{"local_id": o.LocalID})
			}
		default:
			// connectivity likely dropped again; stop and wait for the
			// next transition
			rep.Aborted = true
			e.met.OrdersFailed.Inc()
			e.lg.Warn("drain_aborted", map[string]any{"local_id": o.LocalID, "error": err.Error()})
		}
		if rep.Aborted {
			break
		}
	}

	if n, cerr := e.store.CountUnsynced(ctx); cerr == nil {
		e.status.SetPending(n)
	} else {
		e.lg.Error("count_unsynced_failed", cerr, nil)
	}
	e.lg.Info("drain_finished", map[string]any{
		"attempted": rep.Attempted, "synced": rep.Synced,
		"rejected": rep.Rejected, "aborted": rep.Aborted,
	})
	return rep, nil
}
