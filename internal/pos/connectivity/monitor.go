package connectivity

import (
	"context"
	"sync"
	"time"

	"pos-system/internal/common/logger"
	"pos-system/internal/common/metrics"
	"pos-system/internal/domain"
)

// Prober verifies the backend is actually reachable. Satisfied by the POS
// client's health-check call.
type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor is a two-state machine (online/offline) fed by periodic probes
// and externally reported platform events. It starts optimistically
// online. The drain callback fires exactly once per offline-to-online
// transition, never once per probe.
type Monitor struct {
	probe    Prober
	interval time.Duration
	lg       *logger.Logger
	met      *metrics.Registry

	mu       sync.Mutex
	online   bool
	pending  int
	subs     map[int]func(domain.ConnectivitySnapshot)
	nextSub  int
	onOnline func(context.Context)
	started  bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(probe Prober, interval time.Duration, lg *logger.Logger, met *metrics.Registry) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	met.Online.Set(1)
	return &Monitor{
		probe:    probe,
		interval: interval,
		lg:       lg,
		met:      met,
		online:   true,
		subs:     make(map[int]func(domain.ConnectivitySnapshot)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnOnline registers the drain trigger. Must be set before Start.
func (m *Monitor) OnOnline(fn func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = fn
}

// Subscribe registers a listener for connectivity snapshots and returns
// its unsubscribe function.
func (m *Monitor) Subscribe(fn func(domain.ConnectivitySnapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Monitor) Snapshot() domain.ConnectivitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.ConnectivitySnapshot{IsOnline: m.online, PendingOrders: m.pending}
}

func (m *Monitor) Online() bool { return m.Snapshot().IsOnline }

// SetPending publishes a new pending-order count to listeners.
func (m *Monitor) SetPending(n int) {
	m.mu.Lock()
	if n < 0 {
		n = 0
	}
	m.pending = n
	snap := domain.ConnectivitySnapshot{IsOnline: m.online, PendingOrders: n}
	subs := m.listeners()
	m.mu.Unlock()

	m.met.PendingOrders.Set(float64(n))
	for _, fn := range subs {
		fn(snap)
	}
}

// ReportOnline is the hook for a platform-level "online" event. The
// platform flag alone is not trusted; the probe decides.
func (m *Monitor) ReportOnline(ctx context.Context) { m.runProbe(ctx) }

// ReportOffline records a platform-level "offline" event immediately,
// without probing.
func (m *Monitor) ReportOffline() { m.setOnline(context.Background(), false) }

// Start runs the probe loop until ctx is cancelled or Close is called.
// The first probe fires immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		m.runProbe(ctx)
		t := time.NewTicker(m.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-t.C:
				m.runProbe(ctx)
			}
		}
	}()
}

// Close detaches every listener and stops the probe loop. Safe to call
// more than once.
func (m *Monitor) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	started := m.started
	m.subs = make(map[int]func(domain.ConnectivitySnapshot))
	m.mu.Unlock()
	if started {
		<-m.done
	}
}

func (m *Monitor) runProbe(ctx context.Context) {
	if err := m.probe.Probe(ctx); err != nil {
		m.met.ProbeFailures.Inc()
		m.setOnline(ctx, false)
		return
	}
	m.setOnline(ctx, true)
}

func (m *Monitor) setOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var fire func(context.Context)
	if changed && online {
		fire = m.onOnline
	}
	snap := domain.ConnectivitySnapshot{IsOnline: online, PendingOrders: m.pending}
	var subs []func(domain.ConnectivitySnapshot)
	if changed {
		subs = m.listeners()
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.met.Online.Set(1)
	} else {
		m.met.Online.Set(0)
	}
	m.lg.Info("connectivity_changed", map[string]any{"online": online, "pending": snap.PendingOrders})
	for _, fn := range subs {
		fn(snap)
	}
	if fire != nil {
		go fire(ctx)
	}
}

// callers must hold mu
func (m *Monitor) listeners() []func(domain.ConnectivitySnapshot) {
	out := make([]func(domain.ConnectivitySnapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}
