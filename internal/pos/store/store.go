package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pos-system/internal/domain"
)

// Store is the durable queue of orders captured on the terminal. It is an
// append-only log with a mutable completion marker: synced orders are kept
// as history, never deleted.
type Store interface {
	// Enqueue persists an order with SyncFlag=0. Must succeed with no
	// network; failures surface as domain.ErrPersistence.
	Enqueue(ctx context.Context, order domain.PendingOrder) error
	// ListUnsynced returns queued orders oldest first. Terminally failed
	// orders are excluded: they are not retried.
	ListUnsynced(ctx context.Context) ([]domain.PendingOrder, error)
	// MarkSynced flips SyncFlag to 1. Safe to call twice.
	MarkSynced(ctx context.Context, localID string) error
	// MarkFailed records a terminal server rejection; the order leaves the
	// retry queue but stays on disk for operator review.
	MarkFailed(ctx context.Context, localID string) error
	CountUnsynced(ctx context.Context) (int, error)
	Get(ctx context.Context, localID string) (domain.PendingOrder, bool, error)
	Close() error
}

// Open picks a backend by name. Pebble is the default; sqlite and memory
// satisfy the same contract.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", "pebble":
		return OpenPebble(dir)
	case "sqlite":
		return OpenSQLite(dir)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPersistence)
}

// Memory keeps everything in a map; used in tests and as the fallback
// backend.
type Memory struct {
	mu     sync.Mutex
	orders map[string]domain.PendingOrder
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]domain.PendingOrder)}
}

func (m *Memory) Enqueue(_ context.Context, order domain.PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.SyncFlag = 0
	m.orders[order.LocalID] = order
	return nil
}

func (m *Memory) ListUnsynced(_ context.Context) ([]domain.PendingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PendingOrder
	for _, o := range m.orders {
		if o.SyncFlag == 0 && o.Status != domain.StatusFailed {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) MarkSynced(_ context.Context, localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[localID]
	if !ok {
		return persistErr("mark synced", fmt.Errorf("order %s not found", localID))
	}
	o.SyncFlag = 1
	o.Status = domain.StatusCompleted
	m.orders[localID] = o
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[localID]
	if !ok {
		return persistErr("mark failed", fmt.Errorf("order %s not found", localID))
	}
	o.Status = domain.StatusFailed
	m.orders[localID] = o
	return nil
}

func (m *Memory) CountUnsynced(ctx context.Context) (int, error) {
	list, err := m.ListUnsynced(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (m *Memory) Get(_ context.Context, localID string) (domain.PendingOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[localID]
	return o, ok, nil
}

func (m *Memory) Close() error { return nil }
