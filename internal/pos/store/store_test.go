package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-system/internal/domain"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	pb, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	sq, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	m := map[string]Store{
		"memory": NewMemory(),
		"pebble": pb,
		"sqlite": sq,
	}
	t.Cleanup(func() {
		for _, s := range m {
			_ = s.Close()
		}
	})
	return m
}

func order(id string, at time.Time) domain.PendingOrder {
	return domain.PendingOrder{
		LocalID:   id,
		Status:    domain.StatusPending,
		OrderType: domain.OrderTypeTakeout,
		Items:     []domain.CartLine{{ID: "A", Name: "Griot", UnitPrice: 10, Quantity: 1}},
		Subtotal:  10,
		Total:     10,
		CreatedAt: at,
	}
}

func TestListUnsynced_FIFO(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// enqueue out of creation order on purpose
			for _, o := range []domain.PendingOrder{
				order("O2", base.Add(2 * time.Second)),
				order("O1", base.Add(1 * time.Second)),
				order("O3", base.Add(3 * time.Second)),
			} {
				if err := s.Enqueue(ctx, o); err != nil {
					t.Fatalf("enqueue: %v", err)
				}
			}
			got, err := s.ListUnsynced(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("want 3 pending, got %d", len(got))
			}
			for i, want := range []string{"O1", "O2", "O3"} {
				if got[i].LocalID != want {
					t.Fatalf("position %d: want %s, got %s", i, want, got[i].LocalID)
				}
			}
		})
	}
}

func TestMarkSynced_Idempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Enqueue(ctx, order("O1", time.Now().UTC())); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			if err := s.MarkSynced(ctx, "O1"); err != nil {
				t.Fatalf("first mark: %v", err)
			}
			if err := s.MarkSynced(ctx, "O1"); err != nil {
				t.Fatalf("second mark must be a no-op, got %v", err)
			}
			o, ok, err := s.Get(ctx, "O1")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if o.SyncFlag != 1 || o.Status != domain.StatusCompleted {
				t.Fatalf("unexpected state after double mark: flag=%d status=%s", o.SyncFlag, o.Status)
			}
			n, err := s.CountUnsynced(ctx)
			if err != nil || n != 0 {
				t.Fatalf("count=%d err=%v, want 0", n, err)
			}
		})
	}
}

func TestMarkFailed_LeavesRetryQueue(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Enqueue(ctx, order("O1", base))
			_ = s.Enqueue(ctx, order("O2", base.Add(time.Second)))

			if err := s.MarkFailed(ctx, "O1"); err != nil {
				t.Fatalf("mark failed: %v", err)
			}
			got, err := s.ListUnsynced(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 1 || got[0].LocalID != "O2" {
				t.Fatalf("failed order must not be retried, got %+v", got)
			}
			// still on disk for operator review
			o, ok, _ := s.Get(ctx, "O1")
			if !ok || o.Status != domain.StatusFailed || o.SyncFlag != 0 {
				t.Fatalf("failed order should be kept: ok=%v status=%s flag=%d", ok, o.Status, o.SyncFlag)
			}
		})
	}
}

func TestMarkSynced_UnknownOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.MarkSynced(context.Background(), "nope")
			if !errors.Is(err, domain.ErrPersistence) {
				t.Fatalf("want ErrPersistence, got %v", err)
			}
		})
	}
}

func TestPebble_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenPebble(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Enqueue(ctx, order("O1", time.Now().UTC())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenPebble(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	n, err := s.CountUnsynced(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count after reopen=%d err=%v, want 1", n, err)
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Enqueue(ctx, order("O1", time.Now().UTC())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	n, err := s.CountUnsynced(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count after reopen=%d err=%v, want 1", n, err)
	}
}

func TestOpen_Dispatch(t *testing.T) {
	s, err := Open("memory", "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("want *Memory, got %T", s)
	}
	if _, err := Open("bolt", ""); err == nil {
		t.Fatalf("unknown backend must error")
	}
}
