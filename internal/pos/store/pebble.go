package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"pos-system/internal/domain"
)

// Key layout:
//
//	o:<localID>                    -> JSON PendingOrder
//	u:<createdAt nanos, padded>:<localID> -> nil (unsynced index, time-ordered)
//
// The index gives FIFO ListUnsynced without scanning history; MarkSynced
// and MarkFailed both remove the index entry, only MarkSynced flips the
// flag on the record.
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Join(filepath.Clean(dir), "orders.pebble"), &pebble.Options{})
	if err != nil {
		return nil, persistErr("pebble open", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func recordKey(localID string) []byte { return []byte("o:" + localID) }

func indexKey(o domain.PendingOrder) []byte {
	return []byte(fmt.Sprintf("u:%020d:%s", o.CreatedAt.UnixNano(), o.LocalID))
}

func (p *PebbleStore) Enqueue(_ context.Context, order domain.PendingOrder) error {
	order.SyncFlag = 0
	val, err := json.Marshal(order)
	if err != nil {
		return persistErr("encode order", err)
	}
	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Set(recordKey(order.LocalID), val, nil); err != nil {
		return persistErr("enqueue", err)
	}
	if err := b.Set(indexKey(order), nil, nil); err != nil {
		return persistErr("enqueue index", err)
	}
	// Sync commit: the order must survive a crash before checkout reports
	// success.
	if err := b.Commit(pebble.Sync); err != nil {
		return persistErr("enqueue commit", err)
	}
	return nil
}

func (p *PebbleStore) get(localID string) (domain.PendingOrder, bool, error) {
	v, closer, err := p.db.Get(recordKey(localID))
	if err == pebble.ErrNotFound {
		return domain.PendingOrder{}, false, nil
	}
	if err != nil {
		return domain.PendingOrder{}, false, persistErr("get order", err)
	}
	defer closer.Close()
	var o domain.PendingOrder
	if err := json.Unmarshal(v, &o); err != nil {
		return domain.PendingOrder{}, false, persistErr("decode order", err)
	}
	return o, true, nil
}

func (p *PebbleStore) Get(_ context.Context, localID string) (domain.PendingOrder, bool, error) {
	return p.get(localID)
}

func (p *PebbleStore) ListUnsynced(_ context.Context) ([]domain.PendingOrder, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("u:"),
		UpperBound: []byte("u;"), // ';' is the byte after ':'
	})
	if err != nil {
		return nil, persistErr("unsynced iter", err)
	}
	defer it.Close()

	var out []domain.PendingOrder
	for it.First(); it.Valid(); it.Next() {
		key := string(it.Key())
		localID := key[len("u:")+20+1:]
		o, ok, err := p.get(localID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	if err := it.Error(); err != nil {
		return nil, persistErr("unsynced iter", err)
	}
	return out, nil
}

func (p *PebbleStore) CountUnsynced(ctx context.Context) (int, error) {
	list, err := p.ListUnsynced(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (p *PebbleStore) MarkSynced(_ context.Context, localID string) error {
	o, ok, err := p.get(localID)
	if err != nil {
		return err
	}
	if !ok {
		return persistErr("mark synced", fmt.Errorf("order %s not found", localID))
	}
	if o.SyncFlag == 1 {
		// already confirmed, second call is a no-op
		return nil
	}
	idx := indexKey(o)
	o.SyncFlag = 1
	o.Status = domain.StatusCompleted
	return p.rewrite(o, idx)
}

func (p *PebbleStore) MarkFailed(_ context.Context, localID string) error {
	o, ok, err := p.get(localID)
	if err != nil {
		return err
	}
	if !ok {
		return persistErr("mark failed", fmt.Errorf("order %s not found", localID))
	}
	idx := indexKey(o)
	o.Status = domain.StatusFailed
	return p.rewrite(o, idx)
}

func (p *PebbleStore) rewrite(o domain.PendingOrder, dropIndex []byte) error {
	val, err := json.Marshal(o)
	if err != nil {
		return persistErr("encode order", err)
	}
	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Set(recordKey(o.LocalID), val, nil); err != nil {
		return persistErr("rewrite", err)
	}
	if err := b.Delete(dropIndex, nil); err != nil {
		return persistErr("drop index", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return persistErr("rewrite commit", err)
	}
	return nil
}
