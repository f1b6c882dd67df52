package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pos-system/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pending_orders (
	local_id   TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	sync_flag  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pending_orders_sync
	ON pending_orders(sync_flag, created_at);
`

// SQLiteStore keeps the queue in a single local database file. Busy
// timeout + WAL for concurrent readers while a drain writes.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistErr("mkdir", err)
	}
	dsn := filepath.Join(dir, "pos_offline.db") + "?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, persistErr("sqlite open", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, persistErr("sqlite schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Enqueue(ctx context.Context, order domain.PendingOrder) error {
	order.SyncFlag = 0
	payload, err := json.Marshal(order)
	if err != nil {
		return persistErr("encode order", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_orders (local_id, status, payload, created_at, sync_flag)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(local_id) DO NOTHING
	`, order.LocalID, string(order.Status), string(payload), order.CreatedAt.UnixNano())
	if err != nil {
		return persistErr("enqueue", err)
	}
	return nil
}

func (s *SQLiteStore) scanOrder(payload, status string, syncFlag int) (domain.PendingOrder, error) {
	var o domain.PendingOrder
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return domain.PendingOrder{}, persistErr("decode order", err)
	}
	// columns are authoritative for the mutable completion marker
	o.Status = domain.OrderStatus(status)
	o.SyncFlag = syncFlag
	return o, nil
}

func (s *SQLiteStore) ListUnsynced(ctx context.Context) ([]domain.PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload, status, sync_flag FROM pending_orders
		WHERE sync_flag = 0 AND status != ?
		ORDER BY created_at ASC
	`, string(domain.StatusFailed))
	if err != nil {
		return nil, persistErr("list unsynced", err)
	}
	defer rows.Close()

	var out []domain.PendingOrder
	for rows.Next() {
		var payload, status string
		var flag int
		if err := rows.Scan(&payload, &status, &flag); err != nil {
			return nil, persistErr("scan order", err)
		}
		o, err := s.scanOrder(payload, status, flag)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list unsynced", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_orders WHERE sync_flag = 0 AND status != ?
	`, string(domain.StatusFailed)).Scan(&n)
	if err != nil {
		return 0, persistErr("count unsynced", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, localID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_orders SET sync_flag = 1, status = ? WHERE local_id = ?
	`, string(domain.StatusCompleted), localID)
	if err != nil {
		return persistErr("mark synced", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistErr("mark synced", fmt.Errorf("order %s not found", localID))
	}
	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, localID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_orders SET status = ? WHERE local_id = ?
	`, string(domain.StatusFailed), localID)
	if err != nil {
		return persistErr("mark failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistErr("mark failed", fmt.Errorf("order %s not found", localID))
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, localID string) (domain.PendingOrder, bool, error) {
	var payload, status string
	var flag int
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, status, sync_flag FROM pending_orders WHERE local_id = ?
	`, localID).Scan(&payload, &status, &flag)
	if err == sql.ErrNoRows {
		return domain.PendingOrder{}, false, nil
	}
	if err != nil {
		return domain.PendingOrder{}, false, persistErr("get order", err)
	}
	o, err := s.scanOrder(payload, status, flag)
	if err != nil {
		return domain.PendingOrder{}, false, err
	}
	return o, true, nil
}
