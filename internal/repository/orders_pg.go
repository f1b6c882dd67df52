package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pos-system/internal/common/db"
	"pos-system/internal/domain"
)

// ErrNoCustomer is returned by customer lookups that match nothing.
var ErrNoCustomer = errors.New("customer not found")

// CreatedOrder is the outcome of a create. Duplicate reports that the
// local id was already persisted by an earlier submission; the stored
// values are returned unchanged and no side effects run again.
type CreatedOrder struct {
	OrderNumber  string
	PointsEarned int
	Priority     int
	Duplicate    bool
}

type Orders interface {
	CreateOrder(ctx context.Context, req domain.SubmitOrderRequest, pointsEarned, priority int) (CreatedOrder, error)
	GetCustomer(ctx context.Context, id string) (domain.LoyaltyAccount, error)
	FindCustomerByPhone(ctx context.Context, phone string) (domain.LoyaltyAccount, error)
}

type ordersPG struct {
	conn *db.Conn
}

func NewOrdersPG(conn *db.Conn) Orders { return &ordersPG{conn: conn} }

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	phone         TEXT UNIQUE,
	points        INT  NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
	id               BIGSERIAL PRIMARY KEY,
	local_id         TEXT UNIQUE NOT NULL,
	order_number     TEXT UNIQUE NOT NULL,
	order_type       TEXT NOT NULL,
	table_number     TEXT,
	delivery_address TEXT,
	customer_id      TEXT REFERENCES customers(id),
	staff_id         TEXT NOT NULL,
	subtotal         NUMERIC(10,2) NOT NULL,
	total_amount     NUMERIC(10,2) NOT NULL,
	points_used      INT NOT NULL DEFAULT 0,
	points_earned    INT NOT NULL DEFAULT 0,
	priority         INT NOT NULL DEFAULT 1,
	status           TEXT NOT NULL DEFAULT 'received',
	placed_at        TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_items (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id),
	name       TEXT NOT NULL,
	quantity   INT NOT NULL,
	price      NUMERIC(10,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_status_log (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id),
	status     TEXT NOT NULL,
	changed_by TEXT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS loyalty_transactions (
	id          BIGSERIAL PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	order_id    BIGINT NOT NULL REFERENCES orders(id),
	kind        TEXT NOT NULL,
	points      INT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables on startup so a fresh database works
// without a separate migration step.
func EnsureSchema(ctx context.Context, conn *db.Conn) error {
	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateOrder persists a submitted order in one transaction. It is
// idempotent on req.LocalID: replays of an already confirmed order return
// the original order number without touching points or inventory again.
func (o *ordersPG) CreateOrder(ctx context.Context, req domain.SubmitOrderRequest, pointsEarned, priority int) (CreatedOrder, error) {
	tx, err := o.conn.Begin(ctx)
	if err != nil {
		return CreatedOrder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. Idempotency check by client-generated id.
	var existing CreatedOrder
	err = tx.QueryRow(ctx,
		`SELECT order_number, points_earned, priority FROM orders WHERE local_id = $1`,
		req.LocalID,
	).Scan(&existing.OrderNumber, &existing.PointsEarned, &existing.Priority)
	switch {
	case err == nil:
		existing.Duplicate = true
		return existing, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return CreatedOrder{}, fmt.Errorf("failed to check local id: %w", err)
	}

	// 2. Generate order number (ORD_YYYYMMDD_NNN). The count query runs
	// inside the transaction; a unique constraint on order_number catches
	// the rare race between two services.
	today := time.Now().UTC().Format("20060102")
	var seq int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE order_number LIKE 'ORD_' || $1 || '_%'`,
		today,
	).Scan(&seq)
	if err != nil {
		return CreatedOrder{}, fmt.Errorf("failed to get order count: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD_%s_%03d", today, seq+1)

	// 3. Insert order.
	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders
			(local_id, order_number, order_type, table_number, delivery_address, customer_id, staff_id,
			 subtotal, total_amount, points_used, points_earned, priority, status, placed_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'received', $13)
		RETURNING id
	`,
		req.LocalID, orderNumber, req.OrderType, req.TableNumber, req.DeliveryAddress,
		req.CustomerID, req.StaffID, req.Subtotal, req.Total,
		req.PointsUsed, pointsEarned, priority, req.CreatedAt,
	).Scan(&orderID)
	if err != nil {
		return CreatedOrder{}, fmt.Errorf("failed to insert order: %w", err)
	}

	// 4. Insert order items.
	for _, item := range req.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, name, quantity, price)
			VALUES ($1, $2, $3, $4)
		`, orderID, item.Name, item.Quantity, item.UnitPrice)
		if err != nil {
			return CreatedOrder{}, fmt.Errorf("failed to insert order item %s: %w", item.Name, err)
		}
	}

	// 5. Status log.
	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by)
		VALUES ($1, 'received', 'order-service')
	`, orderID)
	if err != nil {
		return CreatedOrder{}, fmt.Errorf("failed to insert order status log: %w", err)
	}

	// 6. Loyalty: apply the net balance change and record both legs.
	if req.CustomerID != nil {
		if req.PointsUsed > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO loyalty_transactions (customer_id, order_id, kind, points)
				VALUES ($1, $2, 'REDEEMED', $3)
			`, *req.CustomerID, orderID, -req.PointsUsed)
			if err != nil {
				return CreatedOrder{}, fmt.Errorf("failed to record redemption: %w", err)
			}
		}
		if pointsEarned > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO loyalty_transactions (customer_id, order_id, kind, points)
				VALUES ($1, $2, 'EARNED', $3)
			`, *req.CustomerID, orderID, pointsEarned)
			if err != nil {
				return CreatedOrder{}, fmt.Errorf("failed to record earning: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `
			UPDATE customers SET points = points + $1 WHERE id = $2
		`, pointsEarned-req.PointsUsed, *req.CustomerID)
		if err != nil {
			return CreatedOrder{}, fmt.Errorf("failed to update customer points: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return CreatedOrder{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return CreatedOrder{OrderNumber: orderNumber, PointsEarned: pointsEarned, Priority: priority}, nil
}

func (o *ordersPG) GetCustomer(ctx context.Context, id string) (domain.LoyaltyAccount, error) {
	var acct domain.LoyaltyAccount
	err := o.conn.QueryRow(ctx,
		`SELECT id, name, points FROM customers WHERE id = $1`, id,
	).Scan(&acct.CustomerID, &acct.Name, &acct.PointsBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LoyaltyAccount{}, ErrNoCustomer
	}
	if err != nil {
		return domain.LoyaltyAccount{}, fmt.Errorf("failed to get customer: %w", err)
	}
	return acct, nil
}

func (o *ordersPG) FindCustomerByPhone(ctx context.Context, phone string) (domain.LoyaltyAccount, error) {
	var acct domain.LoyaltyAccount
	err := o.conn.QueryRow(ctx,
		`SELECT id, name, points FROM customers WHERE phone = $1`, phone,
	).Scan(&acct.CustomerID, &acct.Name, &acct.PointsBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LoyaltyAccount{}, ErrNoCustomer
	}
	if err != nil {
		return domain.LoyaltyAccount{}, fmt.Errorf("failed to find customer: %w", err)
	}
	return acct, nil
}
