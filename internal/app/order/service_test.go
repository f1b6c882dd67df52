package order

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-system/internal/common/logger"
	"pos-system/internal/domain"
	"pos-system/internal/pos/loyalty"
	"pos-system/internal/repository"
)

type fakeRepo struct {
	created   []domain.SubmitOrderRequest
	customers map[string]domain.LoyaltyAccount
	byPhone   map[string]domain.LoyaltyAccount
	existing  map[string]repository.CreatedOrder
	seq       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[string]domain.LoyaltyAccount{},
		byPhone:   map[string]domain.LoyaltyAccount{},
		existing:  map[string]repository.CreatedOrder{},
	}
}

func (f *fakeRepo) CreateOrder(_ context.Context, req domain.SubmitOrderRequest, pointsEarned, priority int) (repository.CreatedOrder, error) {
	if c, ok := f.existing[req.LocalID]; ok {
		c.Duplicate = true
		return c, nil
	}
	f.seq++
	c := repository.CreatedOrder{
		OrderNumber:  fmt.Sprintf("ORD_%s_%03d", time.Now().UTC().Format("20060102"), f.seq),
		PointsEarned: pointsEarned,
		Priority:     priority,
	}
	f.created = append(f.created, req)
	f.existing[req.LocalID] = c
	return c, nil
}

func (f *fakeRepo) GetCustomer(_ context.Context, id string) (domain.LoyaltyAccount, error) {
	acct, ok := f.customers[id]
	if !ok {
		return domain.LoyaltyAccount{}, repository.ErrNoCustomer
	}
	return acct, nil
}

func (f *fakeRepo) FindCustomerByPhone(_ context.Context, phone string) (domain.LoyaltyAccount, error) {
	acct, ok := f.byPhone[phone]
	if !ok {
		return domain.LoyaltyAccount{}, repository.ErrNoCustomer
	}
	return acct, nil
}

type fakePublisher struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakePublisher) PublishPersistent(_ context.Context, _, key, _ string, _ uint8, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, body)
	return nil
}

func newTestService(repo *fakeRepo, pub *fakePublisher) *Service {
	lg := logger.NewWriter("order-service", io.Discard)
	return NewService(repo, pub, loyalty.NewCalculator(1, 100), lg)
}

func takeoutReq(localID string, price float64, qty int) domain.SubmitOrderRequest {
	return domain.SubmitOrderRequest{
		LocalID:   localID,
		OrderType: domain.OrderTypeTakeout,
		Items:     []domain.CartLine{{ID: "p1", Name: "Margherita", UnitPrice: price, Quantity: qty}},
		Subtotal:  price * float64(qty),
		Total:     price * float64(qty),
		StaffID:   "staff-7",
		CreatedAt: time.Now().UTC(),
	}
}

func TestAddOrder_CreatesAndPublishes(t *testing.T) {
	repo, pub := newFakeRepo(), &fakePublisher{}
	svc := newTestService(repo, pub)

	resp, err := svc.AddOrder(context.Background(), takeoutReq("ORD-1-aaaa", 12, 2))
	require.NoError(t, err)
	assert.Equal(t, "received", resp.Status)
	assert.InDelta(t, 24.0, resp.TotalAmount, 1e-9)
	assert.Zero(t, resp.PointsEarned, "guests earn nothing")

	require.Len(t, pub.keys, 1)
	assert.Equal(t, "kitchen.takeout.1", pub.keys[0])

	var msg domain.OrderMessage
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, resp.OrderNumber, msg.OrderNumber)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, 1, msg.Priority)
}

func TestAddOrder_PriorityFromTotal(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{30, "kitchen.takeout.1"},
		{60, "kitchen.takeout.5"},
		{150, "kitchen.takeout.10"},
	}
	for _, tt := range tests {
		repo, pub := newFakeRepo(), &fakePublisher{}
		svc := newTestService(repo, pub)
		_, err := svc.AddOrder(context.Background(), takeoutReq("ORD-1-bbbb", tt.total, 1))
		require.NoError(t, err)
		assert.Equal(t, tt.want, pub.keys[0])
	}
}

func TestAddOrder_ReplayReturnsOriginalWithoutPublishing(t *testing.T) {
	repo, pub := newFakeRepo(), &fakePublisher{}
	svc := newTestService(repo, pub)

	req := takeoutReq("ORD-1-cccc", 10, 1)
	first, err := svc.AddOrder(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.AddOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Len(t, pub.keys, 1, "replay must not feed the kitchen twice")
	assert.Len(t, repo.created, 1)
}

func TestAddOrder_LoyaltyAppliedServerSide(t *testing.T) {
	repo, pub := newFakeRepo(), &fakePublisher{}
	repo.customers["cust-1"] = domain.LoyaltyAccount{CustomerID: "cust-1", Name: "Ana", PointsBalance: 300}
	svc := newTestService(repo, pub)

	cust := "cust-1"
	req := takeoutReq("ORD-1-dddd", 25, 2)
	req.CustomerID = &cust
	req.PointsUsed = 300
	req.Total = 47 // 50 minus 3.00 discount

	resp, err := svc.AddOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 47, resp.PointsEarned)
	assert.InDelta(t, 47.0, resp.TotalAmount, 1e-9)
}

func TestAddOrder_TotalMismatchRejected(t *testing.T) {
	repo, pub := newFakeRepo(), &fakePublisher{}
	svc := newTestService(repo, pub)

	req := takeoutReq("ORD-1-eeee", 10, 1)
	req.Total = 3.50
	_, err := svc.AddOrder(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Empty(t, repo.created)
}

func TestAddOrder_Validation(t *testing.T) {
	repo, pub := newFakeRepo(), &fakePublisher{}
	svc := newTestService(repo, pub)
	ctx := context.Background()

	req := takeoutReq("", 10, 1)
	_, err := svc.AddOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	req = takeoutReq("ORD-1-ffff", 10, 1)
	req.OrderType = domain.OrderTypeDineIn
	_, err = svc.AddOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidOrder, "dine_in without table")

	req = takeoutReq("ORD-1-gggg", 10, 1)
	req.OrderType = domain.OrderTypeDelivery
	_, err = svc.AddOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidOrder, "delivery without address")

	req = takeoutReq("ORD-1-hhhh", 10, 0)
	req.Subtotal, req.Total = 0, 0
	_, err = svc.AddOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidOrder, "zero quantity")

	req = takeoutReq("ORD-1-iiii", 10, 1)
	req.PointsUsed = 50
	_, err = svc.AddOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidOrder, "redemption without customer")

	cust := "ghost"
	req = takeoutReq("ORD-1-jjjj", 10, 1)
	req.CustomerID = &cust
	_, err = svc.AddOrder(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidOrder, "unknown customer")
}

func TestAddOrder_PublishFailureStillConfirms(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{err: assert.AnError}
	svc := newTestService(repo, pub)

	resp, err := svc.AddOrder(context.Background(), takeoutReq("ORD-1-kkkk", 10, 1))
	require.NoError(t, err, "a committed order is confirmed even if the kitchen feed is down")
	assert.NotEmpty(t, resp.OrderNumber)
}

func TestLookupCustomer_UnknownIsZeroDefault(t *testing.T) {
	repo, pub := newFakeRepo(), &fakePublisher{}
	repo.byPhone["555-0101"] = domain.LoyaltyAccount{CustomerID: "cust-2", Name: "Bo", PointsBalance: 120}
	svc := newTestService(repo, pub)

	got, err := svc.LookupCustomer(context.Background(), "555-0101")
	require.NoError(t, err)
	assert.Equal(t, 120, got.Points)

	missing, err := svc.LookupCustomer(context.Background(), "555-9999")
	require.NoError(t, err)
	assert.Empty(t, missing.ID)
	assert.Zero(t, missing.Points)
}
