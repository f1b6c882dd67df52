package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos-system/internal/common/logger"
	"pos-system/internal/domain"
	"pos-system/internal/pos/cart"
	"pos-system/internal/pos/loyalty"
	"pos-system/internal/pos/store"
	"pos-system/internal/pos/syncer"
)

var (
	ErrCartEmpty       = errors.New("cart is empty")
	ErrTableRequired   = errors.New("table number is required for dine-in orders")
	ErrAddressRequired = errors.New("delivery address is required for delivery orders")
	ErrBadOrderType    = errors.New("invalid order type")
)

// Connectivity is the slice of the monitor checkout needs.
type Connectivity interface {
	Online() bool
	ReportOffline()
	SetPending(n int)
}

// Service composes an order from the active cart, makes it durable
// locally, and attempts immediate submission when online. From the
// operator's perspective checkout succeeds as soon as local persistence
// succeeds; the sync indicator carries the rest.
type Service struct {
	cart    *cart.Cart
	store   store.Store
	submit  syncer.Submitter
	conn    Connectivity
	calc    loyalty.Calculator
	lg      *logger.Logger
	now     func() time.Time
	localID func() string
}

func NewService(c *cart.Cart, st store.Store, submit syncer.Submitter, conn Connectivity, calc loyalty.Calculator, lg *logger.Logger) *Service {
	return &Service{
		cart:    c,
		store:   st,
		submit:  submit,
		conn:    conn,
		calc:    calc,
		lg:      lg,
		now:     time.Now,
		localID: NewLocalID,
	}
}

// NewLocalID generates a time-based, globally unique order id; the time
// prefix keeps ids sortable by creation, the suffix removes collisions
// between terminals.
func NewLocalID() string {
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

type Request struct {
	OrderType       string
	TableNumber     string
	DeliveryAddress string
	Customer        *domain.LoyaltyAccount
	PointsToRedeem  int
}

type Result struct {
	Order domain.PendingOrder
	Quote loyalty.Quote
	// Submitted reports whether the server confirmed the order during
	// checkout; false means it is queued for the next drain.
	Submitted bool
	Ack       *domain.SubmitOrderResponse
}

func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return Result{}, ErrCartEmpty
	}
	if err := validate(req); err != nil {
		return Result{}, err
	}

	subtotal := s.cart.Total()
	quote := s.calc.Reconcile(subtotal, req.PointsToRedeem, req.Customer)

	order := domain.PendingOrder{
		LocalID:    s.localID(),
		Status:     domain.StatusPending,
		OrderType:  req.OrderType,
		Items:      lines,
		Subtotal:   subtotal,
		Total:      quote.FinalTotal,
		PointsUsed: quote.PointsRedeemed,
		CreatedAt:  s.now().UTC(),
	}
	if req.TableNumber != "" {
		order.TableNumber = &req.TableNumber
	}
	if req.DeliveryAddress != "" {
		order.DeliveryAddr = &req.DeliveryAddress
	}
	if req.Customer != nil {
		id := req.Customer.CustomerID
		order.CustomerID = &id
	}

	// Local durability first. If this fails the order is NOT captured and
	// the operator must be told; nothing is cleared.
	if err := s.store.Enqueue(ctx, order); err != nil {
		s.lg.Error("checkout_persist_failed", err, map[string]any{"local_id": order.LocalID})
		return Result{}, err
	}
	s.cart.Clear()

	res := Result{Order: order, Quote: quote}
	var submitErr error
	if s.conn.Online() {
		submitErr = s.trySubmit(ctx, &res)
	} else {
		s.lg.Info("checkout_queued_offline", map[string]any{"local_id": order.LocalID})
	}

	if n, err := s.store.CountUnsynced(ctx); err == nil {
		s.conn.SetPending(n)
	}
	return res, submitErr
}

func (s *Service) trySubmit(ctx context.Context, res *Result) error {
	ack, err := s.submit.Submit(ctx, res.Order)
	switch {
	case err == nil:
		if merr := s.store.MarkSynced(ctx, res.Order.LocalID); merr != nil {
			s.lg.Error("mark_synced_failed", merr, map[string]any{"local_id": res.Order.LocalID})
		}
		res.Submitted = true
		res.Ack = &ack
		s.lg.Info("checkout_submitted", map[string]any{"local_id": res.Order.LocalID, "order_number": ack.OrderNumber})
		return nil
	case errors.Is(err, domain.ErrRejected):
		if merr := s.store.MarkFailed(ctx, res.Order.LocalID); merr != nil {
			s.lg.Error("mark_failed_failed", merr, map[string]any{"local_id": res.Order.LocalID})
		}
		s.lg.Error("checkout_rejected", err, map[string]any{"local_id": res.Order.LocalID})
		return err
	default:
		// server unreachable: the order stays queued and the monitor's
		// next probe confirms the offline state
		s.conn.ReportOffline()
		s.lg.Warn("checkout_submission_unreachable", map[string]any{"local_id": res.Order.LocalID})
		return nil
	}
}

func validate(req Request) error {
	switch req.OrderType {
	case domain.OrderTypeDineIn:
		if req.TableNumber == "" {
			return ErrTableRequired
		}
	case domain.OrderTypeDelivery:
		if req.DeliveryAddress == "" {
			return ErrAddressRequired
		}
	case domain.OrderTypeTakeout:
	default:
		return ErrBadOrderType
	}
	return nil
}
