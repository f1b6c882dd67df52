package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"pos-system/internal/common/logger"
	"pos-system/internal/common/mq"
	"pos-system/internal/domain"
	"pos-system/internal/pos/loyalty"
	"pos-system/internal/repository"
)

// ErrInvalidOrder marks requests the service refuses outright. The HTTP
// layer turns these into 400 so terminals stop retrying them.
var ErrInvalidOrder = errors.New("invalid order")

// totalTolerance absorbs float rounding between terminal and server.
const totalTolerance = 0.01

type Publisher interface {
	PublishPersistent(ctx context.Context, exchange, key, correlationID string, priority uint8, body []byte) error
}

type ServiceInterface interface {
	AddOrder(ctx context.Context, req domain.SubmitOrderRequest) (domain.SubmitOrderResponse, error)
	LookupCustomer(ctx context.Context, phone string) (domain.CustomerLookupResponse, error)
}

type Service struct {
	repo repository.Orders
	pub  Publisher
	calc loyalty.Calculator
	lg   *logger.Logger
}

func NewService(repo repository.Orders, pub Publisher, calc loyalty.Calculator, lg *logger.Logger) *Service {
	return &Service{repo: repo, pub: pub, calc: calc, lg: lg}
}

// AddOrder validates and persists a terminal submission, then announces
// it to the kitchen. Replays of an already stored local id return the
// original confirmation and publish nothing.
func (s *Service) AddOrder(ctx context.Context, req domain.SubmitOrderRequest) (domain.SubmitOrderResponse, error) {
	if err := s.validate(req); err != nil {
		return domain.SubmitOrderResponse{}, err
	}

	// Recompute money server-side; the client total is advisory.
	subtotal := 0.0
	for _, item := range req.Items {
		subtotal += float64(item.Quantity) * item.UnitPrice
	}
	if math.Abs(subtotal-req.Subtotal) > totalTolerance {
		return domain.SubmitOrderResponse{}, fmt.Errorf("%w: subtotal mismatch", ErrInvalidOrder)
	}

	var account *domain.LoyaltyAccount
	if req.CustomerID != nil {
		acct, err := s.repo.GetCustomer(ctx, *req.CustomerID)
		if errors.Is(err, repository.ErrNoCustomer) {
			return domain.SubmitOrderResponse{}, fmt.Errorf("%w: unknown customer %s", ErrInvalidOrder, *req.CustomerID)
		}
		if err != nil {
			return domain.SubmitOrderResponse{}, fmt.Errorf("failed to load customer: %w", err)
		}
		account = &acct
	}
	quote := s.calc.Reconcile(subtotal, req.PointsUsed, account)
	if math.Abs(quote.FinalTotal-req.Total) > totalTolerance {
		return domain.SubmitOrderResponse{}, fmt.Errorf("%w: total mismatch, expected %.2f", ErrInvalidOrder, quote.FinalTotal)
	}

	priority := 1
	switch {
	case quote.FinalTotal >= 100:
		priority = 10
	case quote.FinalTotal >= 50:
		priority = 5
	}

	created, err := s.repo.CreateOrder(ctx, req, quote.PointsEarned, priority)
	if err != nil {
		return domain.SubmitOrderResponse{}, fmt.Errorf("failed to save order: %w", err)
	}
	resp := domain.SubmitOrderResponse{
		OrderNumber:  created.OrderNumber,
		Status:       "received",
		TotalAmount:  quote.FinalTotal,
		PointsEarned: created.PointsEarned,
	}
	if created.Duplicate {
		s.lg.Info("order_replayed", map[string]any{"local_id": req.LocalID, "order_number": created.OrderNumber})
		return resp, nil
	}

	if err := s.publish(ctx, req, created, quote.FinalTotal); err != nil {
		// The order is committed; the kitchen catches up from the dlq or a
		// manual republish. Confirming to the terminal is still correct.
		s.lg.Error("order_publish_failed", err, map[string]any{"order_number": created.OrderNumber})
	}
	s.lg.Info("order_created", map[string]any{
		"order_number": created.OrderNumber,
		"order_type":   req.OrderType,
		"total":        quote.FinalTotal,
		"priority":     created.Priority,
	})
	return resp, nil
}

func (s *Service) publish(ctx context.Context, req domain.SubmitOrderRequest, created repository.CreatedOrder, total float64) error {
	items := make([]domain.OrderItemMsg, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItemMsg{Name: it.Name, Quantity: it.Quantity, Price: it.UnitPrice})
	}
	msg := domain.OrderMessage{
		MessageID:    uuid.NewString(),
		OrderNumber:  created.OrderNumber,
		OrderType:    req.OrderType,
		TableNumber:  req.TableNumber,
		DeliveryAddr: req.DeliveryAddress,
		Items:        items,
		TotalAmount:  total,
		Priority:     created.Priority,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal order message: %w", err)
	}
	key := fmt.Sprintf("kitchen.%s.%d", req.OrderType, created.Priority)
	return s.pub.PublishPersistent(ctx, mq.OrdersExchange, key, created.OrderNumber, uint8(created.Priority), body)
}

func (s *Service) LookupCustomer(ctx context.Context, phone string) (domain.CustomerLookupResponse, error) {
	acct, err := s.repo.FindCustomerByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNoCustomer) {
		// Unknown numbers resolve to a zero-points guest profile.
		return domain.CustomerLookupResponse{}, nil
	}
	if err != nil {
		return domain.CustomerLookupResponse{}, fmt.Errorf("failed to look up customer: %w", err)
	}
	return domain.CustomerLookupResponse{ID: acct.CustomerID, Name: acct.Name, Points: acct.PointsBalance}, nil
}

func (s *Service) validate(req domain.SubmitOrderRequest) error {
	if req.LocalID == "" {
		return fmt.Errorf("%w: local_id is required", ErrInvalidOrder)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	switch req.OrderType {
	case domain.OrderTypeDineIn:
		if req.TableNumber == nil || *req.TableNumber == "" {
			return fmt.Errorf("%w: table number is required for dine_in", ErrInvalidOrder)
		}
	case domain.OrderTypeDelivery:
		if req.DeliveryAddress == nil || *req.DeliveryAddress == "" {
			return fmt.Errorf("%w: delivery address is required", ErrInvalidOrder)
		}
	case domain.OrderTypeTakeout:
	default:
		return fmt.Errorf("%w: invalid order type %q", ErrInvalidOrder, req.OrderType)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: invalid quantity for item %s", ErrInvalidOrder, item.Name)
		}
		if item.UnitPrice <= 0 {
			return fmt.Errorf("%w: invalid price for item %s", ErrInvalidOrder, item.Name)
		}
	}
	if req.PointsUsed < 0 {
		return fmt.Errorf("%w: negative points", ErrInvalidOrder)
	}
	if req.PointsUsed > 0 && req.CustomerID == nil {
		return fmt.Errorf("%w: points redemption requires a customer", ErrInvalidOrder)
	}
	return nil
}
