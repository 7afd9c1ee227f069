// Package orders owns checkout and the payment timeout sweep.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
	"github.com/jcmexdev/storefront-fulfillment/internal/store"
)

// DefaultPaymentTimeout is how long an order may wait for payment before the
// sweep rejects it.
const DefaultPaymentTimeout = 30 * time.Minute

type Repository interface {
	store.Orders
	store.OrderItems
	store.Payments
	store.Shipments
	store.Buyers
}

type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type CreateInput struct {
	BuyerID string
	Items   []ItemInput
}

// View is an order with everything hanging off it.
type View struct {
	Order     domain.Order
	Items     []domain.OrderItem
	Payment   *domain.Payment
	Shipments []domain.ShippingInfo
}

// SweepReport summarises one timeout sweep.
type SweepReport struct {
	Checked   int
	Cancelled int
	Failed    int
}

type Service struct {
	repo    Repository
	notes   notify.Queue
	now     func() time.Time
	timeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPaymentTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func NewService(repo Repository, notes notify.Queue, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		notes:   notes,
		now:     time.Now,
		timeout: DefaultPaymentTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder places a pending order for an existing buyer.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (*View, error) {
	if in.BuyerID == "" || len(in.Items) == 0 {
		return nil, fmt.Errorf("orders: buyerId and items are required: %w", domain.ErrValidation)
	}
	if _, err := s.repo.GetBuyer(ctx, in.BuyerID); err != nil {
		return nil, fmt.Errorf("orders: load buyer: %w", err)
	}

	now := s.now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		BuyerID:    in.BuyerID,
		TotalPrice: decimal.Zero,
		Status:     domain.OrderPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity <= 0 || !it.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("orders: productId, quantity and unitPrice must be valid: %w", domain.ErrValidation)
		}
		item := domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Status:    domain.ItemPending,
		}
		order.TotalPrice = order.TotalPrice.Add(item.Subtotal())
		items = append(items, item)
	}

	if err := s.repo.CreateOrder(ctx, &order, items); err != nil {
		return nil, fmt.Errorf("orders: create: %w", err)
	}

	slog.InfoContext(ctx, "order created", "order_id", order.ID, "buyer_id", order.BuyerID, "total", order.TotalPrice.StringFixed(2))
	return &View{Order: order, Items: items}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*View, error) {
	if id == "" {
		return nil, fmt.Errorf("orders: missing id: %w", domain.ErrValidation)
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("orders: load: %w", err)
	}
	items, err := s.repo.ListItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("orders: load items: %w", err)
	}
	shipments, err := s.repo.ListShippingByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("orders: load shipments: %w", err)
	}

	view := &View{Order: *order, Items: items, Shipments: shipments}
	p, err := s.repo.LatestPayment(ctx, id)
	switch {
	case err == nil:
		view.Payment = p
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("orders: load payment: %w", err)
	}
	return view, nil
}

// CancelTimedOut rejects every order still pending after the payment
// timeout. The rejection is a compare-and-set, so an order paid in the
// meantime is left alone. One order failing does not stop the sweep.
func (s *Service) CancelTimedOut(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	stale, err := s.repo.ListOrdersCreatedBefore(ctx, domain.OrderPending, now.Add(-s.timeout))
	if err != nil {
		return report, fmt.Errorf("orders: list timed out: %w", err)
	}

	for _, o := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		err := s.repo.UpdateOrderStatus(ctx, o.ID, domain.OrderPending, domain.OrderRejected)
		switch {
		case errors.Is(err, domain.ErrInvalidState):
			slog.InfoContext(ctx, "order left pending before timeout", "order_id", o.ID)
			continue
		case err != nil:
			report.Failed++
			slog.ErrorContext(ctx, "failed to cancel timed out order", "order_id", o.ID, "error", err)
			continue
		}

		report.Cancelled++
		slog.InfoContext(ctx, "order cancelled due to payment timeout", "order_id", o.ID, "created_at", o.CreatedAt)

		buyer, err := s.repo.GetBuyer(ctx, o.BuyerID)
		if err != nil {
			slog.WarnContext(ctx, "no buyer to notify", "buyer_id", o.BuyerID, "error", err)
			continue
		}
		s.notes.Enqueue(ctx, notify.OrderCancelled(buyer.Email, o.ID))
	}

	slog.InfoContext(ctx, "timeout sweep finished",
		"checked", report.Checked,
		"cancelled", report.Cancelled,
		"failed", report.Failed,
	)
	return report, nil
}
