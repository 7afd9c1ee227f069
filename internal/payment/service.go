// Package payment simulates the payment gateway round trip for storefront
// orders and reconciles payments left pending.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
	"github.com/jcmexdev/storefront-fulfillment/internal/store"
)

// DefaultVerifyGrace keeps the verification sweep away from payments whose
// simulate request may still be in flight.
const DefaultVerifyGrace = 2 * time.Minute

// Repository is the slice of the store the payment flow needs.
type Repository interface {
	store.Orders
	store.Payments
	store.Buyers
}

type Result struct {
	Payment domain.Payment
	Took    time.Duration
}

// VerifyReport summarises one verification sweep.
type VerifyReport struct {
	Checked   int
	Confirmed int
	Skipped   int
	Failed    int
}

type Service struct {
	repo    Repository
	gateway Gateway
	notes   notify.Queue
	now     func() time.Time
	grace   time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithVerifyGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

func NewService(repo Repository, gateway Gateway, notes notify.Queue, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		gateway: gateway,
		notes:   notes,
		now:     time.Now,
		grace:   DefaultVerifyGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate charges the order on behalf of an authenticated caller.
//
// The order must exist and be pending. A payment row is created pending, the
// gateway is called, and for non-COD methods the order moves to processing.
// The order transition is a compare-and-set: if the order stopped being
// pending while the gateway was working (the timeout sweep rejected it) the
// payment is left pending and ErrInvalidState is returned.
func (s *Service) Simulate(ctx context.Context, caller auth.Caller, orderID, method string) (*Result, error) {
	if orderID == "" || method == "" {
		return nil, fmt.Errorf("payment: missing orderId or method: %w", domain.ErrValidation)
	}
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}

	start := s.now()

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("payment: load order: %w", err)
	}
	if order.Status != domain.OrderPending {
		return nil, fmt.Errorf("payment: order %s is %s, not payable: %w", order.ID, order.Status, domain.ErrInvalidState)
	}

	p := domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		UserID:    caller.ID,
		Amount:    order.TotalPrice,
		Method:    m,
		Status:    domain.PaymentPending,
		CreatedAt: start.UTC(),
	}
	if err := s.repo.CreatePayment(ctx, &p); err != nil {
		return nil, fmt.Errorf("payment: create: %w", err)
	}

	charge, err := s.gateway.Charge(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("payment: charge %s: %w", p.ID, err)
	}
	p.TransactionID = charge.TransactionID

	if charge.Status == domain.PaymentPaid {
		if err := s.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderPending, domain.OrderProcessing); err != nil {
			if uerr := s.repo.UpdatePayment(ctx, &p); uerr != nil {
				slog.ErrorContext(ctx, "failed to record transaction on orphaned payment", "payment_id", p.ID, "error", uerr)
			}
			return nil, fmt.Errorf("payment: advance order %s: %w", order.ID, err)
		}
		p.Status = domain.PaymentPaid
		p.PaidAt = charge.PaidAt
	}

	if err := s.repo.UpdatePayment(ctx, &p); err != nil {
		return nil, fmt.Errorf("payment: update %s: %w", p.ID, err)
	}

	if p.Status == domain.PaymentPaid {
		s.notes.Enqueue(ctx, notify.PaymentReceived(caller.Email, order.ID, p.TransactionID))
	}

	took := s.now().Sub(start)
	slog.InfoContext(ctx, "simulated payment processed",
		"order_id", order.ID,
		"method", string(m),
		"transaction_id", p.TransactionID,
		"status", string(p.Status),
		"took_ms", took.Milliseconds(),
	)
	return &Result{Payment: p, Took: took}, nil
}

// VerifyPending re-checks non-COD payments that are still pending and older
// than the grace period. Each payment is handled on its own; one failure does
// not stop the sweep.
func (s *Service) VerifyPending(ctx context.Context, now time.Time) (VerifyReport, error) {
	var report VerifyReport

	pending, err := s.repo.ListPendingPayments(ctx, now.Add(-s.grace))
	if err != nil {
		return report, fmt.Errorf("payment: list pending: %w", err)
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		confirmed, err := s.verifyOne(ctx, p)
		switch {
		case err != nil:
			report.Failed++
			slog.ErrorContext(ctx, "payment verification failed", "payment_id", p.ID, "order_id", p.OrderID, "error", err)
		case confirmed:
			report.Confirmed++
		default:
			report.Skipped++
		}
	}

	slog.InfoContext(ctx, "pending payments verified",
		"checked", report.Checked,
		"confirmed", report.Confirmed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Service) verifyOne(ctx context.Context, p domain.Payment) (bool, error) {
	if p.Method == domain.MethodCOD {
		return false, nil
	}

	order, err := s.repo.GetOrder(ctx, p.OrderID)
	if err != nil {
		return false, err
	}
	if order.Status != domain.OrderPending {
		return false, nil
	}

	charge, err := s.gateway.Verify(ctx, p)
	if err != nil {
		return false, err
	}
	if charge.Status != domain.PaymentPaid {
		return false, nil
	}

	if err := s.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderPending, domain.OrderProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return false, nil
		}
		return false, err
	}

	p.Status = domain.PaymentPaid
	p.TransactionID = charge.TransactionID
	p.PaidAt = charge.PaidAt
	if err := s.repo.UpdatePayment(ctx, &p); err != nil {
		return false, err
	}

	if buyer, err := s.repo.GetBuyer(ctx, p.UserID); err != nil {
		slog.WarnContext(ctx, "no buyer to notify", "user_id", p.UserID, "error", err)
	} else {
		s.notes.Enqueue(ctx, notify.PaymentReceived(buyer.Email, order.ID, p.TransactionID))
	}
	return true, nil
}
