package scheduler

import (
	"context"
	"time"

	"github.com/jcmexdev/storefront-fulfillment/internal/orders"
	"github.com/jcmexdev/storefront-fulfillment/internal/payment"
)

const (
	VerifyPendingPaymentsJob = "verify-pending-payments"
	CancelTimedOutOrdersJob  = "cancel-timed-out-orders"
)

type PaymentVerifier interface {
	VerifyPending(ctx context.Context, now time.Time) (payment.VerifyReport, error)
}

type TimeoutSweeper interface {
	CancelTimedOut(ctx context.Context, now time.Time) (orders.SweepReport, error)
}

func VerifyPendingPayments(v PaymentVerifier, every time.Duration) Job {
	return Job{
		Name:  VerifyPendingPaymentsJob,
		Every: every,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := v.VerifyPending(ctx, now)
			return err
		},
	}
}

func CancelTimedOutOrders(s TimeoutSweeper, every time.Duration) Job {
	return Job{
		Name:  CancelTimedOutOrdersJob,
		Every: every,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := s.CancelTimedOut(ctx, now)
			return err
		},
	}
}
