package payment_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
	"github.com/jcmexdev/storefront-fulfillment/internal/payment"
	"github.com/jcmexdev/storefront-fulfillment/internal/store/memory"
)

// --- Setup ---

var buyer = auth.Caller{ID: "buyer-1", Email: "buyer@example.com"}

type fakeQueue struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (q *fakeQueue) Enqueue(_ context.Context, n notify.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notes = append(q.notes, n)
	return true
}

func instantGateway() *payment.SimulatedGateway {
	return payment.NewSimulatedGateway(
		payment.WithLatency(func() time.Duration { return 0 }),
	)
}

func setupPaymentTest(t *testing.T) (*payment.Service, *memory.Store, *fakeQueue) {
	t.Helper()
	repo := memory.New()
	repo.PutBuyer(domain.Buyer{ID: buyer.ID, Email: buyer.Email})
	queue := &fakeQueue{}
	return payment.NewService(repo, instantGateway(), queue), repo, queue
}

func seedOrder(t *testing.T, repo *memory.Store, status domain.OrderStatus) string {
	t.Helper()
	now := time.Now().UTC()
	o := &domain.Order{
		ID:         "order-" + strings.ToLower(string(status)),
		BuyerID:    buyer.ID,
		TotalPrice: decimal.RequireFromString("42.50"),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.CreateOrder(context.Background(), o, nil))
	return o.ID
}

// --- Tests ---

func TestSimulate_CODStaysPending(t *testing.T) {
	svc, repo, queue := setupPaymentTest(t)
	orderID := seedOrder(t, repo, domain.OrderPending)

	res, err := svc.Simulate(context.Background(), buyer, orderID, "COD")

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, res.Payment.Status)
	assert.True(t, strings.HasPrefix(res.Payment.TransactionID, "COD-"))
	assert.Nil(t, res.Payment.PaidAt)
	assert.True(t, decimal.RequireFromString("42.50").Equal(res.Payment.Amount))

	order, err := repo.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Empty(t, queue.notes)
}

func TestSimulate_CardMarksPaidAndAdvancesOrder(t *testing.T) {
	for _, method := range []string{"CARD", "PAYPAL", "QR"} {
		t.Run(method, func(t *testing.T) {
			svc, repo, queue := setupPaymentTest(t)
			orderID := seedOrder(t, repo, domain.OrderPending)

			res, err := svc.Simulate(context.Background(), buyer, orderID, method)

			require.NoError(t, err)
			assert.Equal(t, domain.PaymentPaid, res.Payment.Status)
			assert.Regexp(t, `^SIMPAY-[0-9a-f]{12}$`, res.Payment.TransactionID)
			require.NotNil(t, res.Payment.PaidAt)

			order, err := repo.GetOrder(context.Background(), orderID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderProcessing, order.Status)

			stored, err := repo.LatestPayment(context.Background(), orderID)
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentPaid, stored.Status)
			assert.Equal(t, buyer.ID, stored.UserID)

			require.Len(t, queue.notes, 1)
			assert.Equal(t, notify.KindPaymentReceived, queue.notes[0].Kind)
			assert.Equal(t, buyer.Email, queue.notes[0].To)
		})
	}
}

func TestSimulate_Failures(t *testing.T) {
	svc, repo, _ := setupPaymentTest(t)
	processing := seedOrder(t, repo, domain.OrderProcessing)
	pending := seedOrder(t, repo, domain.OrderPending)

	t.Run("missing order", func(t *testing.T) {
		_, err := svc.Simulate(context.Background(), buyer, "nope", "CARD")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("order not payable", func(t *testing.T) {
		_, err := svc.Simulate(context.Background(), buyer, processing, "CARD")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Simulate(context.Background(), buyer, "", "CARD")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := svc.Simulate(context.Background(), buyer, pending, "BARTER")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSimulate_TimeoutWinsWhileGatewayIsWorking(t *testing.T) {
	repo := memory.New()
	orderID := seedOrder(t, repo, domain.OrderPending)

	// The sweep rejects the order during the gateway round trip.
	gw := payment.NewSimulatedGateway(
		payment.WithLatency(func() time.Duration { return 0 }),
		payment.WithSleep(func(ctx context.Context, _ time.Duration) error {
			return repo.UpdateOrderStatus(ctx, orderID, domain.OrderPending, domain.OrderRejected)
		}),
	)
	queue := &fakeQueue{}
	svc := payment.NewService(repo, gw, queue)

	_, err := svc.Simulate(context.Background(), buyer, orderID, "CARD")

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	order, _ := repo.GetOrder(context.Background(), orderID)
	assert.Equal(t, domain.OrderRejected, order.Status)
	p, err := repo.LatestPayment(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Empty(t, queue.notes)
}

func TestSimulate_GatewayCancelled(t *testing.T) {
	repo := memory.New()
	orderID := seedOrder(t, repo, domain.OrderPending)
	gw := payment.NewSimulatedGateway(payment.WithSleep(func(context.Context, time.Duration) error {
		return context.Canceled
	}))
	svc := payment.NewService(repo, gw, &fakeQueue{})

	_, err := svc.Simulate(context.Background(), buyer, orderID, "CARD")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSimulate_LatencyWithinBounds(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps for the simulated gateway latency")
	}
	repo := memory.New()
	orderID := seedOrder(t, repo, domain.OrderPending)
	svc := payment.NewService(repo, payment.NewSimulatedGateway(), &fakeQueue{})

	res, err := svc.Simulate(context.Background(), buyer, orderID, "CARD")

	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Took, payment.MinLatency)
	assert.Less(t, res.Took, payment.MaxLatency+250*time.Millisecond)
}

func TestRandomLatency(t *testing.T) {
	for i := 0; i < 10_000; i++ {
		d := payment.RandomLatency()
		require.GreaterOrEqual(t, d, payment.MinLatency)
		require.LessOrEqual(t, d, payment.MaxLatency)
	}
}

func TestVerifyPending(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	repo := memory.New()
	repo.PutBuyer(domain.Buyer{ID: buyer.ID, Email: buyer.Email})
	queue := &fakeQueue{}
	svc := payment.NewService(repo, instantGateway(), queue)

	for _, id := range []string{"card", "cod", "fresh", "gone"} {
		status := domain.OrderPending
		if id == "gone" {
			status = domain.OrderRejected
		}
		require.NoError(t, repo.CreateOrder(ctx, &domain.Order{ID: id, BuyerID: buyer.ID, Status: status, CreatedAt: now}, nil))
	}
	old := now.Add(-10 * time.Minute)
	payments := []domain.Payment{
		{ID: "p-card", OrderID: "card", UserID: buyer.ID, Method: domain.MethodCard, Status: domain.PaymentPending, CreatedAt: old},
		{ID: "p-cod", OrderID: "cod", UserID: buyer.ID, Method: domain.MethodCOD, Status: domain.PaymentPending, CreatedAt: old},
		{ID: "p-fresh", OrderID: "fresh", UserID: buyer.ID, Method: domain.MethodQR, Status: domain.PaymentPending, CreatedAt: now},
		{ID: "p-gone", OrderID: "gone", UserID: buyer.ID, Method: domain.MethodCard, Status: domain.PaymentPending, CreatedAt: old},
	}
	for i := range payments {
		require.NoError(t, repo.CreatePayment(ctx, &payments[i]))
	}

	report, err := svc.VerifyPending(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, payment.VerifyReport{Checked: 3, Confirmed: 1, Skipped: 2}, report)

	order, _ := repo.GetOrder(ctx, "card")
	assert.Equal(t, domain.OrderProcessing, order.Status)
	p, _ := repo.LatestPayment(ctx, "card")
	assert.Equal(t, domain.PaymentPaid, p.Status)

	cod, _ := repo.GetOrder(ctx, "cod")
	assert.Equal(t, domain.OrderPending, cod.Status)
	fresh, _ := repo.GetOrder(ctx, "fresh")
	assert.Equal(t, domain.OrderPending, fresh.Status)

	require.Len(t, queue.notes, 1)
	assert.Equal(t, buyer.Email, queue.notes[0].To)

	again, err := svc.VerifyPending(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Confirmed)
}
