package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"time"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
)

// Simulated gateway round trip bounds.
const (
	MinLatency = 200 * time.Millisecond
	MaxLatency = 1200 * time.Millisecond
)

// Charge is the gateway's verdict on a payment.
type Charge struct {
	Status        domain.PaymentStatus
	TransactionID string
	PaidAt        *time.Time
}

// Gateway is the payment provider the simulator talks to.
type Gateway interface {
	Charge(ctx context.Context, p domain.Payment) (Charge, error)
	Verify(ctx context.Context, p domain.Payment) (Charge, error)
}

// SimulatedGateway fabricates outcomes after an artificial delay: COD stays
// pending until delivery, every other method succeeds immediately.
type SimulatedGateway struct {
	latency func() time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

type GatewayOption func(*SimulatedGateway)

// WithLatency replaces the random latency source.
func WithLatency(f func() time.Duration) GatewayOption {
	return func(g *SimulatedGateway) { g.latency = f }
}

func WithSleep(f func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *SimulatedGateway) { g.sleep = f }
}

func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *SimulatedGateway) { g.now = now }
}

func NewSimulatedGateway(opts ...GatewayOption) *SimulatedGateway {
	g := &SimulatedGateway{
		latency: RandomLatency,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ Gateway = (*SimulatedGateway)(nil)

// RandomLatency returns a uniformly distributed duration in
// [MinLatency, MaxLatency], at millisecond granularity.
func RandomLatency() time.Duration {
	span := int64((MaxLatency - MinLatency) / time.Millisecond)
	return MinLatency + time.Duration(mrand.Int64N(span+1))*time.Millisecond
}

func (g *SimulatedGateway) Charge(ctx context.Context, p domain.Payment) (Charge, error) {
	if err := g.sleep(ctx, g.latency()); err != nil {
		return Charge{}, fmt.Errorf("payment: gateway: %w", err)
	}

	now := g.now().UTC()
	if p.Method == domain.MethodCOD {
		return Charge{
			Status:        domain.PaymentPending,
			TransactionID: fmt.Sprintf("COD-%d", now.UnixMilli()),
		}, nil
	}
	return g.paid(now)
}

// Verify confirms a pending card-like or QR-like payment. COD payments are
// settled on delivery and stay pending.
func (g *SimulatedGateway) Verify(_ context.Context, p domain.Payment) (Charge, error) {
	if p.Method == domain.MethodCOD {
		return Charge{Status: domain.PaymentPending, TransactionID: p.TransactionID}, nil
	}
	c, err := g.paid(g.now().UTC())
	if err != nil {
		return Charge{}, err
	}
	if p.TransactionID != "" {
		c.TransactionID = p.TransactionID
	}
	return c, nil
}

func (g *SimulatedGateway) paid(now time.Time) (Charge, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Charge{}, fmt.Errorf("payment: transaction id: %w", err)
	}
	return Charge{
		Status:        domain.PaymentPaid,
		TransactionID: "SIMPAY-" + hex.EncodeToString(b[:]),
		PaidAt:        &now,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
