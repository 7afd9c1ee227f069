package shipping

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const SimulatedCarrierName = "SIMCARRIER"

type LabelRequest struct {
	OrderID string
	Area    string
	Parcels int
}

type Label struct {
	Carrier        string
	TrackingNumber string
}

// Carrier books and cancels shipping labels with a logistics provider.
type Carrier interface {
	BookLabel(ctx context.Context, req LabelRequest) (Label, error)
	CancelLabel(ctx context.Context, trackingNumber string) error
}

// SimulatedCarrier hands out tracking numbers without talking to anyone.
type SimulatedCarrier struct {
	now func() time.Time
}

func NewSimulatedCarrier() *SimulatedCarrier {
	return &SimulatedCarrier{now: time.Now}
}

var _ Carrier = (*SimulatedCarrier)(nil)

func (c *SimulatedCarrier) BookLabel(ctx context.Context, _ LabelRequest) (Label, error) {
	if err := ctx.Err(); err != nil {
		return Label{}, err
	}
	return Label{
		Carrier:        SimulatedCarrierName,
		TrackingNumber: fmt.Sprintf("SIMSHIP-%d-%d", c.now().UnixMilli(), 1000+rand.IntN(9000)),
	}, nil
}

func (c *SimulatedCarrier) CancelLabel(context.Context, string) error {
	return nil
}
