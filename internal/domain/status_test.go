package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
)

func TestDeriveOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		current domain.OrderStatus
		items   []domain.ItemStatus
		want    domain.OrderStatus
	}{
		{"pending order waits while items travel", domain.OrderPending, []domain.ItemStatus{domain.ItemShipped, domain.ItemShipping}, domain.OrderPending},
		{"pending order waits for payment", domain.OrderPending, []domain.ItemStatus{domain.ItemPending}, domain.OrderPending},
		{"cash on delivery resolved", domain.OrderPending, []domain.ItemStatus{domain.ItemShipped, domain.ItemFailedToShip}, domain.OrderShipped},
		{"rejected stays rejected", domain.OrderRejected, []domain.ItemStatus{domain.ItemShipping}, domain.OrderRejected},
		{"shipped is final", domain.OrderShipped, []domain.ItemStatus{domain.ItemPending}, domain.OrderShipped},
		{"no items keeps current", domain.OrderProcessing, nil, domain.OrderProcessing},
		{"all pending holds processing", domain.OrderProcessing, []domain.ItemStatus{domain.ItemPending, domain.ItemPending}, domain.OrderProcessing},
		{"shipment created", domain.OrderProcessing, []domain.ItemStatus{domain.ItemShipping, domain.ItemShipping}, domain.OrderShipping},
		{"partially delivered", domain.OrderShipping, []domain.ItemStatus{domain.ItemShipped, domain.ItemShipping}, domain.OrderShipping},
		{"all resolved", domain.OrderShipping, []domain.ItemStatus{domain.ItemShipped, domain.ItemFailedToShip}, domain.OrderShipped},
		{"never moves backwards", domain.OrderShipping, []domain.ItemStatus{domain.ItemPending, domain.ItemShipping}, domain.OrderShipping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.DeriveOrderStatus(tt.current, tt.items))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.OrderPending, domain.OrderProcessing))
	assert.True(t, domain.CanTransition(domain.OrderPending, domain.OrderRejected))
	assert.True(t, domain.CanTransition(domain.OrderPending, domain.OrderShipped))
	assert.True(t, domain.CanTransition(domain.OrderShipping, domain.OrderShipped))
	assert.False(t, domain.CanTransition(domain.OrderRejected, domain.OrderShipped))
	assert.False(t, domain.CanTransition(domain.OrderRejected, domain.OrderProcessing))
	assert.False(t, domain.CanTransition(domain.OrderShipped, domain.OrderShipping))
	assert.False(t, domain.CanTransition(domain.OrderProcessing, domain.OrderPending))
}

func TestItemStatusTerminal(t *testing.T) {
	assert.True(t, domain.ItemShipped.Terminal())
	assert.True(t, domain.ItemFailedToShip.Terminal())
	assert.False(t, domain.ItemShipping.Terminal())
	assert.False(t, domain.ItemPending.Terminal())
}

func TestShippingStatusItemStatus(t *testing.T) {
	assert.Equal(t, domain.ItemShipped, domain.ShippingDelivered.ItemStatus(domain.ItemShipping))
	assert.Equal(t, domain.ItemFailedToShip, domain.ShippingFailed.ItemStatus(domain.ItemShipping))
	assert.Equal(t, domain.ItemShipping, domain.ShippingInTransit.ItemStatus(domain.ItemShipping))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := domain.ParsePaymentMethod("cod")
	assert.NoError(t, err)
	assert.Equal(t, domain.MethodCOD, m)

	_, err = domain.ParsePaymentMethod("bitcoin")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, domain.IsPermanent(err))
}
