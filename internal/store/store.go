// Package store declares the persistence ports of the fulfillment service.
//
// Adapters return errors wrapping domain.ErrNotFound for missing records and
// domain.ErrInvalidState when a compare-and-set on an order status loses.
package store

import (
	"context"
	"time"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
)

type Orders interface {
	CreateOrder(ctx context.Context, order *domain.Order, items []domain.OrderItem) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// UpdateOrderStatus moves the order to `to` only while it is still in
	// `from`. Concurrent writers therefore cannot overwrite each other.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
	ListOrdersCreatedBefore(ctx context.Context, status domain.OrderStatus, before time.Time) ([]domain.Order, error)
}

type OrderItems interface {
	ListItemsByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	GetItem(ctx context.Context, id string) (*domain.OrderItem, error)
	SetItemStatus(ctx context.Context, id string, status domain.ItemStatus) error
}

type Payments interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	UpdatePayment(ctx context.Context, p *domain.Payment) error
	LatestPayment(ctx context.Context, orderID string) (*domain.Payment, error)
	ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]domain.Payment, error)
}

type Shipments interface {
	CreateShippingInfos(ctx context.Context, infos []domain.ShippingInfo) error
	DeleteShippingInfos(ctx context.Context, ids []string) error
	ListShippingByTracking(ctx context.Context, trackingNumber string) ([]domain.ShippingInfo, error)
	ListShippingByOrder(ctx context.Context, orderID string) ([]domain.ShippingInfo, error)
	UpdateShippingStatus(ctx context.Context, id string, status domain.ShippingStatus, at time.Time) error
}

type Buyers interface {
	GetBuyer(ctx context.Context, id string) (*domain.Buyer, error)
}

// Store is the full set of collections the service works with.
type Store interface {
	Orders
	OrderItems
	Payments
	Shipments
	Buyers
}
