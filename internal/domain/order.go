package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipping   OrderStatus = "shipping"
	OrderShipped    OrderStatus = "shipped"
	OrderRejected   OrderStatus = "rejected"
)

type ItemStatus string

const (
	ItemPending      ItemStatus = "pending"
	ItemShipping     ItemStatus = "shipping"
	ItemShipped      ItemStatus = "shipped"
	ItemFailedToShip ItemStatus = "failed to ship"
)

// Terminal reports whether the item has left the carrier's hands.
func (s ItemStatus) Terminal() bool {
	return s == ItemShipped || s == ItemFailedToShip
}

type Order struct {
	ID         string
	BuyerID    string
	TotalPrice decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Status    ItemStatus
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Buyer is the read-only projection of a storefront user needed for
// notifications.
type Buyer struct {
	ID    string
	Email string
	Name  string
}
