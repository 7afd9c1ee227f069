package domain

import (
	"fmt"
	"time"
)

type ShippingStatus string

const (
	ShippingInTransit ShippingStatus = "shipping"
	ShippingDelivered ShippingStatus = "delivered"
	ShippingFailed    ShippingStatus = "failed"
)

func ParseShippingStatus(s string) (ShippingStatus, error) {
	switch st := ShippingStatus(s); st {
	case ShippingInTransit, ShippingDelivered, ShippingFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unsupported shipping status %q: %w", s, ErrValidation)
	}
}

// ItemStatus maps a carrier status onto the order item. Statuses that do not
// resolve the item leave current untouched.
func (s ShippingStatus) ItemStatus(current ItemStatus) ItemStatus {
	switch s {
	case ShippingDelivered:
		return ItemShipped
	case ShippingFailed:
		return ItemFailedToShip
	default:
		return current
	}
}

type ShippingInfo struct {
	ID             string
	OrderItemID    string
	OrderID        string
	Carrier        string
	TrackingNumber string
	Area           string
	Status         ShippingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
