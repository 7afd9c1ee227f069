package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "COD"
	MethodCard   PaymentMethod = "CARD"
	MethodPayPal PaymentMethod = "PAYPAL"
	MethodQR     PaymentMethod = "QR"
)

// ParsePaymentMethod accepts the method names case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCOD, MethodCard, MethodPayPal, MethodQR:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported payment method %q: %w", s, ErrValidation)
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Payment struct {
	ID            string
	OrderID       string
	UserID        string
	Amount        decimal.Decimal
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	PaidAt        *time.Time
	CreatedAt     time.Time
}
