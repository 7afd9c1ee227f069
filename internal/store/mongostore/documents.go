package mongostore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
)

// Money is persisted as its decimal string so no precision is lost to
// float64.
type orderDocument struct {
	ID         string    `bson:"_id"`
	BuyerID    string    `bson:"buyer_id"`
	TotalPrice string    `bson:"total_price"`
	Status     string    `bson:"status"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type itemDocument struct {
	ID        string `bson:"_id"`
	OrderID   string `bson:"order_id"`
	ProductID string `bson:"product_id"`
	Quantity  int    `bson:"quantity"`
	UnitPrice string `bson:"unit_price"`
	Status    string `bson:"status"`
}

type paymentDocument struct {
	ID            string     `bson:"_id"`
	OrderID       string     `bson:"order_id"`
	UserID        string     `bson:"user_id"`
	Amount        string     `bson:"amount"`
	Method        string     `bson:"method"`
	Status        string     `bson:"status"`
	TransactionID string     `bson:"transaction_id,omitempty"`
	PaidAt        *time.Time `bson:"paid_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
}

type shippingDocument struct {
	ID             string    `bson:"_id"`
	OrderItemID    string    `bson:"order_item_id"`
	OrderID        string    `bson:"order_id"`
	Carrier        string    `bson:"carrier"`
	TrackingNumber string    `bson:"tracking_number"`
	Area           string    `bson:"area,omitempty"`
	Status         string    `bson:"status"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type userDocument struct {
	ID    string `bson:"_id"`
	Email string `bson:"email"`
	Name  string `bson:"name"`
}

func orderToDocument(o *domain.Order) orderDocument {
	return orderDocument{
		ID:         o.ID,
		BuyerID:    o.BuyerID,
		TotalPrice: o.TotalPrice.String(),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.UTC(),
		UpdatedAt:  o.UpdatedAt.UTC(),
	}
}

func orderFromDocument(d orderDocument) (domain.Order, error) {
	total, err := parseMoney(d.TotalPrice)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", d.ID, err)
	}
	return domain.Order{
		ID:         d.ID,
		BuyerID:    d.BuyerID,
		TotalPrice: total,
		Status:     domain.OrderStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

func itemToDocument(it domain.OrderItem) itemDocument {
	return itemDocument{
		ID:        it.ID,
		OrderID:   it.OrderID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice.String(),
		Status:    string(it.Status),
	}
}

func itemFromDocument(d itemDocument) (domain.OrderItem, error) {
	price, err := parseMoney(d.UnitPrice)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("order item %s: %w", d.ID, err)
	}
	return domain.OrderItem{
		ID:        d.ID,
		OrderID:   d.OrderID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		UnitPrice: price,
		Status:    domain.ItemStatus(d.Status),
	}, nil
}

func paymentToDocument(p *domain.Payment) paymentDocument {
	return paymentDocument{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        p.Amount.String(),
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt.UTC(),
	}
}

func paymentFromDocument(d paymentDocument) (domain.Payment, error) {
	amount, err := parseMoney(d.Amount)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", d.ID, err)
	}
	return domain.Payment{
		ID:            d.ID,
		OrderID:       d.OrderID,
		UserID:        d.UserID,
		Amount:        amount,
		Method:        domain.PaymentMethod(d.Method),
		Status:        domain.PaymentStatus(d.Status),
		TransactionID: d.TransactionID,
		PaidAt:        d.PaidAt,
		CreatedAt:     d.CreatedAt,
	}, nil
}

func shippingToDocument(si domain.ShippingInfo) shippingDocument {
	return shippingDocument{
		ID:             si.ID,
		OrderItemID:    si.OrderItemID,
		OrderID:        si.OrderID,
		Carrier:        si.Carrier,
		TrackingNumber: si.TrackingNumber,
		Area:           si.Area,
		Status:         string(si.Status),
		CreatedAt:      si.CreatedAt.UTC(),
		UpdatedAt:      si.UpdatedAt.UTC(),
	}
}

func shippingFromDocument(d shippingDocument) domain.ShippingInfo {
	return domain.ShippingInfo{
		ID:             d.ID,
		OrderItemID:    d.OrderItemID,
		OrderID:        d.OrderID,
		Carrier:        d.Carrier,
		TrackingNumber: d.TrackingNumber,
		Area:           d.Area,
		Status:         domain.ShippingStatus(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
