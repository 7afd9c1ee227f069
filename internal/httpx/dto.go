package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/orders"
)

type SimulatePaymentRequest struct {
	OrderID string `json:"orderId"`
	Method  string `json:"method"`
}

type SimulatePaymentResponse struct {
	Success bool            `json:"success"`
	Payment PaymentResponse `json:"payment"`
	TookMs  int64           `json:"tookMs"`
}

type PaymentResponse struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId"`
	PaidAt        *time.Time      `json:"paidAt"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CreateShipmentRequest struct {
	OrderID string `json:"orderId"`
	Area    string `json:"area"`
}

type CreateShipmentResponse struct {
	Success        bool               `json:"success"`
	TrackingNumber string             `json:"trackingNumber"`
	Created        []ShippingResponse `json:"created"`
}

type UpdateShipmentRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`
}

type ShippingResponse struct {
	ID             string    `json:"id"`
	OrderItemID    string    `json:"orderItemId"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"trackingNumber"`
	Area           string    `json:"area,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CreateOrderRequest struct {
	BuyerID string               `json:"buyerId"`
	Items   []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderResponse struct {
	Success   bool                `json:"success"`
	ID        string              `json:"id"`
	BuyerID   string              `json:"buyerId"`
	Status    string              `json:"status"`
	Total     decimal.Decimal     `json:"totalPrice"`
	Items     []OrderItemResponse `json:"items"`
	Payment   *PaymentResponse    `json:"payment,omitempty"`
	Shipments []ShippingResponse  `json:"shipments,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type OrderItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Status    string          `json:"status"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func mapPayment(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
}

func mapShipments(infos []domain.ShippingInfo) []ShippingResponse {
	out := make([]ShippingResponse, len(infos))
	for i, si := range infos {
		out[i] = ShippingResponse{
			ID:             si.ID,
			OrderItemID:    si.OrderItemID,
			Carrier:        si.Carrier,
			TrackingNumber: si.TrackingNumber,
			Area:           si.Area,
			Status:         string(si.Status),
			CreatedAt:      si.CreatedAt,
			UpdatedAt:      si.UpdatedAt,
		}
	}
	return out
}

func mapOrderToResponse(v *orders.View) OrderResponse {
	items := make([]OrderItemResponse, len(v.Items))
	for i, it := range v.Items {
		items[i] = OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Status:    string(it.Status),
		}
	}

	resp := OrderResponse{
		Success:   true,
		ID:        v.Order.ID,
		BuyerID:   v.Order.BuyerID,
		Status:    string(v.Order.Status),
		Total:     v.Order.TotalPrice,
		Items:     items,
		Shipments: mapShipments(v.Shipments),
		CreatedAt: v.Order.CreatedAt,
		UpdatedAt: v.Order.UpdatedAt,
	}
	if v.Payment != nil {
		p := mapPayment(*v.Payment)
		resp.Payment = &p
	}
	return resp
}
