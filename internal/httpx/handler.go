package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/httpx/middlewares"
	"github.com/jcmexdev/storefront-fulfillment/internal/orders"
	"github.com/jcmexdev/storefront-fulfillment/internal/payment"
	"github.com/jcmexdev/storefront-fulfillment/internal/pkg/cache"
	"github.com/jcmexdev/storefront-fulfillment/internal/shipping"
)

type PaymentSimulator interface {
	Simulate(ctx context.Context, caller auth.Caller, orderID, method string) (*payment.Result, error)
}

type ShipmentSimulator interface {
	CreateShipment(ctx context.Context, orderID, area string) (*shipping.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, trackingNumber, status string) error
}

type Checkout interface {
	CreateOrder(ctx context.Context, in orders.CreateInput) (*orders.View, error)
	GetOrder(ctx context.Context, id string) (*orders.View, error)
}

// Handler serves the integration and checkout endpoints.
type Handler struct {
	payments PaymentSimulator
	shipping ShipmentSimulator
	checkout Checkout
	replay   replayStore
}

// NewHandler wires the handler. idem may be nil, in which case
// x-idempotency-key is accepted but not honoured.
func NewHandler(p PaymentSimulator, s ShipmentSimulator, c Checkout, idem cache.Cache) *Handler {
	return &Handler{
		payments: p,
		shipping: s,
		checkout: c,
		replay:   replayStore{cache: idem},
	}
}

// SimulatePayment charges an order through the simulated gateway.
func (h *Handler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := middlewares.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req SimulatePaymentRequest
	if !decode(w, r, &req) {
		return
	}

	idemKey := middlewares.IdempotencyKey(r.Context())
	if prev, ok := h.replay.lookup(r.Context(), caller.ID, idemKey); ok {
		if !prev.answers(req) {
			slog.InfoContext(r.Context(), "idempotency key reused for another request",
				"order_id", req.OrderID, "first_order_id", prev.OrderID, "idempotency_key", idemKey)
			writeError(w, http.StatusBadRequest, "Idempotency key already used for a different request")
			return
		}
		slog.InfoContext(r.Context(), "replaying simulated payment", "order_id", req.OrderID, "idempotency_key", idemKey)
		writeJSON(w, http.StatusCreated, prev.Response)
		return
	}

	res, err := h.payments.Simulate(r.Context(), caller, req.OrderID, req.Method)
	if err != nil {
		fail(w, r, "simulate payment", err)
		return
	}

	resp := SimulatePaymentResponse{
		Success: true,
		Payment: mapPayment(res.Payment),
		TookMs:  res.Took.Milliseconds(),
	}
	h.replay.remember(r.Context(), caller.ID, idemKey, req, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// CreateShipment books a simulated shipment for every item of an order.
func (h *Handler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentRequest
	if !decode(w, r, &req) {
		return
	}

	shipment, err := h.shipping.CreateShipment(r.Context(), req.OrderID, req.Area)
	if err != nil {
		fail(w, r, "create shipment", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateShipmentResponse{
		Success:        true,
		TrackingNumber: shipment.TrackingNumber,
		Created:        mapShipments(shipment.Created),
	})
}

// UpdateShipment applies a carrier status callback.
func (h *Handler) UpdateShipment(w http.ResponseWriter, r *http.Request) {
	var req UpdateShipmentRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.shipping.UpdateShipmentStatus(r.Context(), req.TrackingNumber, req.Status); err != nil {
		fail(w, r, "update shipment", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// CreateOrder places a pending order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}

	in := orders.CreateInput{BuyerID: req.BuyerID}
	for _, it := range req.Items {
		in.Items = append(in.Items, orders.ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	view, err := h.checkout.CreateOrder(r.Context(), in)
	if err != nil {
		fail(w, r, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(view))
}

// GetOrderByID returns an order with its items, latest payment and shipments.
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(view))
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
