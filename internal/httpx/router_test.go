package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/httpx"
	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
	"github.com/jcmexdev/storefront-fulfillment/internal/orders"
	"github.com/jcmexdev/storefront-fulfillment/internal/payment"
	"github.com/jcmexdev/storefront-fulfillment/internal/retry"
	"github.com/jcmexdev/storefront-fulfillment/internal/shipping"
	"github.com/jcmexdev/storefront-fulfillment/internal/store/memory"
)

// --- Setup ---

const (
	apiKey = "integration-key"
	secret = "token-secret"
)

type fakeQueue struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (q *fakeQueue) Enqueue(_ context.Context, n notify.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notes = append(q.notes, n)
	return true
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value.(string)
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return true, nil
}

func (c *fakeCache) Release(context.Context, string, string) error { return nil }

func (c *fakeCache) GenerateKey(operation, key string) string { return operation + ":" + key }

type testServer struct {
	router http.Handler
	repo   *memory.Store
	token  string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	repo := memory.New()
	repo.PutBuyer(domain.Buyer{ID: "b1", Email: "b1@example.com"})
	queue := &fakeQueue{}

	policy := retry.Default()
	policy.Permanent = domain.IsPermanent
	policy.Sleep = func(context.Context, time.Duration) error { return nil }

	gw := payment.NewSimulatedGateway(payment.WithLatency(func() time.Duration { return 0 }))
	handler := httpx.NewHandler(
		payment.NewService(repo, gw, queue),
		shipping.NewService(repo, shipping.NewSimulatedCarrier(), queue, shipping.WithRetryPolicy(policy)),
		orders.NewService(repo, queue),
		&fakeCache{data: make(map[string]string)},
	)
	validator := auth.NewValidator(apiKey, secret)
	token, err := validator.Issue(auth.Caller{ID: "b1", Email: "b1@example.com"}, time.Hour)
	require.NoError(t, err)

	return &testServer{router: httpx.NewRouter(handler, validator), repo: repo, token: token}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func (s *testServer) authed() map[string]string {
	return map[string]string{"x-api-key": apiKey, "Authorization": "Bearer " + s.token}
}

func (s *testServer) seedOrder(t *testing.T, status domain.OrderStatus) string {
	t.Helper()
	now := time.Now().UTC()
	o := &domain.Order{ID: "o-" + string(status), BuyerID: "b1", TotalPrice: decimal.NewFromInt(30), Status: status, CreatedAt: now}
	items := []domain.OrderItem{
		{ID: o.ID + "-a", OrderID: o.ID, ProductID: "p1", Quantity: 1, Status: domain.ItemPending},
		{ID: o.ID + "-b", OrderID: o.ID, ProductID: "p2", Quantity: 2, Status: domain.ItemPending},
	}
	require.NoError(t, s.repo.CreateOrder(context.Background(), o, items))
	return o.ID
}

// --- Tests ---

func TestHealthz_NeedsNoCredentials(t *testing.T) {
	s := setupServer(t)
	rec, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestAPIKeyCheckedBeforeBody(t *testing.T) {
	s := setupServer(t)
	paths := []string{"/integrations/payments/simulate", "/integrations/shipping/create", "/integrations/shipping/update", "/orders"}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, path, "{not json", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, body["success"])

			rec, _ = s.do(t, http.MethodPost, path, "{not json", map[string]string{"x-api-key": "wrong"})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestSimulatePayment_RequiresBearer(t *testing.T) {
	s := setupServer(t)
	orderID := s.seedOrder(t, domain.OrderPending)

	rec, body := s.do(t, http.MethodPost, "/integrations/payments/simulate",
		`{"orderId":"`+orderID+`","method":"CARD"}`, map[string]string{"x-api-key": apiKey})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestSimulatePayment(t *testing.T) {
	s := setupServer(t)
	orderID := s.seedOrder(t, domain.OrderPending)

	rec, body := s.do(t, http.MethodPost, "/integrations/payments/simulate",
		`{"orderId":"`+orderID+`","method":"card"}`, s.authed())

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "tookMs")
	p := body["payment"].(map[string]any)
	assert.Equal(t, "paid", p["status"])
	assert.Equal(t, "CARD", p["method"])
	assert.Equal(t, "30", p["amount"])
	assert.Equal(t, "b1", p["userId"])

	order, err := s.repo.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessing, order.Status)
}

func TestSimulatePayment_IdempotentReplay(t *testing.T) {
	s := setupServer(t)
	orderID := s.seedOrder(t, domain.OrderPending)
	headers := s.authed()
	headers["x-idempotency-key"] = "attempt-1"
	payload := `{"orderId":"` + orderID + `","method":"QR"}`

	rec1, first := s.do(t, http.MethodPost, "/integrations/payments/simulate", payload, headers)
	rec2, second := s.do(t, http.MethodPost, "/integrations/payments/simulate", payload, headers)

	require.Equal(t, http.StatusCreated, rec1.Code)
	require.Equal(t, http.StatusCreated, rec2.Code)
	assert.Equal(t, first["payment"], second["payment"])

	// The same key for another order or method is refused, not replayed.
	other := "o-other"
	require.NoError(t, s.repo.CreateOrder(context.Background(), &domain.Order{
		ID: other, BuyerID: "b1", TotalPrice: decimal.NewFromInt(5), Status: domain.OrderPending, CreatedAt: time.Now().UTC(),
	}, []domain.OrderItem{{ID: other + "-a", OrderID: other, ProductID: "p1", Quantity: 1, Status: domain.ItemPending}}))
	for _, body := range []string{
		`{"orderId":"nope","method":"QR"}`,
		`{"orderId":"` + other + `","method":"QR"}`,
		`{"orderId":"` + orderID + `","method":"CARD"}`,
	} {
		rec, resp := s.do(t, http.MethodPost, "/integrations/payments/simulate", body, headers)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, false, resp["success"])
		assert.Nil(t, resp["payment"])
	}
	otherOrder, err := s.repo.GetOrder(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, otherOrder.Status)

	// Without the key the order is no longer payable.
	delete(headers, "x-idempotency-key")
	rec3, third := s.do(t, http.MethodPost, "/integrations/payments/simulate", payload, headers)
	assert.Equal(t, http.StatusBadRequest, rec3.Code)
	assert.Equal(t, false, third["success"])
}

func TestSimulatePayment_Errors(t *testing.T) {
	s := setupServer(t)
	shipped := s.seedOrder(t, domain.OrderShipped)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing fields", `{}`, http.StatusBadRequest},
		{"unknown order", `{"orderId":"nope","method":"CARD"}`, http.StatusNotFound},
		{"not payable", `{"orderId":"` + shipped + `","method":"CARD"}`, http.StatusBadRequest},
		{"unknown method", `{"orderId":"` + shipped + `","method":"GOLD"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/integrations/payments/simulate", tt.body, s.authed())
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestShippingFlow(t *testing.T) {
	s := setupServer(t)
	orderID := s.seedOrder(t, domain.OrderProcessing)
	key := map[string]string{"x-api-key": apiKey}

	rec, body := s.do(t, http.MethodPost, "/integrations/shipping/create", `{"orderId":"`+orderID+`","area":"north"}`, key)
	require.Equal(t, http.StatusCreated, rec.Code)
	tracking := body["trackingNumber"].(string)
	assert.True(t, strings.HasPrefix(tracking, "SIMSHIP-"))
	assert.Len(t, body["created"], 2)

	rec, body = s.do(t, http.MethodPost, "/integrations/shipping/update", `{"trackingNumber":"`+tracking+`","status":"delivered"}`, key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true}, body)

	rec, body = s.do(t, http.MethodGet, "/orders/"+orderID, "", key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", body["status"])
	assert.Len(t, body["shipments"], 2)

	rec, _ = s.do(t, http.MethodPost, "/integrations/shipping/update", `{"trackingNumber":"SIMSHIP-1-1111","status":"delivered"}`, key)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/integrations/shipping/create", `{"orderId":"nope"}`, key)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrders(t *testing.T) {
	s := setupServer(t)
	key := map[string]string{"x-api-key": apiKey}

	rec, body := s.do(t, http.MethodPost, "/orders",
		`{"buyerId":"b1","items":[{"productId":"p1","quantity":3,"unitPrice":"2.50"},{"productId":"p2","quantity":1,"unitPrice":4}]}`, key)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "11.5", body["totalPrice"])
	id := body["id"].(string)

	rec, body = s.do(t, http.MethodGet, "/orders/"+id, "", key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 2)
	assert.NotContains(t, body, "payment")

	rec, _ = s.do(t, http.MethodGet, "/orders/missing", "", key)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/orders", `{"buyerId":"b1","items":[]}`, key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
