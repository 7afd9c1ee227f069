package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/jcmexdev/storefront-fulfillment/internal/pkg/cache"
)

const idempotencyTTL = 24 * time.Hour

// replayEntry is a remembered response together with the request it answered.
type replayEntry struct {
	OrderID  string                  `json:"orderId"`
	Method   string                  `json:"method"`
	Response SimulatePaymentResponse `json:"response"`
}

// answers reports whether the entry was recorded for the same request.
func (e replayEntry) answers(req SimulatePaymentRequest) bool {
	return e.OrderID == req.OrderID && strings.EqualFold(strings.TrimSpace(e.Method), strings.TrimSpace(req.Method))
}

// replayStore remembers successful simulate responses per caller and
// idempotency key. A nil cache disables replay.
type replayStore struct {
	cache cache.Cache
}

func (s replayStore) key(callerID, idemKey string) string {
	return s.cache.GenerateKey("simulate", callerID+":"+idemKey)
}

func (s replayStore) lookup(ctx context.Context, callerID, idemKey string) (*replayEntry, bool) {
	if s.cache == nil || idemKey == "" {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.key(callerID, idemKey))
	if err != nil {
		slog.WarnContext(ctx, "idempotency lookup failed", "error", err)
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var entry replayEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		slog.WarnContext(ctx, "discarding unreadable idempotency entry", "error", err)
		return nil, false
	}
	return &entry, true
}

func (s replayStore) remember(ctx context.Context, callerID, idemKey string, req SimulatePaymentRequest, resp SimulatePaymentResponse) {
	if s.cache == nil || idemKey == "" {
		return
	}
	raw, err := json.Marshal(replayEntry{OrderID: req.OrderID, Method: req.Method, Response: resp})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.key(callerID, idemKey), string(raw), idempotencyTTL); err != nil {
		slog.WarnContext(ctx, "idempotency store failed", "error", err)
	}
}
