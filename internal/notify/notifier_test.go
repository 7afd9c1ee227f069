package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[n.To]; ok {
		return err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.sent {
		out = append(out, n.To)
	}
	return out
}

func TestNotifier_DeliversEachNotificationOnce(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"broken@example.com": errors.New("smtp down")}}
	n := notify.NewNotifier(sender, 10)
	n.Start()

	ctx := context.Background()
	assert.True(t, n.Enqueue(ctx, notify.PaymentReceived("a@example.com", "o1", "SIMPAY-1")))
	assert.True(t, n.Enqueue(ctx, notify.PaymentReceived("broken@example.com", "o2", "SIMPAY-2")))
	assert.True(t, n.Enqueue(ctx, notify.OrderCancelled("b@example.com", "o3")))

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, n.Close(closeCtx))

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sender.recipients())
	assert.Equal(t, notify.Stats{Sent: 2, Failed: 1, Dropped: 0}, n.Stats())
}

func TestNotifier_DropsWhenQueueIsFull(t *testing.T) {
	n := notify.NewNotifier(&fakeSender{}, 1)

	ctx := context.Background()
	assert.True(t, n.Enqueue(ctx, notify.OrderCancelled("a@example.com", "o1")))
	assert.False(t, n.Enqueue(ctx, notify.OrderCancelled("b@example.com", "o2")))
	assert.Equal(t, int64(1), n.Stats().Dropped)
}

func TestNotifier_DropsWithoutRecipientOrAfterClose(t *testing.T) {
	n := notify.NewNotifier(&fakeSender{}, 4)
	ctx := context.Background()

	assert.False(t, n.Enqueue(ctx, notify.OrderCancelled("", "o1")))

	require.NoError(t, n.Close(ctx))
	assert.False(t, n.Enqueue(ctx, notify.OrderCancelled("a@example.com", "o2")))
	assert.Equal(t, int64(2), n.Stats().Dropped)
}
