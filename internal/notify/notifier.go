// Package notify delivers buyer emails as a queued side effect of order
// transitions.
//
// Delivery is at-most-once: each notification is handed to the Sender exactly
// one time, a failure is logged and counted, and a full queue drops the
// notification instead of blocking the caller. The transition that produced a
// notification never observes its outcome.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const sendTimeout = 10 * time.Second

type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Kinds of notifications emitted by the service.
const (
	KindPaymentReceived = "payment_received"
	KindOrderDelivered  = "order_delivered"
	KindOrderCancelled  = "order_cancelled"
)

// Sender performs the actual delivery.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Queue is what producers depend on.
type Queue interface {
	Enqueue(ctx context.Context, n Notification) bool
}

type Stats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

type item struct {
	ctx context.Context
	n   Notification
}

type Notifier struct {
	sender Sender
	queue  chan item

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	done    chan struct{}

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

var _ Queue = (*Notifier)(nil)

// NewNotifier creates a notifier with a bounded queue. Call Start to begin
// delivering and Close to drain.
func NewNotifier(sender Sender, size int) *Notifier {
	if size < 1 {
		size = 1
	}
	return &Notifier{
		sender: sender,
		queue:  make(chan item, size),
		done:   make(chan struct{}),
	}
}

func (n *Notifier) Start() {
	if !n.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(n.done)
		for it := range n.queue {
			n.deliver(it)
		}
	}()
}

// Enqueue never blocks. It reports whether the notification was accepted.
// Notifications without a recipient are dropped.
func (n *Notifier) Enqueue(ctx context.Context, msg Notification) bool {
	if msg.To == "" {
		n.dropped.Add(1)
		slog.WarnContext(ctx, "notification dropped: no recipient", "kind", msg.Kind)
		return false
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.dropped.Add(1)
		slog.WarnContext(ctx, "notification dropped: notifier closed", "kind", msg.Kind)
		return false
	}

	select {
	case n.queue <- item{ctx: context.WithoutCancel(ctx), n: msg}:
		return true
	default:
		n.dropped.Add(1)
		slog.WarnContext(ctx, "notification dropped: queue full", "kind", msg.Kind, "notification_id", msg.ID)
		return false
	}
}

// Close stops accepting notifications and waits for the queued ones to be
// attempted or for ctx to end.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	if !n.started.Load() {
		return nil
	}
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) Stats() Stats {
	return Stats{Sent: n.sent.Load(), Failed: n.failed.Load(), Dropped: n.dropped.Load()}
}

func (n *Notifier) deliver(it item) {
	ctx, cancel := context.WithTimeout(it.ctx, sendTimeout)
	defer cancel()

	if err := n.sender.Send(ctx, it.n); err != nil {
		n.failed.Add(1)
		slog.ErrorContext(ctx, "notification failed",
			"notification_id", it.n.ID,
			"kind", it.n.Kind,
			"to", it.n.To,
			"error", err,
		)
		return
	}
	n.sent.Add(1)
}
