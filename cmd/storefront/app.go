package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/config"
	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
	"github.com/jcmexdev/storefront-fulfillment/internal/orders"
	"github.com/jcmexdev/storefront-fulfillment/internal/payment"
	"github.com/jcmexdev/storefront-fulfillment/internal/pkg/cache"
	"github.com/jcmexdev/storefront-fulfillment/internal/retry"
	"github.com/jcmexdev/storefront-fulfillment/internal/scheduler"
	"github.com/jcmexdev/storefront-fulfillment/internal/shipping"
	"github.com/jcmexdev/storefront-fulfillment/internal/store"
	"github.com/jcmexdev/storefront-fulfillment/internal/store/memory"
	"github.com/jcmexdev/storefront-fulfillment/internal/store/mongostore"
	"github.com/jcmexdev/storefront-fulfillment/internal/workflow/workflowlog"
	"github.com/jcmexdev/storefront-fulfillment/internal/workflow/workflowlog/sqlite"
)

const serviceName = "storefront"

// app holds every long-lived dependency of the process.
type app struct {
	cfg       config.Config
	validator *auth.Validator
	store     store.Store
	cache     cache.Cache
	notifier  *notify.Notifier
	payments  *payment.Service
	shipping  *shipping.Service
	orders    *orders.Service
	scheduler *scheduler.Scheduler

	closers []func(ctx context.Context) error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, validator: auth.NewValidator(cfg.APIKey, cfg.JWTSecret)}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	if err := a.openStore(ctx); err != nil {
		return err
	}

	var wlog workflowlog.Repository
	if a.cfg.WorkflowDBPath != "" {
		repo, err := sqlite.Open(a.cfg.WorkflowDBPath)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return repo.Close() })
		wlog = repo
	}

	locker := scheduler.Locker(scheduler.NewLocalLocker())
	if a.cfg.RedisAddr != "" {
		client, err := cache.Dial(ctx, a.cfg.RedisAddr)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return client.Close() })
		a.cache = cache.NewRedisCache(client, serviceName)
		locker = scheduler.NewRedisLocker(a.cache)
		a.warnIfEvicting(ctx, client)
	}

	sender, err := a.openSender(ctx)
	if err != nil {
		return err
	}
	a.notifier = notify.NewNotifier(sender, a.cfg.NotifyBuffer)
	a.notifier.Start()
	a.onClose(a.notifier.Close)

	a.payments = payment.NewService(a.store, payment.NewSimulatedGateway(), a.notifier,
		payment.WithVerifyGrace(a.cfg.VerifyGrace))
	a.shipping = shipping.NewService(a.store, shipping.NewSimulatedCarrier(), a.notifier,
		shipping.WithWorkflowLog(wlog))
	a.orders = orders.NewService(a.store, a.notifier,
		orders.WithPaymentTimeout(a.cfg.PaymentTimeout))

	a.scheduler = scheduler.New(scheduler.RealClock(), locker,
		scheduler.VerifyPendingPayments(a.payments, a.cfg.VerifyEvery),
		scheduler.CancelTimedOutOrders(a.orders, a.cfg.TimeoutEvery),
	)
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.MongoURI == "" {
		slog.WarnContext(ctx, "MONGO_URI not set, using the in-memory store")
		a.store = memory.New()
		return nil
	}
	st, err := mongostore.Open(ctx, a.cfg.MongoURI, a.cfg.MongoDatabase)
	if err != nil {
		return err
	}
	a.onClose(st.Close)
	a.store = st
	return nil
}

// openSender publishes to RabbitMQ when configured. The broker often starts
// after the service in local compose setups, so dialing is retried.
func (a *app) openSender(ctx context.Context) (notify.Sender, error) {
	if a.cfg.AMQPURL == "" {
		return notify.LogSender{}, nil
	}

	var conn *amqp.Connection
	policy := retry.Default()
	policy.Attempts = 5
	err := retry.Do(ctx, policy, "dial rabbitmq", func(context.Context) error {
		var err error
		conn, err = amqp.Dial(a.cfg.AMQPURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	a.onClose(func(context.Context) error { return conn.Close() })

	sender, err := notify.NewAMQPSender(conn, a.cfg.NotificationQueue)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return sender.Close() })
	slog.InfoContext(ctx, "notifications go to rabbitmq", "queue", a.cfg.NotificationQueue)
	return sender, nil
}

func (a *app) warnIfEvicting(ctx context.Context, client *redis.Client) {
	policy, err := client.ConfigGet(ctx, "maxmemory-policy").Result()
	if err != nil {
		return
	}
	if p := policy["maxmemory-policy"]; p != "" && p != "noeviction" {
		slog.WarnContext(ctx, "redis may evict job leases and idempotency keys", "maxmemory_policy", p)
	}
}

func (a *app) onClose(f func(ctx context.Context) error) {
	a.closers = append(a.closers, f)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func shutdownContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
