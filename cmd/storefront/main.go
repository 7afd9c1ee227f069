package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/config"
	"github.com/jcmexdev/storefront-fulfillment/internal/httpx"
	"github.com/jcmexdev/storefront-fulfillment/internal/pkg/telemetry"
	"github.com/jcmexdev/storefront-fulfillment/internal/scheduler"
)

func main() {
	cliApp := &cli.App{
		Name:  serviceName,
		Usage: "order payment and shipment simulator for the storefront",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the environment",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and the background jobs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides STOREFRONT_HTTP_ADDR"},
					&cli.BoolFlag{Name: "no-scheduler", Usage: "do not run the background jobs"},
				},
				Action: serve,
			},
			{
				Name:   "sweep-timeouts",
				Usage:  "reject orders whose payment window has passed, once",
				Action: runJob(scheduler.CancelTimedOutOrdersJob),
			},
			{
				Name:   "verify-payments",
				Usage:  "re-check pending payments, once",
				Action: runJob(scheduler.VerifyPendingPaymentsJob),
			},
			{
				Name:  "token",
				Usage: "print a bearer token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: issueToken,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("storefront failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return cfg, err
	}
	telemetry.InitLogger(os.Stderr, cfg.SlogLevel(), serviceName)
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := shutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			slog.Error("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := shutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := a.Close(sctx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	if cfg.SchedulerEnable && !c.Bool("no-scheduler") {
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}

	handler := httpx.NewHandler(a.payments, a.shipping, a.orders, a.cache)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(handler, a.validator),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("storefront listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	a.scheduler.Stop()
	sctx, cancel := shutdownContext(cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func runJob(name string) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := shutdownContext(cfg.ShutdownTimeout)
			defer cancel()
			if err := a.Close(sctx); err != nil {
				slog.Error("shutdown failed", "error", err)
			}
		}()

		return a.scheduler.RunJob(ctx, name)
	}
}

func issueToken(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	token, err := auth.NewValidator(cfg.APIKey, cfg.JWTSecret).Issue(
		auth.Caller{ID: c.String("user"), Email: c.String("email")},
		c.Duration("ttl"),
	)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, token)
	return err
}
