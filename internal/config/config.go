// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "STOREFRONT"

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	// The storefront shares these two with the simulator; the unprefixed
	// names are accepted as well.
	APIKey    string `envconfig:"SIM_API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"storefront"`

	WorkflowDBPath string `envconfig:"WORKFLOW_DB" default:"workflow.db"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL           string `envconfig:"AMQP_URL"`
	NotificationQueue string `envconfig:"NOTIFICATION_QUEUE" default:"storefront.emails"`
	NotifyBuffer      int    `envconfig:"NOTIFY_BUFFER" default:"256"`

	PaymentTimeout  time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"30m"`
	TimeoutEvery    time.Duration `envconfig:"TIMEOUT_SWEEP_EVERY" default:"10m"`
	VerifyEvery     time.Duration `envconfig:"VERIFY_PAYMENTS_EVERY" default:"5m"`
	VerifyGrace     time.Duration `envconfig:"VERIFY_GRACE" default:"2m"`
	SchedulerEnable bool          `envconfig:"SCHEDULER" default:"true"`
}

// Load reads envFiles (missing files are fine) and then the environment.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
		slog.Debug("loaded env file", "path", f)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("SIM_API_KEY is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.PaymentTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_TIMEOUT must be positive"))
	}
	if c.TimeoutEvery <= 0 {
		errs = append(errs, errors.New("TIMEOUT_SWEEP_EVERY must be positive"))
	}
	if c.VerifyEvery <= 0 {
		errs = append(errs, errors.New("VERIFY_PAYMENTS_EVERY must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
