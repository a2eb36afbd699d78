package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	CollaboratorsRemote = "remote"
	CollaboratorsMemory = "memory"

	AuthorizerRandom = "random"
	AuthorizerAlways = "always"
	AuthorizerNever  = "never"
)

// MinClaimHeadroom is what a reconcile claim must outlast one remote call by.
const MinClaimHeadroom = 10 * time.Second

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"minishop-orders"`
	Env         string `envconfig:"ENV" default:"dev"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`

	UsersAPIURL    string        `envconfig:"USERS_API_URL" default:"http://localhost:3001"`
	ProductsAPIURL string        `envconfig:"PRODUCTS_API_URL" default:"http://localhost:3002"`
	PaymentsAPIURL string        `envconfig:"PAYMENTS_API_URL" default:"http://localhost:3003"`
	RemoteTimeout  time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`

	// Collaborators=memory swaps the three REST collaborators for in-process
	// stand-ins seeded from SEED_USERS and SEED_PRODUCTS (id:price:stock).
	Collaborators string   `envconfig:"COLLABORATORS" default:"remote"`
	SeedUsers     []string `envconfig:"SEED_USERS"`
	SeedProducts  []string `envconfig:"SEED_PRODUCTS"`

	OrderStore  string `envconfig:"ORDER_STORE" default:"memory"`
	PGURL       string `envconfig:"PG_URL"`
	SagaLogPath string `envconfig:"SAGA_LOG_PATH"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"orders.events"`

	Authorizer         string  `envconfig:"AUTHORIZER" default:"random"`
	PaymentSuccessRate float64 `envconfig:"PAYMENT_SUCCESS_RATE" default:"0.8"`

	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`
	ReconcileGrace    time.Duration `envconfig:"RECONCILE_GRACE" default:"1m"`
	ReconcileClaimTTL time.Duration `envconfig:"RECONCILE_CLAIM_TTL" default:"2m"`

	OTLPEndpoint    string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file and then the process environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.OrderStore = strings.ToLower(strings.TrimSpace(cfg.OrderStore))
	cfg.Authorizer = strings.ToLower(strings.TrimSpace(cfg.Authorizer))
	cfg.Collaborators = strings.ToLower(strings.TrimSpace(cfg.Collaborators))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.OrderStore {
	case StoreMemory:
	case StorePostgres:
		if c.PGURL == "" {
			errs = append(errs, errors.New("PG_URL is required when ORDER_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("ORDER_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.OrderStore))
	}
	switch c.Authorizer {
	case AuthorizerRandom, AuthorizerAlways, AuthorizerNever:
	default:
		errs = append(errs, fmt.Errorf("AUTHORIZER must be one of random, always, never, got %q", c.Authorizer))
	}
	if c.PaymentSuccessRate < 0 || c.PaymentSuccessRate > 1 {
		errs = append(errs, fmt.Errorf("PAYMENT_SUCCESS_RATE must be within [0,1], got %v", c.PaymentSuccessRate))
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("REMOTE_TIMEOUT must be positive"))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	// A create or settle request persists progress after every remote call, so
	// it only looks abandoned once one call has been silent for longer than the grace.
	if c.ReconcileGrace <= c.RemoteTimeout {
		errs = append(errs, fmt.Errorf("RECONCILE_GRACE (%s) must exceed REMOTE_TIMEOUT (%s)", c.ReconcileGrace, c.RemoteTimeout))
	}
	if c.ReconcileClaimTTL < c.RemoteTimeout+MinClaimHeadroom {
		errs = append(errs, fmt.Errorf("RECONCILE_CLAIM_TTL (%s) must be at least REMOTE_TIMEOUT + %s", c.ReconcileClaimTTL, MinClaimHeadroom))
	}
	switch c.Collaborators {
	case CollaboratorsRemote, CollaboratorsMemory:
	default:
		errs = append(errs, fmt.Errorf("COLLABORATORS must be %q or %q, got %q", CollaboratorsRemote, CollaboratorsMemory, c.Collaborators))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
