package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-orders/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/config"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domainOutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	domainPayment "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"
	httptransport "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/http"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	orderworker "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/order/worker"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/sqlite"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// forwardedEvents leave the process through Kafka when brokers are configured.
var forwardedEvents = domainOutbox.Names(
	domainOrder.OrderCreatedEvent{},
	domainOrder.StockSyncFailedEvent{},
	domainOrder.OrderPaidEvent{},
	domainOrder.PaymentDeclinedEvent{},
	domainOrder.LedgerSyncFailedEvent{},
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config_invalid", zap.Error(err))
	}
	decimal.MarshalJSONWithoutQuotes = true

	baseLogger, err := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		zap.NewExample().Fatal("logger_init_failed", zap.Error(err))
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := zaplogger.New(logging.System(baseLogger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := oteltrace.Setup(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		systemLogger.Error("tracing_init_failed", observability.Err(err))
		os.Exit(1)
	}

	tel := infraobs.NewWithRegistry(
		oteltrace.New(cfg.ServiceName, attribute.String("span.origin", "use_case")),
		zaplogger.New(baseLogger),
		prometrics.New(nil, "", ""),
	)

	var closers []func(context.Context) error
	closeAll := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				systemLogger.Warn("shutdown_step_failed", observability.Err(err))
			}
		}
	}
	fail := func(msg string, err error) {
		systemLogger.Error(msg, observability.Err(err))
		closeAll(context.Background())
		_ = shutdownTracing(context.Background())
		os.Exit(1)
	}

	// Order Store
	var orderRepo domainOrder.Repository
	switch cfg.OrderStore {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.PGURL)
		if err != nil {
			fail("order_store_init_failed", err)
		}
		closers = append(closers, func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			fail("order_store_migrate_failed", err)
		}
		orderRepo = postgres.NewOrderStore(pool, tel.Logger())
	default:
		orderRepo = memory.NewOrderRepository()
	}

	// Saga audit trail
	var recorder sagalog.Recorder
	if cfg.SagaLogPath != "" {
		sagaLog, err := sqlite.Open(cfg.SagaLogPath)
		if err != nil {
			fail("saga_log_init_failed", err)
		}
		closers = append(closers, func(context.Context) error { return sagaLog.Close() })
		recorder = sagaLog
	}

	// Reconciliation claims
	var claimer appOrder.Claimer = memory.NewClaimer()
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			fail("redis_init_failed", err)
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		claimer = redis.NewClaimer(rdb, cfg.ServiceName)
	}

	// Collaborators
	collab, err := newCollaborators(cfg, tel)
	if err != nil {
		fail("collaborators_init_failed", err)
	}

	// In-memory event bus
	bus := outbox.NewBus(tel.Logger())
	bus.Start(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		forwarder := kafka.NewForwarder(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), tel)
		forwarder.Start(bus, forwardedEvents...)
		closers = append(closers, func(context.Context) error { return forwarder.Close() })
	}

	createOrder := appOrder.NewCreateOrderUseCase(orderRepo, collab, id.NewUUIDGenerator(), bus, recorder, tel)
	settlePayment := appPayment.NewSettlePaymentUseCase(orderRepo, newAuthorizer(cfg), collab.Ledger, bus, recorder, tel)
	reconcile := appOrder.NewReconcileUseCase(orderRepo, collab, recorder, tel, appOrder.WithCallBudget(cfg.RemoteTimeout))
	queries := appOrder.NewQueryService(orderRepo, collab.Ledger, tel)

	appPayment.NewNotificationWorker(bus, tel).Start()
	workerpresentation.NewSyncWorker(bus, reconcile, claimer, tel, workerpresentation.WithClaimTTL(cfg.ReconcileClaimTTL)).Start()

	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		orderworker.NewSweeper(orderRepo, bus, cfg.ReconcileInterval, cfg.ReconcileGrace, tel.Logger()).Run(sweeperCtx)
	}()

	router := httppresentation.NewHandler(createOrder, settlePayment, queries, tel).Router()
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("order_store", cfg.OrderStore),
			observability.F("authorizer", cfg.Authorizer),
			observability.F("collaborators", cfg.Collaborators),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.Err(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	stopSweeper()
	<-sweeperDone
	bus.Stop(shutdownCtx)
	closeAll(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Warn("tracing_shutdown_failed", observability.Err(err))
	}
}

func newAuthorizer(cfg *config.Config) domainPayment.Authorizer {
	switch cfg.Authorizer {
	case config.AuthorizerAlways:
		return appPayment.FixedAuthorizer(domainPayment.DecisionAuthorized)
	case config.AuthorizerNever:
		return appPayment.FixedAuthorizer(domainPayment.DecisionDeclined)
	default:
		return appPayment.NewRandomAuthorizer(cfg.PaymentSuccessRate)
	}
}

// newCollaborators returns the REST clients, or seeded in-process stand-ins
// when COLLABORATORS=memory.
func newCollaborators(cfg *config.Config, tel observability.Observability) (appOrder.Collaborators, error) {
	if cfg.Collaborators == config.CollaboratorsMemory {
		products, err := memory.ParseProductSeeds(cfg.SeedProducts)
		if err != nil {
			return appOrder.Collaborators{}, err
		}
		return appOrder.Collaborators{
			Users:    memory.NewUserDirectory(cfg.SeedUsers...),
			Products: memory.NewProductDirectory(products...),
			Ledger:   memory.NewPaymentLedger(),
		}, nil
	}
	return appOrder.Collaborators{
		Users:    httptransport.NewUserDirectory(httptransport.NewClient("users", cfg.UsersAPIURL, tel, httptransport.WithTimeout(cfg.RemoteTimeout))),
		Products: httptransport.NewProductDirectory(httptransport.NewClient("products", cfg.ProductsAPIURL, tel, httptransport.WithTimeout(cfg.RemoteTimeout))),
		Ledger:   httptransport.NewPaymentLedger(httptransport.NewClient("payments", cfg.PaymentsAPIURL, tel, httptransport.WithTimeout(cfg.RemoteTimeout))),
	}, nil
}
