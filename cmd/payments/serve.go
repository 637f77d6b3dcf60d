package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-ledger/internal/app/payments"
	"payment-ledger/internal/config"
	"payment-ledger/internal/gateway"
	payments_http "payment-ledger/internal/handler/http/payments"
	kafka_handler "payment-ledger/internal/handler/kafka"
	"payment-ledger/internal/infrastructure/database"
	kafka_infra "payment-ledger/internal/infrastructure/kafka"
	"payment-ledger/internal/outbox"
	"payment-ledger/internal/repository/outbox_repo"
	"payment-ledger/internal/repository/payment_methods_repo"
	"payment-ledger/internal/repository/transactions_repo"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the charge-request consumer and the outbox relay",
		Long: `Run the payments service.

Configuration comes from the environment, optionally seeded from a .env file
and from the YAML file named by PAYMENTS_CONFIG_FILE.

` + config.Usage(),
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Payments service starting...", zap.String("version", Version))

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	dbConfig := cfg.Database()
	appLogger.Info("Waiting for database to be available...")
	sqlDB, err := database.ConnectWithRetry(ctxMain, dbConfig, cfg.DBConfig.ConnectRetries, cfg.DBConfig.ConnectRetryDelay, appLogger)
	if err != nil {
		appLogger.Error("Could not connect to database", zap.Error(err))
		return err
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed")
		}
	}()

	appLogger.Info("Running database migrations...")
	if err := database.MigrateUp(dbConfig.URL(), appLogger.With(zap.String("component", "Migrator"))); err != nil {
		appLogger.Error("Failed to run database migrations", zap.Error(err))
		return err
	}

	db := database.New(sqlDB, appLogger.With(zap.String("component", "Database")))
	paymentMethodRepository := payment_methods_repo.NewPaymentMethodRepository(sqlDB, appLogger.With(zap.String("component", "PaymentMethodRepository")))
	transactionRepository := transactions_repo.NewTransactionRepository()
	outboxRepository := outbox_repo.NewOutboxRepository()

	paymentService := payments.NewPaymentService(
		db,
		paymentMethodRepository,
		transactionRepository,
		outboxRepository,
		gateway.NewMockGateway(cfg.Gateway.ChargeLimitCents),
		cfg.Kafka.TransactionEventsTopic,
		appLogger.With(zap.String("component", "PaymentService")),
	)
	appLogger.Info("Payment Service initialized")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	payments_http.RegisterRoutes(router, paymentService, appLogger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	var workers sync.WaitGroup
	var chargeConsumer *kafka_infra.Consumer
	var kafkaProducer *kafka_infra.KafkaProducer

	if cfg.Kafka.Enabled {
		kafkaBrokers := cfg.GetKafkaBrokers()
		topicsCtx, cancelTopics := context.WithTimeout(ctxMain, 10*time.Second)
		err = kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers,
			[]string{cfg.Kafka.ChargeRequestsTopic, cfg.Kafka.TransactionEventsTopic},
			cfg.Kafka.TopicPartitions, appLogger)
		cancelTopics()
		if err != nil {
			appLogger.Error("Failed to ensure Kafka topics", zap.Error(err))
			return err
		}

		kafkaProducer = kafka_infra.NewProducer(kafkaBrokers, cfg.Kafka.WriteTimeout, appLogger.With(zap.String("component", "KafkaProducer")))
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()

		outboxProcessor := outbox.NewProcessor(
			db,
			outboxRepository,
			kafkaProducer,
			cfg.Outbox.PollInterval,
			cfg.Outbox.PollTimeout,
			cfg.Outbox.BatchSize,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)

		chargeConsumer = kafka_infra.NewConsumer(
			kafkaBrokers,
			cfg.Kafka.ChargeRequestsTopic,
			cfg.Kafka.ConsumerGroup,
			kafka_handler.ChargeRequestMessageHandler(paymentService, appLogger.With(zap.String("component", "ChargeRequestHandler"))),
			cfg.Kafka.HandlerTimeout,
			appLogger.With(zap.String("component", "ChargeRequestConsumer")),
		)

		workers.Add(2)
		go func() {
			defer workers.Done()
			outboxProcessor.Start(ctxMain)
		}()
		go func() {
			defer workers.Done()
			if err := chargeConsumer.Consume(ctxMain); err != nil {
				appLogger.Error("Charge request consumer failed", zap.Error(err))
			}
			appLogger.Info("Charge request consumer stopped")
		}()
	} else {
		appLogger.Warn("Kafka disabled: charge requests are not consumed and outbox messages stay pending")
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		appLogger.Info("Shutting down application...", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		appLogger.Error("HTTP server failed", zap.Error(runErr))
	}

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down")
	}

	if chargeConsumer != nil {
		if err := chargeConsumer.Close(); err != nil {
			appLogger.Error("Error closing charge request consumer", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		appLogger.Warn("Background workers did not stop before the shutdown deadline")
	}

	appLogger.Info("Application gracefully shut down")
	return runErr
}
