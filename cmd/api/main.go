package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/config"
	"github.com/conciliai/reconcile-gateway/internal/extraction"
	"github.com/conciliai/reconcile-gateway/internal/handlers"
	"github.com/conciliai/reconcile-gateway/internal/payments"
	"github.com/conciliai/reconcile-gateway/internal/queue"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/internal/services"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/conciliai/reconcile-gateway/pkg/logger"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"github.com/conciliai/reconcile-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Server.MaxRequestBodySize = config.Get().HttpMaxUploadBytes
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	extractor, err := extraction.NewClient(context.Background(), extraction.Config{
		APIKey: config.Get().GeminiAPIKey,
		Model:  config.Get().GeminiModel,
	})
	if err != nil {
		logger.Error("failed to create extraction client", "error", err)
		return
	}

	attemptRepo := repository.NewAttemptRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	verifier := payments.NewVerifier(config.Get().PaymentsWebhookSecret, config.Get().PaymentsWebhookTolerance)

	// services
	importService := services.NewImportService(attemptRepo, profileRepo, q)
	reconcileService := services.NewReconcileService(transactionRepo, batchRepo, profileRepo, extractor)
	billingService := services.NewBillingService(verifier, profileRepo)
	profileService := services.NewProfileService(profileRepo)
	healthService := services.NewHealthService()

	// v1 handlers
	importHandler := handlers.NewImportHandler(importService)
	transactionHandler := handlers.NewTransactionHandler(reconcileService)
	reconciliationHandler := handlers.NewReconciliationHandler(reconcileService)
	profileHandler := handlers.NewProfileHandler(profileService)
	webhookHandler := handlers.NewWebhookHandler(billingService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterImportRoutes(g, importHandler)
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterReconciliationRoutes(g, reconciliationHandler)
	handlers.RegisterProfileRoutes(g, profileHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
