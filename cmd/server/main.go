package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/allocation"
	"github.com/lendcore/loan-engine/internal/breaker"
	"github.com/lendcore/loan-engine/internal/broker"
	"github.com/lendcore/loan-engine/internal/cache"
	"github.com/lendcore/loan-engine/internal/client"
	"github.com/lendcore/loan-engine/internal/config"
	"github.com/lendcore/loan-engine/internal/handler"
	"github.com/lendcore/loan-engine/internal/ledger"
	"github.com/lendcore/loan-engine/internal/logger"
	"github.com/lendcore/loan-engine/internal/metrics"
	"github.com/lendcore/loan-engine/internal/repository"
	"github.com/lendcore/loan-engine/internal/saga"
	"github.com/lendcore/loan-engine/internal/service"
	"github.com/lendcore/loan-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	metrics.Init()

	db, err := initDB(cfg)
	if err != nil {
		logger.Get().Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.Connect(cfg.Redis.Host+":"+cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Get().Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	redisCache := cache.NewRedisCache(redisClient)

	var publisher broker.Publisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.GetKafkaBrokers(), cfg.Kafka.Topic)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
	}

	// Repositories
	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	sagaRepo := repository.NewSagaRepository(db)

	// Collaborator clients behind circuit breakers
	customerCaller := client.NewCaller(
		newBreaker(cfg, "customer-service"),
		cfg.GetCallTimeout(), cfg.Breaker.MaxAttempts, cfg.GetBackoffBase())
	loanCaller := client.NewCaller(
		newBreaker(cfg, "loan-store"),
		cfg.GetCallTimeout(), cfg.Breaker.MaxAttempts, cfg.GetBackoffBase())

	customerClient := client.NewCustomerClient(customerRepo, redisCache, customerCaller)
	loanClient := client.NewLoanClient(loanRepo, loanCaller)

	creditLedger := ledger.NewCreditLedger(creditRepo, publisher)

	pool := worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize)
	defer pool.Stop()

	orchestrator := saga.NewOrchestrator(
		sagaRepo, customerClient, loanClient, creditLedger, publisher, pool,
		saga.Options{
			Timeout:        cfg.GetSagaTimeout(),
			ReservationTTL: cfg.GetReservationTTL(),
			MaturityGrace:  cfg.GetMaturityGrace(),
		})

	engine := allocation.NewEngine(cfg.GetDiscountRate(), cfg.GetPenaltyRate(), cfg.Business.AdvanceLimitDays)

	loanService := service.NewLoanService(orchestrator, loanRepo)
	paymentService := service.NewPaymentService(loanRepo, paymentRepo, engine, creditLedger, redisCache, publisher)

	loanHandler := handler.NewLoanHandler(loanService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	router := setupRoutes(loanHandler, paymentHandler, healthHandler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Get().Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Get().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Get().Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Get().Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnLifetime())

	return db, nil
}

func newBreaker(cfg *config.Config, name string) *breaker.Breaker {
	return breaker.New(breaker.Settings{
		Name:             name,
		WindowSize:       cfg.Breaker.WindowSize,
		MinimumCalls:     cfg.Breaker.MinimumCalls,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		WaitDuration:     cfg.GetBreakerWaitDuration(),
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
		OnStateChange: func(name string, from, to breaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logger.Get().Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func setupRoutes(loanHandler *handler.LoanHandler, paymentHandler *handler.PaymentHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(handler.LoggingMiddleware, handler.MetricsMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}/schedule", loanHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/outstanding", loanHandler.GetOutstanding).Methods("GET")
	api.HandleFunc("/sagas/{sagaId}", loanHandler.GetSaga).Methods("GET")
	api.HandleFunc("/payments", paymentHandler.ProcessPayment).Methods("POST")
	api.HandleFunc("/payments/quote", paymentHandler.CalculatePayment).Methods("POST")

	return router
}
