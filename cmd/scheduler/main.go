package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/breaker"
	"github.com/lendcore/loan-engine/internal/broker"
	"github.com/lendcore/loan-engine/internal/cache"
	"github.com/lendcore/loan-engine/internal/client"
	"github.com/lendcore/loan-engine/internal/config"
	"github.com/lendcore/loan-engine/internal/ledger"
	"github.com/lendcore/loan-engine/internal/logger"
	"github.com/lendcore/loan-engine/internal/metrics"
	"github.com/lendcore/loan-engine/internal/repository"
	"github.com/lendcore/loan-engine/internal/saga"
)

// The scheduler runs the two background sweeps: reclaiming expired credit
// reservations and compensating sagas stuck past their deadline.
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

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Get().Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.Connect(cfg.Redis.Host+":"+cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Get().Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	var publisher broker.Publisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.GetKafkaBrokers(), cfg.Kafka.Topic)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
	}

	creditRepo := repository.NewCreditRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	sagaRepo := repository.NewSagaRepository(db)

	creditLedger := ledger.NewCreditLedger(creditRepo, publisher)

	caller := client.NewCaller(
		breaker.New(breaker.Settings{Name: "scheduler"}),
		cfg.GetCallTimeout(), cfg.Breaker.MaxAttempts, cfg.GetBackoffBase())
	customerClient := client.NewCustomerClient(customerRepo, cache.NewRedisCache(redisClient), caller)
	loanClient := client.NewLoanClient(loanRepo, caller)

	orchestrator := saga.NewOrchestrator(
		sagaRepo, customerClient, loanClient, creditLedger, publisher, inlineRunner{},
		saga.Options{
			Timeout:        cfg.GetSagaTimeout(),
			ReservationTTL: cfg.GetReservationTTL(),
			MaturityGrace:  cfg.GetMaturityGrace(),
		})

	c := cron.New()
	setupCronJobs(c, cfg, creditLedger, orchestrator)

	c.Start()
	logger.Get().Info("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Get().Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, creditLedger *ledger.CreditLedger, orchestrator *saga.Orchestrator) {
	_, err := c.AddFunc(cfg.Scheduler.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		swept, err := creditLedger.SweepExpired(ctx, time.Now())
		if err != nil {
			logger.Get().Error("reservation sweep failed", zap.Error(err))
			return
		}
		if swept > 0 {
			metrics.ReservationsExpired.Add(float64(swept))
			logger.Get().Info("reservation sweep completed", zap.Int("expired", swept))
		}
	})
	if err != nil {
		logger.Get().Fatal("failed to schedule reservation sweep", zap.Error(err))
	}

	_, err = c.AddFunc(cfg.Scheduler.RecoverySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		recovered, err := orchestrator.RecoverStuck(ctx, time.Now())
		if err != nil {
			logger.Get().Error("saga recovery sweep failed", zap.Error(err))
			return
		}
		if recovered > 0 {
			logger.Get().Warn("saga recovery sweep completed", zap.Int("recovered", recovered))
		}
	})
	if err != nil {
		logger.Get().Fatal("failed to schedule saga recovery", zap.Error(err))
	}
}

// inlineRunner satisfies the orchestrator's Runner; the scheduler never
// starts new sagas, recovery runs synchronously inside the cron job.
type inlineRunner struct{}

func (inlineRunner) Submit(f func()) { f() }
