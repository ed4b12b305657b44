package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the loan engine
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Saga      SagaConfig      `mapstructure:"saga"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port string `mapstructure:"SERVER_PORT"`
	Host string `mapstructure:"SERVER_HOST"`
	Env  string `mapstructure:"ENV"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"DATABASE_URL"`
	MaxOpenConns int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnLifetime string `mapstructure:"DATABASE_CONN_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"KAFKA_BROKERS"`
	Topic   string `mapstructure:"KAFKA_TOPIC"`
	Enabled bool   `mapstructure:"KAFKA_ENABLED"`
}

type SchedulerConfig struct {
	SweepSpec    string `mapstructure:"SCHEDULER_SWEEP_SPEC"`
	RecoverySpec string `mapstructure:"SCHEDULER_RECOVERY_SPEC"`
}

type LoggingConfig struct {
	Level string `mapstructure:"LOG_LEVEL"`
}

type BusinessConfig struct {
	DiscountRatePerDay string `mapstructure:"DISCOUNT_RATE_PER_DAY"`
	PenaltyRatePerDay  string `mapstructure:"PENALTY_RATE_PER_DAY"`
	AdvanceLimitDays   int    `mapstructure:"ADVANCE_LIMIT_DAYS"`
}

type SagaConfig struct {
	Timeout        string `mapstructure:"SAGA_TIMEOUT"`
	ReservationTTL string `mapstructure:"RESERVATION_TTL"`
	MaturityGrace  string `mapstructure:"RESERVATION_MATURITY_GRACE"`
}

type BreakerConfig struct {
	WindowSize       int     `mapstructure:"BREAKER_WINDOW_SIZE"`
	MinimumCalls     int     `mapstructure:"BREAKER_MINIMUM_CALLS"`
	FailureThreshold float64 `mapstructure:"BREAKER_FAILURE_THRESHOLD"`
	WaitDuration     string  `mapstructure:"BREAKER_WAIT_DURATION"`
	HalfOpenMaxCalls int     `mapstructure:"BREAKER_HALF_OPEN_MAX_CALLS"`
	CallTimeout      string  `mapstructure:"BREAKER_CALL_TIMEOUT"`
	MaxAttempts      int     `mapstructure:"BREAKER_MAX_ATTEMPTS"`
	BackoffBase      string  `mapstructure:"BREAKER_BACKOFF_BASE"`
}

type WorkerConfig struct {
	PoolSize  int `mapstructure:"WORKER_POOL_SIZE"`
	QueueSize int `mapstructure:"WORKER_QUEUE_SIZE"`
}

// Load reads configuration from environment variables and an optional .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_LIFETIME", "5m")

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "loan-events")
	viper.SetDefault("KAFKA_ENABLED", true)

	viper.SetDefault("SCHEDULER_SWEEP_SPEC", "@every 1m")
	viper.SetDefault("SCHEDULER_RECOVERY_SPEC", "@every 1m")

	viper.SetDefault("DISCOUNT_RATE_PER_DAY", "0.001")
	viper.SetDefault("PENALTY_RATE_PER_DAY", "0.001")
	viper.SetDefault("ADVANCE_LIMIT_DAYS", 90)

	viper.SetDefault("SAGA_TIMEOUT", "5m")
	viper.SetDefault("RESERVATION_TTL", "15m")
	viper.SetDefault("RESERVATION_MATURITY_GRACE", "720h")

	viper.SetDefault("BREAKER_WINDOW_SIZE", 100)
	viper.SetDefault("BREAKER_MINIMUM_CALLS", 20)
	viper.SetDefault("BREAKER_FAILURE_THRESHOLD", 0.5)
	viper.SetDefault("BREAKER_WAIT_DURATION", "30s")
	viper.SetDefault("BREAKER_HALF_OPEN_MAX_CALLS", 10)
	viper.SetDefault("BREAKER_CALL_TIMEOUT", "2s")
	viper.SetDefault("BREAKER_MAX_ATTEMPTS", 3)
	viper.SetDefault("BREAKER_BACKOFF_BASE", "100ms")

	viper.SetDefault("WORKER_POOL_SIZE", 8)
	viper.SetDefault("WORKER_QUEUE_SIZE", 1024)

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if _, err := decimal.NewFromString(c.Business.DiscountRatePerDay); err != nil {
		return fmt.Errorf("DISCOUNT_RATE_PER_DAY must be a valid decimal: %w", err)
	}
	if _, err := decimal.NewFromString(c.Business.PenaltyRatePerDay); err != nil {
		return fmt.Errorf("PENALTY_RATE_PER_DAY must be a valid decimal: %w", err)
	}
	if c.Business.AdvanceLimitDays <= 0 {
		return fmt.Errorf("ADVANCE_LIMIT_DAYS must be greater than 0")
	}

	for name, val := range map[string]string{
		"SAGA_TIMEOUT":               c.Saga.Timeout,
		"RESERVATION_TTL":            c.Saga.ReservationTTL,
		"RESERVATION_MATURITY_GRACE": c.Saga.MaturityGrace,
		"BREAKER_WAIT_DURATION":      c.Breaker.WaitDuration,
		"BREAKER_CALL_TIMEOUT":       c.Breaker.CallTimeout,
		"BREAKER_BACKOFF_BASE":       c.Breaker.BackoffBase,
		"DATABASE_CONN_LIFETIME":     c.Database.ConnLifetime,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", name, err)
		}
	}

	if c.Breaker.FailureThreshold <= 0 || c.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be in (0, 1]")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetDiscountRate returns the per-day early payment discount rate
func (c *Config) GetDiscountRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.DiscountRatePerDay)
	return rate
}

// GetPenaltyRate returns the per-day late payment penalty rate
func (c *Config) GetPenaltyRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.PenaltyRatePerDay)
	return rate
}

// GetSagaTimeout returns the saga wall-clock deadline
func (c *Config) GetSagaTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Saga.Timeout)
	return d
}

// GetReservationTTL returns the initial credit reservation lifetime
func (c *Config) GetReservationTTL() time.Duration {
	d, _ := time.ParseDuration(c.Saga.ReservationTTL)
	return d
}

// GetMaturityGrace returns the grace period past loan maturity
func (c *Config) GetMaturityGrace() time.Duration {
	d, _ := time.ParseDuration(c.Saga.MaturityGrace)
	return d
}

// GetBreakerWaitDuration returns the open-state wait duration
func (c *Config) GetBreakerWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.WaitDuration)
	return d
}

// GetCallTimeout returns the per-attempt collaborator call timeout
func (c *Config) GetCallTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.CallTimeout)
	return d
}

// GetBackoffBase returns the first retry backoff interval
func (c *Config) GetBackoffBase() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.BackoffBase)
	return d
}

// GetConnLifetime returns the database connection max lifetime
func (c *Config) GetConnLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Database.ConnLifetime)
	return d
}

// GetKafkaBrokers splits the broker list
func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.Kafka.Brokers, ",")
}
