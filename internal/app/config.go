package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию хранилищ приложения.
type StorageDriver string

const (
	// StorageDriverMemory — in-memory хранилища для разработки и тестов.
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverPostgres — Postgres для заказов, outbox и идемпотентности.
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска витрины. Значения читаются из
// переменных окружения с префиксом STOREFRONT_.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// MongoURI включает хранение корзин в MongoDB; пустое значение
	// оставляет корзины в выбранном StorageDriver.
	MongoURI      string
	MongoDatabase string

	// RedisAddr включает read-through кеш каталога для проекции корзины.
	RedisAddr     string
	RedisPassword string

	// KafkaBrokers включает публикацию outbox-событий в Kafka.
	KafkaBrokers []string

	// PaymentBaseURL включает HTTP-адаптер платёжного провайдера;
	// пустое значение оставляет мок для локальной разработки.
	PaymentBaseURL string
	PaymentAPIKey  string
	PaymentTimeout time.Duration

	Currency string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		MongoDatabase:               "storefront",
		PaymentTimeout:              10 * time.Second,
		Currency:                    "USD",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           5,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyCleanupInterval:  time.Hour,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig собирает конфигурацию из окружения поверх значений по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("STOREFRONT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("STOREFRONT_METRICS_ADDR", cfg.MetricsAddr)

	if driver := envString("STOREFRONT_STORAGE_DRIVER", string(cfg.StorageDriver)); driver != "" {
		cfg.StorageDriver = StorageDriver(driver)
	}
	cfg.PostgresDSN = envString("STOREFRONT_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("STOREFRONT_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.MongoURI = envString("STOREFRONT_MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = envString("STOREFRONT_MONGO_DATABASE", cfg.MongoDatabase)

	cfg.RedisAddr = envString("STOREFRONT_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("STOREFRONT_REDIS_PASSWORD", cfg.RedisPassword)

	if brokers := envString("STOREFRONT_KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.PaymentBaseURL = envString("STOREFRONT_PAYMENT_BASE_URL", cfg.PaymentBaseURL)
	cfg.PaymentAPIKey = envString("STOREFRONT_PAYMENT_API_KEY", cfg.PaymentAPIKey)
	cfg.PaymentTimeout = envDuration("STOREFRONT_PAYMENT_TIMEOUT", cfg.PaymentTimeout)

	cfg.Currency = envString("STOREFRONT_CURRENCY", cfg.Currency)

	cfg.OutboxPollInterval = envDuration("STOREFRONT_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("STOREFRONT_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("STOREFRONT_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("STOREFRONT_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.IdempotencyCleanupInterval = envDuration("STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
