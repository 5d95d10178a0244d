package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	cartsvc "github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	reviewsvc "github.com/vladislavdragonenkov/storefront/internal/service/review"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/mongo"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/rediscache"
)

// Dependencies содержит все собранные зависимости приложения.
type Dependencies struct {
	Carts     domain.CartRepository
	Products  domain.ProductRepository
	Orders    domain.OrderRepository
	Outbox    domain.OutboxRepository
	Idem      domain.IdempotencyRepository
	Users     domain.UserRepository
	Analytics domain.AnalyticsRepository

	Authority domain.PaymentAuthority
	Hub       *notify.Hub

	CartService     *cartsvc.Service
	CheckoutService *checkout.Service
	ReviewService   *reviewsvc.Service

	KafkaProducer *kafka.Producer
	Publisher     domain.OutboxPublisher
	DLQPublisher  domain.OutboxPublisher

	store       *postgres.Store
	redisClient *redis.Client
	mongoDB     *mongodriver.Database
	Logger      *log.Entry
}

// NewDependencies собирает зависимости по конфигурации: хранилища по
// выбранному драйверу, опциональные MongoDB-корзины и Redis-кеш каталога,
// Kafka-паблишер и платёжный адаптер.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Hub:    notify.NewHub(),
		Logger: logger,
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps.Carts = memory.NewCartRepository()
		deps.Products = memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Idem = memory.NewIdempotencyRepository()
		users := memory.NewUserRepository()
		deps.Users = users
		deps.Analytics = memory.NewAnalyticsRepository(deps.Orders, deps.Products, users)
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres schema: %w", err)
			}
		}
		deps.store = store
		deps.Carts = postgres.NewCartRepository(store)
		deps.Products = postgres.NewProductRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Idem = postgres.NewIdempotencyRepository(store)
		deps.Users = postgres.NewUserRepository(store)
		deps.Analytics = postgres.NewAnalyticsRepository(store)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.MongoURI != "" {
		db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		// Без уникального индекса по user_id ленивый upsert корзины может
		// создать дубликат документа при гонке первых добавлений.
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = mongo.Disconnect(ctx, db)
			deps.Close()
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		deps.mongoDB = db
		deps.Carts = mongo.NewCartRepository(db)
		logger.WithField("database", cfg.MongoDatabase).Info("carts stored in mongodb")
	}

	var productCache cartsvc.ProductCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cache := rediscache.NewProductCache(client)
		if err := cache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without product cache")
			_ = client.Close()
		} else {
			deps.redisClient = client
			productCache = cache
			logger.WithField("addr", cfg.RedisAddr).Info("product cache enabled")
		}
	}

	if cfg.PaymentBaseURL != "" {
		deps.Authority = payment.NewHTTPAuthority(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
		logger.WithField("base_url", cfg.PaymentBaseURL).Info("payment authority: http adapter")
	} else {
		deps.Authority = payment.NewMockAuthority()
		logger.Warn("payment authority: mock (set STOREFRONT_PAYMENT_BASE_URL for a real provider)")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, outbox events stay pending")
		} else {
			deps.KafkaProducer = producer
			deps.Publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
			deps.DLQPublisher = kafka.NewDLQPublisher(producer)
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	deps.CartService = cartsvc.NewService(deps.Carts, deps.Products, productCache, logger.WithField("component", "cart"))
	deps.CheckoutService = checkout.NewService(
		deps.Carts,
		deps.Products,
		deps.Orders,
		deps.Authority,
		deps.Outbox,
		deps.Idem,
		deps.Hub,
		logger.WithField("component", "checkout"),
	)
	deps.CheckoutService.SetCurrency(cfg.Currency)
	deps.ReviewService = reviewsvc.NewService(deps.Products, deps.Outbox, deps.Hub, logger.WithField("component", "review"))

	return deps, nil
}

// Close освобождает внешние соединения в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.mongoDB != nil {
		if err := mongo.Disconnect(context.Background(), d.mongoDB); err != nil {
			d.Logger.WithError(err).Warn("failed to disconnect mongo client")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
