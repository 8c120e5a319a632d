package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/backoffice/internal/config"
	authdomain "storefront/backoffice/internal/domain/auth"
	orderdomain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"
	"storefront/backoffice/internal/httpserver"
	"storefront/backoffice/internal/infrastructure/cache"
	"storefront/backoffice/internal/infrastructure/kafka"
	"storefront/backoffice/internal/infrastructure/memory"
	"storefront/backoffice/internal/infrastructure/postgres"
	"storefront/backoffice/internal/infrastructure/token"
	"storefront/backoffice/internal/logging"
	"storefront/backoffice/internal/tracing"
	authusecase "storefront/backoffice/internal/usecase/auth"
	orderusecase "storefront/backoffice/internal/usecase/order"
	productusecase "storefront/backoffice/internal/usecase/product"

	"go.uber.org/zap"
)

type repositories struct {
	users    authdomain.UserRepository
	products productdomain.Repository
	orders   orderdomain.Repository
	close    func()
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.StorageDriver == config.DriverMemory {
		store := memory.NewStore()
		return repositories{
			users:    memory.NewUserRepository(store),
			products: memory.NewProductRepository(store),
			orders:   memory.NewOrderRepository(store),
			close:    func() {},
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return repositories{}, err
	}
	return repositories{
		users:    postgres.NewUserRepository(db.Pool),
		products: postgres.NewProductRepository(db.Pool),
		orders:   postgres.NewOrderRepository(db.Pool),
		close:    db.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing := tracing.Init("backoffice")
	defer func() { _ = shutdownTracing(context.Background()) }()

	rootCtx := context.Background()
	repos, err := openRepositories(rootCtx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer repos.close()
	logger.Info("Storage ready", zap.String("driver", cfg.StorageDriver))

	var productOpts []productusecase.Option
	if cfg.CacheEnabled() {
		client, err := cache.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// Serve the catalog straight from the store.
			logger.Warn("Redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			productOpts = append(productOpts, productusecase.WithCache(cache.NewCatalogCache(client, cfg.CatalogTTL, logger)))
			logger.Info("Catalog cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CatalogTTL))
		}
	}
	productService := productusecase.NewService(repos.products, productOpts...)

	if cfg.SeedFixtures {
		fixtures, err := productdomain.Fixtures()
		if err != nil {
			logger.Fatal("Failed to load fixture catalog", zap.Error(err))
		}
		n, err := productService.SeedIfEmpty(rootCtx, fixtures)
		if err != nil {
			logger.Fatal("Failed to seed catalog", zap.Error(err))
		}
		logger.Info("Catalog seeded", zap.Int("products", n))
	}

	orderOpts := []orderusecase.Option{
		orderusecase.WithCatalog(productService),
		orderusecase.WithLogger(logger),
	}
	if cfg.EventsEnabled() {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		publisher := kafka.NewOrderPublisher(producer, cfg.KafkaOrderTopic, logger)
		defer publisher.Close()
		orderOpts = append(orderOpts, orderusecase.WithPublisher(publisher))
		logger.Info("Order events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
	}
	orderService := orderusecase.NewService(repos.orders, repos.products, orderOpts...)

	tokenManager := token.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTIssuer)
	authService := authusecase.NewService(repos.users, tokenManager)
	if cfg.OperatorEmail != "" {
		created, err := authService.EnsureOperator(rootCtx, cfg.OperatorEmail, cfg.OperatorPassword)
		if err != nil {
			logger.Fatal("Failed to bootstrap operator", zap.Error(err))
		}
		logger.Info("Operator account checked", zap.String("email", cfg.OperatorEmail), zap.Bool("created", created))
	}

	server := httpserver.NewServer(cfg, httpserver.Services{
		Auth:     authService,
		Products: productService,
		Orders:   orderService,
	}, logger)
	logger.Info("HTTP server listening", zap.String("addr", server.Addr()))

	go func() {
		if err := server.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				logger.Info("HTTP server closed")
				return
			}
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("Graceful shutdown completed")
	}
}
