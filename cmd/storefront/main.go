// cmd/storefront/main.go
package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"storefront/internal/pkg/auth"
	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/database"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/mq"
	"storefront/internal/pkg/redis"
	catalogapp "storefront/internal/service/catalog/application"
	cataloginfra "storefront/internal/service/catalog/infrastructure"
	catalogapi "storefront/internal/service/catalog/interfaces"
	orderapp "storefront/internal/service/order/application"
	"storefront/internal/service/order/domain/port"
	orderinfra "storefront/internal/service/order/infrastructure"
	"storefront/internal/service/order/infrastructure/adapter"
	orderapi "storefront/internal/service/order/interfaces"
	promotionapp "storefront/internal/service/promotion/application"
	promotioninfra "storefront/internal/service/promotion/infrastructure"
	"storefront/internal/service/promotion/infrastructure/rule"
	promotionapi "storefront/internal/service/promotion/interfaces"
)

const serviceName = "storefront"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx, os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.IsDevelopment())

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("AUTH_JWT_SECRET is required")
	}
	if cfg.Checkout.TrustClientAmount {
		log.Warn().Msg("checkout.trust_client_amount is enabled: order totals are taken from the client without verification")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.Database.AutoMigrate {
		migrate(db)
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	tracer := otel.Tracer(serviceName)

	// 商品
	productRepo := cataloginfra.NewGormProductRepository(db)
	catalogSvc := catalogapp.NewCatalogService(productRepo, tracer)

	// 优惠券
	rules, err := rule.NewCELRuleEngine()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rule engine")
	}
	promotionSvc := promotionapp.NewPromotionService(promotioninfra.NewGormCouponRepository(db), rules, tracer)

	// 订单
	notifier, closeNotifier := newNotifier(cfg)
	idempotency, err := adapter.NewIdempotencyRedisAdapter(ctx, rdb, 2*cfg.Checkout.Timeout, cfg.Redis.IdempotencyTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize idempotency store")
	}
	orderSvc := orderapp.NewOrderApplicationService(
		orderinfra.NewGormOrderRepository(db),
		tracer,
		adapter.NewInventoryCatalogAdapter(productRepo),
		adapter.NewCouponPromotionAdapter(promotionSvc),
		adapter.NewPaymentHTTPAdapter(httpclient.NewClient(tracer), cfg.Payment),
		notifier,
		idempotency,
		orderapp.Options{
			TrustClientAmount:   cfg.Checkout.TrustClientAmount,
			Timeout:             cfg.Checkout.Timeout,
			NotificationTimeout: cfg.Notification.PublishTimeout,
		},
	)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.CouponValidateRPS, cfg.RateLimit.CouponValidateBurst)

	catalogHandler := catalogapi.NewCatalogHandler(catalogSvc)
	promotionHandler := promotionapi.NewPromotionHandler(promotionSvc)
	orderHandler := orderapi.NewOrderHandler(orderSvc)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(tokens.Middleware)

				catalogHandler.RegisterRoutes(r)
				promotionHandler.RegisterRoutes(r, limiter.Middleware)
				orderHandler.RegisterRoutes(r)

				r.Route("/admin", func(r chi.Router) {
					r.Use(auth.RequireRole(auth.RoleAdmin))
					catalogHandler.RegisterAdminRoutes(r)
					promotionHandler.RegisterAdminRoutes(r)
					orderHandler.RegisterAdminRoutes(r)
				})
			})
		},
		Shutdown: []func(ctx context.Context) error{
			orderSvc.WaitForNotifications,
			func(context.Context) error { return closeNotifier() },
			func(context.Context) error { return rdb.Close() },
			func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	})
}

func migrate(db *gorm.DB) {
	for name, fn := range map[string]func(*gorm.DB) error{
		"catalog":   cataloginfra.AutoMigrate,
		"promotion": promotioninfra.AutoMigrate,
		"order":     orderinfra.AutoMigrate,
	} {
		if err := fn(db); err != nil {
			log.Fatal().Err(err).Str("schema", name).Msg("auto migration failed")
		}
	}
}

// newNotifier 按 notification.transport 选择 Kafka 或 RabbitMQ
func newNotifier(cfg *config.Config) (port.NotificationProducer, func() error) {
	switch cfg.Notification.Transport {
	case "rabbitmq":
		r, err := mq.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		a := adapter.NewNotificationRabbitMQAdapter(r)
		return a, a.Close
	case "kafka", "":
		a := adapter.NewNotificationKafkaAdapter(mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic))
		return a, a.Close
	default:
		log.Fatal().Str("transport", cfg.Notification.Transport).Msg("unknown notification transport")
		return nil, nil
	}
}
