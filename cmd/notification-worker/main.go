// cmd/notification-worker/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/pkg/tracing"
	"storefront/internal/service/notification/application"
	"storefront/internal/service/notification/domain"
	"storefront/internal/service/notification/infrastructure"
	"storefront/internal/service/notification/interfaces"
)

const serviceName = "notification-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.IsDevelopment())

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Tracing.JaegerEndpoint, cfg.App.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	tracer := otel.Tracer(serviceName)

	var mailer domain.Mailer = infrastructure.LogMailer{}
	if cfg.Notification.MailerEndpoint != "" {
		mailer = infrastructure.NewHTTPMailer(httpclient.NewClient(tracer), cfg.Notification.MailerEndpoint,
			cfg.Notification.MailerAPIKey, cfg.Notification.MailerFrom)
	} else {
		log.Warn().Msg("no mailer endpoint configured, emails will only be logged")
	}
	svc := application.NewNotificationService(mailer, tracer)

	g, gctx := errgroup.WithContext(ctx)
	switch cfg.Notification.Transport {
	case "rabbitmq":
		r, err := mq.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		defer r.Close()
		deliveries, err := r.Consume(serviceName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start rabbitmq consumer")
		}
		consumer := interfaces.NewRabbitMQConsumer(deliveries, cfg.RabbitMQ.Queue, svc, tracer)
		g.Go(func() error { return consumer.Run(gctx) })
	default:
		reader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, cfg.Kafka.ConsumerGroup)
		consumer := interfaces.NewKafkaConsumer(reader, cfg.Kafka.NotificationTopic, svc, tracer)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	// 运维端口只暴露 /healthz 与 /metrics
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           bootstrap.NewRouter(serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info().Str("transport", cfg.Notification.Transport).Int("port", cfg.App.Port).Msg("notification worker started")
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("notification worker stopped with error")
	}
	log.Info().Msg("notification worker shut down")
}
