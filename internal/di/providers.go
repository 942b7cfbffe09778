package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"Shootdown/internal/domain/repository"
	"Shootdown/internal/handler/api"
	internalrepo "Shootdown/internal/repository"
	"Shootdown/internal/service/ratelimit"
	"Shootdown/internal/usecase"
	"Shootdown/pkg/cache"
	pkgch "Shootdown/pkg/clickhouse"
	"Shootdown/pkg/config"
	pkgkafka "Shootdown/pkg/kafka"
	applogger "Shootdown/pkg/logger"
	"Shootdown/pkg/metrics"
	pkgpg "Shootdown/pkg/postgres"
	"Shootdown/pkg/server"
)

const connectTimeout = 10 * time.Second

// ProvideLogCollector aggregates warnings and errors onto a Kafka topic.
// Nil when the collector or Kafka is disabled.
func ProvideLogCollector(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.LogCollector, func()) {
	if !cfg.Log.Collector.Enabled || producer == nil {
		return nil, func() {}
	}
	c := applogger.NewLogCollector(applogger.CollectionConfig{
		TimeInterval:   cfg.Log.Collector.Interval,
		CountThreshold: cfg.Log.Collector.Threshold,
		Topic:          cfg.Log.Collector.Topic,
		Publisher:      internalrepo.NewKafkaLogPublisher(producer, "shootdown"),
		PublishTimeout: cfg.Kafka.Producer.WriteTimeout,
	})
	return c, c.Close
}

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config, collector *applogger.LogCollector) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if collector != nil {
		l = l.WithCollector(collector)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideSource opens the configured exposure/price backend.
func ProvideSource(cfg *config.Config, l *applogger.Logger) (repository.Source, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.Source.Backend {
	case config.BackendPostgres:
		client, err := pkgpg.NewClient(ctx, cfg.Postgres.DSN,
			pkgpg.WithPoolSize(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
			pkgpg.WithMaxConnLifetime(cfg.Postgres.MaxConnLifetime),
			pkgpg.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
			pkgpg.WithApplicationName("shootdown"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres client: %w", err)
		}
		src := internalrepo.NewPostgresSource(client.Pool())
		src.SetLogger(l)
		return src, client.Close, nil

	case config.BackendClickHouse:
		client, err := pkgch.NewClient(ctx,
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		if cfg.ClickHouse.InitSchema {
			if err := client.InitSchema(ctx, pkgch.ResidualSchema(cfg.ClickHouse.Database)); err != nil {
				_ = client.Close()
				return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
			}
		}
		src := internalrepo.NewCHSource(client)
		src.SetLogger(l)
		return src, func() { _ = client.Close() }, nil

	case config.BackendSample:
		src, err := internalrepo.NewSampleSource(cfg.Source.SamplePath)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown source backend %q", cfg.Source.Backend)
}

// ProvideCache creates the layered view cache. Nil when caching is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	var rc *cache.RedisCache
	if cfg.Cache.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		var err error
		rc, err = cache.NewRedisCache(ctx,
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix("shootdown"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	)
	return lc, func() { _ = lc.Close() }, nil
}

// ProvideViewCache adapts the cache service to computed views.
func ProvideViewCache(svc cache.Service, m repository.Metrics) repository.ViewCache {
	if svc == nil {
		return nil
	}
	return internalrepo.NewViewCache(svc, m)
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideViewPublisher publishes computed views. Nil without a producer.
func ProvideViewPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ViewPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ViewsTopic)
}

// ProvideResidualViewUseCase creates the residual value use case.
func ProvideResidualViewUseCase(
	src repository.Source,
	vc repository.ViewCache,
	pub repository.ViewPublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ResidualViewUseCase {
	opts := []usecase.Option{
		usecase.WithLogger(l),
		usecase.WithSourceTimeout(cfg.Source.Timeout),
	}
	if vc != nil {
		opts = append(opts, usecase.WithViewCache(vc, cfg.Cache.TTL))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewResidualViewUseCase(src, m, opts...)
}

// ProvideRateLimiter creates the per-client API limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// ProvideResidualValueHandler creates the HTTP handler.
func ProvideResidualValueHandler(
	l *applogger.Logger,
	uc *usecase.ResidualViewUseCase,
	lim *ratelimit.Limiter,
	cfg *config.Config,
) *api.ResidualValueHandler {
	return api.NewResidualValueHandler(l, uc, lim, cfg.Source.DatesLimit)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideRecomputeHandler handles recompute requests from Kafka.
func ProvideRecomputeHandler(uc *usecase.ResidualViewUseCase, m repository.Metrics, cfg *config.Config) *usecase.RecomputeHandler {
	return usecase.NewRecomputeHandler(cfg.Kafka.RecomputeTopic, uc, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.ResidualValueHandler,
	consumer *pkgkafka.Consumer,
	rh *usecase.RecomputeHandler,
) *server.App {
	return server.New(cfg, l, h, consumer, rh)
}
