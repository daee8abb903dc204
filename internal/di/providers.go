package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"SolGate/internal/alert"
	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/internal/handler/api"
	"SolGate/internal/ingest"
	mid "SolGate/internal/middleware"
	"SolGate/internal/publish"
	"SolGate/internal/registry"
	internalrepo "SolGate/internal/repository"
	"SolGate/internal/router"
	svccache "SolGate/internal/service/cache"
	"SolGate/internal/service/stream"
	"SolGate/internal/usage"
	"SolGate/internal/usecase"
	pkgcache "SolGate/pkg/cache"
	pkgch "SolGate/pkg/clickhouse"
	"SolGate/pkg/config"
	pkgkafka "SolGate/pkg/kafka"
	"SolGate/pkg/logger"
	"SolGate/pkg/metrics"
	"SolGate/pkg/queue"
	"SolGate/pkg/server"
)

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRegistry loads providers from configuration.
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	return registry.FromConfig(cfg.Providers)
}

// ProvideCacheBackend selects the cache backend: layered Redis+memory when
// Redis is configured, in-process memory otherwise.
func ProvideCacheBackend(cfg *config.Config, lgr *logger.Logger) pkgcache.Service {
	if cfg.Cache.Redis.Enabled {
		redisCache, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			lgr.Warn("redis cache unavailable, falling back to memory", logger.Error(err))
		} else {
			return pkgcache.NewLayeredCache(redisCache,
				pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
		}
	}
	return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
}

// ProvideCacheStore builds the tiered response cache.
func ProvideCacheStore(cfg *config.Config, backend pkgcache.Service, m repository.Metrics, lgr *logger.Logger) *svccache.Store {
	return svccache.NewStore(backend, m, lgr, svccache.TTLs{
		Hot:    cfg.Cache.TTL.Hot.Std(),
		Warm:   cfg.Cache.TTL.Warm.Std(),
		Cold:   cfg.Cache.TTL.Cold.Std(),
		Frozen: cfg.Cache.TTL.Frozen.Std(),
	})
}

// ProvideAlertQueue builds the Redis-backed alert queue, or nil when
// disabled.
func ProvideAlertQueue(cfg *config.Config, lgr *logger.Logger) *queue.RedisQueue {
	if !cfg.AlertQueue.Enabled {
		return nil
	}
	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.AlertQueue.Host),
		pkgcache.WithRedisPort(cfg.AlertQueue.Port),
		pkgcache.WithRedisPassword(cfg.AlertQueue.Password),
		pkgcache.WithRedisDB(cfg.AlertQueue.DB),
	)
	if err != nil {
		lgr.Warn("alert queue redis unavailable, alerts will log only", logger.Error(err))
		return nil
	}
	workers := cfg.AlertQueue.Workers
	if workers <= 0 {
		workers = 1
	}
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    workers,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, redisCache.Client(), queue.ModeProducerConsumer,
		queue.WithKeyPrefix("solgate:alerts"))
	q.RegisterJob(alert.NewQuotaAlertJob(lgr))
	return q
}

// ProvideAlertNotifier picks queue delivery when available, logging
// otherwise.
func ProvideAlertNotifier(q *queue.RedisQueue, lgr *logger.Logger) repository.AlertNotifier {
	if q != nil {
		return alert.NewQueueNotifier(q)
	}
	return alert.NewLogNotifier(lgr)
}

// ProvideUsageTracker builds the quota tracker.
func ProvideUsageTracker(cfg *config.Config, reg *registry.Registry, notifier repository.AlertNotifier, lgr *logger.Logger) *usage.Tracker {
	return usage.NewTracker(reg, notifier, lgr, cfg.Usage.AlertThreshold, cfg.Usage.AlertInterval.Std())
}

// ProvideRouter builds the provider router.
func ProvideRouter(cfg *config.Config, reg *registry.Registry, tracker *usage.Tracker, m repository.Metrics, lgr *logger.Logger) *router.Router {
	client := router.NewRPCClient(models.ParseNetwork(cfg.Network), cfg.Routing.RequestTimeout.Std())
	return router.New(reg, tracker, client, m, lgr, router.Options{
		Policy:           models.RoutingPolicy(cfg.Routing.Policy),
		FailureThreshold: cfg.Routing.FailureThreshold,
		Cooldown:         cfg.Routing.Cooldown.Std(),
	})
}

// ProvideGateway builds the outbound call orchestrator.
func ProvideGateway(cfg *config.Config, store *svccache.Store, r *router.Router, m repository.Metrics, lgr *logger.Logger) *usecase.Gateway {
	return usecase.NewGateway(store, r, m, lgr, cfg.Batch.MaxSize, cfg.Batch.MaxWait.Std())
}

// ProvideExtractor builds the signal extractor.
func ProvideExtractor(cfg *config.Config) *ingest.Extractor {
	return ingest.NewExtractor(ingest.ExtractorConfig{
		LargeAmount:   cfg.Webhook.LargeAmount,
		StrengthScale: cfg.Webhook.StrengthCap,
		HighFee:       cfg.Webhook.HighFee,
		MintSeenTTL:   cfg.Webhook.MintSeenTTL.Std(),
	})
}

// ProvideIngestor builds the webhook pipeline.
func ProvideIngestor(cfg *config.Config, extractor *ingest.Extractor, m repository.Metrics, lgr *logger.Logger) *ingest.Ingestor {
	return ingest.NewIngestor(cfg.Webhook.AuthToken, cfg.Webhook.RatePerMin, extractor, m, lgr)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout.Std(), cfg.ClickHouse.ReadTimeout.Std(), cfg.ClickHouse.WriteTimeout.Std()),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger.Std()),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout.Std(), cfg.Kafka.Producer.ReadTimeout.Std()),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// kafkaLogPublisher adapts the Kafka producer to the log collector.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// AttachLogCollector ships aggregated warn/error logs to Kafka when both
// the producer and a log topic are configured.
func AttachLogCollector(cfg *config.Config, lgr *logger.Logger, producer *pkgkafka.Producer) {
	if producer == nil || cfg.Kafka.LogTopic == "" {
		return
	}
	lgr.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogTopic,
		Publisher:      kafkaLogPublisher{producer: producer},
	})
}

// ProvideSignalArchive builds the ClickHouse archive and its schema, or nil.
func ProvideSignalArchive(chClient *pkgch.Client) (repository.SignalArchive, error) {
	if chClient == nil {
		return nil, nil
	}
	archive := internalrepo.NewClickHouseArchive(chClient)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal archive schema: %w", err)
	}
	return archive, nil
}

// ProvideUsageStore builds the snapshot store and its schema, or nil.
func ProvideUsageStore(chClient *pkgch.Client) (repository.UsageStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseUsageStore(chClient)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("usage store schema: %w", err)
	}
	return store, nil
}

// ProvidePublisher assembles the signal fan-out from whatever sinks are
// configured.
func ProvidePublisher(cfg *config.Config, m repository.Metrics, lgr *logger.Logger, producer *pkgkafka.Producer, archive repository.SignalArchive) *publish.Publisher {
	var sinks []repository.SignalSink
	if cfg.Downstream.DecisionURL != "" {
		sinks = append(sinks, publish.NewDecisionSink(cfg.Downstream.DecisionURL, cfg.Downstream.Timeout.Std()))
	}
	if cfg.Downstream.WorkflowURL != "" {
		sinks = append(sinks, publish.NewWorkflowSink(cfg.Downstream.WorkflowURL, cfg.Downstream.Timeout.Std()))
	}
	if producer != nil && cfg.Kafka.SignalTopic != "" {
		sinks = append(sinks, publish.NewKafkaSink(producer, cfg.Kafka.SignalTopic))
	}
	if archive != nil {
		sinks = append(sinks, internalrepo.NewArchiveSink(archive))
	}
	return publish.New(m, lgr, sinks...)
}

// ProvideStreamCollector builds the WebSocket collector, or nil when the
// stream is disabled.
func ProvideStreamCollector(cfg *config.Config, extractor *ingest.Extractor, pub *publish.Publisher, m repository.Metrics, lgr *logger.Logger) *usecase.StreamCollector {
	if !cfg.Stream.Enabled || cfg.Stream.URL == "" {
		return nil
	}
	apiKey := ""
	if cfg.Stream.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.Stream.APIKeyEnv)
	}
	s := stream.New(apiKey, cfg.Stream.URL, cfg.Stream.Accounts, cfg.Stream.ReconnectDelay.Std(), cfg.Stream.PingInterval.Std())
	collector := usecase.NewStreamCollector(s, extractor, pub, m, lgr, "stream")
	collector.UsePipeline(mid.NewEventPipeline(collector, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	))
	return collector
}

// ProvideHandler builds the HTTP surface.
func ProvideHandler(cfg *config.Config, lgr *logger.Logger, gw *usecase.Gateway, ing *ingest.Ingestor, pub *publish.Publisher, reg *registry.Registry) *api.GatewayHandler {
	return api.NewGatewayHandler(lgr, gw, ing, pub, reg,
		models.RoutingPolicy(cfg.Routing.Policy),
		models.ParseNetwork(cfg.Network),
		cfg.Webhook.AckMalformed)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	handler *api.GatewayHandler,
	r *router.Router,
	tracker *usage.Tracker,
	usageStore repository.UsageStore,
	collector *usecase.StreamCollector,
	alertQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	AttachLogCollector(cfg, lgr, producer)
	return server.New(cfg, lgr, handler, r, tracker, usageStore, collector, alertQueue, chClient, producer)
}
