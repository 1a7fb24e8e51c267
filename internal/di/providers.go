package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"CollarPulse/internal/domain/repository"
	"CollarPulse/internal/handler/api"
	mid "CollarPulse/internal/middleware"
	internalrepo "CollarPulse/internal/repository"
	icache "CollarPulse/internal/service/cache"
	"CollarPulse/internal/service/collar"
	svcmetrics "CollarPulse/internal/service/metrics"
	"CollarPulse/internal/service/notify"
	"CollarPulse/internal/services/behavior"
	"CollarPulse/internal/services/optimizer"
	"CollarPulse/internal/usecase"
	pkgcache "CollarPulse/pkg/cache"
	pkgch "CollarPulse/pkg/clickhouse"
	"CollarPulse/pkg/config"
	pkgkafka "CollarPulse/pkg/kafka"
	applogger "CollarPulse/pkg/logger"
	"CollarPulse/pkg/metrics"
	"CollarPulse/pkg/queue"
	"CollarPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "dev" || cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS collarpulse",
		"CREATE TABLE IF NOT EXISTS collarpulse.telemetry_raw (ts DateTime64(3), collar_id String, heart_rate Int32, activity_level UInt8, lon Float64, lat Float64) ENGINE=MergeTree ORDER BY (collar_id, ts)",
		"CREATE TABLE IF NOT EXISTS collarpulse.behavior_events (event_id String, behavior String, confidence Float64, ts DateTime64(3), collar_id String, supporting_points Int32) ENGINE=ReplacingMergeTree ORDER BY (collar_id, ts, behavior)",
		"CREATE TABLE IF NOT EXISTS collarpulse.event_feedback (event_id String, collar_id String, behavior String, judgment String, ts DateTime64(3)) ENGINE=MergeTree ORDER BY (ts)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisCache creates the shared Redis-backed cache.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	host, port := splitAddr(cfg.Redis.Addr)
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideTelemetryStorage creates ClickHouse storage repository.
func ProvideTelemetryStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database+".telemetry_raw")
}

// ProvideTelemetryPublisher creates Kafka publisher repository.
func ProvideTelemetryPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.EventsTopic)
}

// ProvideKafkaTelemetryHandler registers the handler for the telemetry topic.
func ProvideKafkaTelemetryHandler(store repository.Storage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaTelemetryHandler {
	return usecase.NewKafkaTelemetryHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideCollarStream creates the gateway WebSocket stream.
func ProvideCollarStream(cfg *config.Config) repository.CollarStream {
	return collar.New(
		cfg.Gateway.APIKey,
		cfg.Gateway.WebSocketURL,
		cfg.Gateway.CollarIDs,
		cfg.Gateway.ReconnectDelay,
		cfg.Gateway.PingInterval,
	)
}

// ProvideTelemetryProcessor creates the telemetry processor use case.
func ProvideTelemetryProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.TelemetryProcessor {
	return usecase.NewTelemetryProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideTelemetryCollector creates the telemetry collector use case.
func ProvideTelemetryCollector(
	stream repository.CollarStream,
	processor *usecase.TelemetryProcessor,
	metrics repository.Metrics,
) *usecase.TelemetryCollector {
	// Pipeline between WebSocket and the backend
	pipe := mid.NewTelemetryPipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTelemetryCollector(stream, processor, metrics, pipe)
}

// ProvideTelemetryStore creates the ClickHouse telemetry read store.
func ProvideTelemetryStore(chClient *pkgch.Client, l *applogger.Logger) repository.TelemetryStore {
	s := internalrepo.NewCHTelemetryStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideEventStore creates the ClickHouse event store.
func ProvideEventStore(chClient *pkgch.Client, l *applogger.Logger) repository.EventStore {
	s := internalrepo.NewCHEventStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideFeedbackStore creates the ClickHouse feedback store.
func ProvideFeedbackStore(chClient *pkgch.Client, l *applogger.Logger) repository.FeedbackStore {
	s := internalrepo.NewCHFeedbackStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideRuleSetStore creates the Redis rule-set store.
func ProvideRuleSetStore(cache *pkgcache.RedisCache, l *applogger.Logger) repository.RuleSetStore {
	s := internalrepo.NewRedisRuleSetStore(cache.Client())
	s.SetLogger(l)
	return s
}

// ProvideInterpreter creates the behavioral interpreter.
func ProvideInterpreter() *behavior.Interpreter {
	return behavior.NewInterpreter()
}

// ProvideOptimizer creates the threshold optimizer.
func ProvideOptimizer(
	feedback repository.FeedbackStore,
	telemetry repository.TelemetryStore,
	rules repository.RuleSetStore,
	interp *behavior.Interpreter,
	cfg *config.Config,
	l *applogger.Logger,
) *optimizer.Optimizer {
	opts := []optimizer.Option{optimizer.WithLogger(l)}
	if cfg.Optimizer.Workers > 0 {
		opts = append(opts, optimizer.WithWorkers(cfg.Optimizer.Workers))
	}
	if cfg.Optimizer.MinSamples > 0 {
		opts = append(opts, optimizer.WithMinSamples(cfg.Optimizer.MinSamples))
	}
	if cfg.Optimizer.Strategy == "grid" {
		opts = append(opts, optimizer.WithStrategy(optimizer.GridStrategy{}))
	}
	return optimizer.New(feedback, telemetry, rules, interp, opts...)
}

// ProvideNotifier creates the optimization report notifier.
func ProvideNotifier(cfg *config.Config, l *applogger.Logger) notify.Notifier {
	if cfg.Optimizer.WebhookURL == "" {
		return notify.NopNotifier{}
	}
	return notify.NewWebhookNotifier(cfg.Optimizer.WebhookURL, l)
}

// ProvideBehaviorAnalyzer creates the analysis use case.
func ProvideBehaviorAnalyzer(
	telemetry repository.TelemetryStore,
	events repository.EventStore,
	rules repository.RuleSetStore,
	interp *behavior.Interpreter,
	pub repository.Publisher,
	l *applogger.Logger,
) *usecase.BehaviorAnalyzerUseCase {
	return usecase.NewBehaviorAnalyzerUseCase(telemetry, events, rules, interp, pub, l)
}

// ProvideOptimizationUseCase creates the optimization use case.
func ProvideOptimizationUseCase(
	opt *optimizer.Optimizer,
	rules repository.RuleSetStore,
	notifier notify.Notifier,
	l *applogger.Logger,
) *usecase.OptimizationUseCase {
	return usecase.NewOptimizationUseCase(opt, rules, notifier, l)
}

// ProvideEventsUseCase creates the events query use case.
func ProvideEventsUseCase(store repository.EventStore, cache *pkgcache.RedisCache) *usecase.EventsUseCase {
	return usecase.NewEventsUseCase(store, cache)
}

// ProvideFeedbackQueue creates the Redis-backed feedback intake queue with
// the persist job registered.
func ProvideFeedbackQueue(
	cache *pkgcache.RedisCache,
	feedback repository.FeedbackStore,
	l *applogger.Logger,
) *queue.RedisQueue {
	q := queue.NewRedisQueue(l,
		&queue.QueueConfig{Workers: 2, RetryLimit: 3, RetryDelay: 5 * time.Second},
		cache.Client(),
		queue.ModeProducerConsumer,
	)
	q.RegisterJobs([]queue.Job{
		usecase.NewFeedbackJob(feedback, l),
		usecase.NewLogDrainJob(l),
	})
	// aggregate repeated error logs onto the queue instead of flooding stdout
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          usecase.ErrorLogJobType,
		Publisher:      q,
	})
	return q
}

// ProvideHTTPHandler creates the Echo HTTP handler.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	analyzer *usecase.BehaviorAnalyzerUseCase,
	optim *usecase.OptimizationUseCase,
	events *usecase.EventsUseCase,
	fq *queue.RedisQueue,
) *api.BehaviorsEchoHandler {
	h := api.NewBehaviorsEchoHandler(l, analyzer, optim, events, fq)
	if cfg.Redis.Addr != "" {
		// share the ruleset cache across instances
		h.SetRulesetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.TelemetryCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTelemetryHandler,
	chClient *pkgch.Client,
	h *api.BehaviorsEchoHandler,
	fq *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient)
	app.SetHTTPHandler(h)
	app.SetFeedbackQueue(fq)
	if collector != nil {
		app.TelemetryProc = collector.Processor()
	}
	return app
}
