package di

import (
	"context"
	"fmt"
	"time"

	"FuturesHist/internal/domain/repository"
	"FuturesHist/internal/handler/api"
	internalrepo "FuturesHist/internal/repository"
	"FuturesHist/internal/service/binance"
	"FuturesHist/internal/service/ratelimit"
	"FuturesHist/internal/usecase"
	"FuturesHist/pkg/cache"
	pkgch "FuturesHist/pkg/clickhouse"
	"FuturesHist/pkg/config"
	xhttp "FuturesHist/pkg/http"
	pkgkafka "FuturesHist/pkg/kafka"
	applogger "FuturesHist/pkg/logger"
	"FuturesHist/pkg/metrics"
	"FuturesHist/pkg/queue"
	"FuturesHist/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideRateLimiter creates the per-host request budget shared by every adapter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Binance.RequestsPerSecond, cfg.Binance.Burst)
}

// ProvideHTTPClient creates the retrying transport.
func ProvideHTTPClient(cfg *config.Config, limiter *ratelimit.Limiter, l *applogger.Logger) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Binance.Timeout),
		xhttp.WithRetry(cfg.Binance.MaxRetries, cfg.Binance.BackoffUnit),
		xhttp.WithLimiter(limiter),
		xhttp.WithLogger(l),
		xhttp.WithUserAgent(cfg.Binance.UserAgent),
	)
}

// ProvideAdapters creates one adapter per series.
func ProvideAdapters(cfg *config.Config, client *xhttp.Client, l *applogger.Logger) []repository.Adapter {
	return binance.NewAdapters(cfg.Binance.BaseURL, client, l)
}

// ProvideFetchEngine creates the pagination engine.
func ProvideFetchEngine(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.FetchEngine {
	return usecase.NewFetchEngine(
		usecase.SleepPacer{Delay: cfg.Binance.InterRequestDelay},
		m,
		l,
		usecase.WithMaxConsecutiveFailures(cfg.Binance.MaxConsecutiveFails),
	)
}

// ProvideRedisCache connects to Redis when a component needs it: redis
// checkpoints or the job queue. Otherwise it returns nil.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if cfg.Checkpoint.Type != "redis" && !cfg.Queue.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(context.Background(),
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCheckpointCache selects the checkpoint backend.
func ProvideCheckpointCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func(), error) {
	switch cfg.Checkpoint.Type {
	case "memory":
		mc := cache.NewMemoryCache(cache.WithMemoryCleanup(cfg.Checkpoint.CleanupInterval))
		return mc, func() { _ = mc.Close() }, nil
	case "badger":
		bc, err := cache.NewBadgerCache(
			cache.WithBadgerDir(cfg.Checkpoint.Dir),
			cache.WithBadgerGC(cfg.Checkpoint.GCInterval, cfg.Checkpoint.GCDiscardRatio),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("badger: %w", err)
		}
		return bc, func() { _ = bc.Close() }, nil
	case "redis":
		// closed by ProvideRedisCache's cleanup
		return rc, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvideCheckpointer returns nil when checkpoints are disabled.
func ProvideCheckpointer(cfg *config.Config, svc cache.Service) (repository.Checkpointer, error) {
	if svc == nil {
		return nil, nil
	}
	store, err := internalrepo.NewCheckpointStore(svc, cfg.Checkpoint.TTL, cfg.Checkpoint.Compress)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}
	return store, nil
}

// ProvideLocker uses Redis locks when Redis is configured.
func ProvideLocker(rc *cache.RedisCache) repository.Locker {
	if rc == nil {
		return nil
	}
	return rc
}

// ProvideAggregator creates the multi-series aggregator.
func ProvideAggregator(
	engine *usecase.FetchEngine,
	adapters []repository.Adapter,
	ckpt repository.Checkpointer,
	l *applogger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(engine, adapters, ckpt, l)
}

// ProvideClickHouseClient connects when ClickHouse is written to or read from.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Sink.Type != usecase.SinkClickHouse && !cfg.Kafka.Consumer.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithMaxOpenConns(cfg.ClickHouse.MaxOpenConns),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideStorage creates the series store and its table.
func ProvideStorage(cfg *config.Config, client *pkgch.Client, l *applogger.Logger) (repository.Storage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSeriesStore(client.DB(), cfg.ClickHouse.Table, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, store.SchemaStatements()); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when records are published.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if cfg.Sink.Type != usecase.SinkKafka {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvidePublisher creates Kafka publisher repository.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBackfillService creates the backfill use case.
func ProvideBackfillService(
	agg *usecase.Aggregator,
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.BackfillService {
	return usecase.NewBackfillService(agg, pub, store, m, l, cfg.Sink.Type)
}

// ProvideBackfillJob creates the queue job that runs backfills.
func ProvideBackfillJob(svc *usecase.BackfillService, locker repository.Locker, l *applogger.Logger) *usecase.BackfillJob {
	return usecase.NewBackfillJob(svc, locker, l)
}

// ProvideQueue creates the Redis job queue with the backfill job registered.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, job *usecase.BackfillJob, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: 3,
		RetryDelay: time.Minute,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.Name))
	q.RegisterJob(job)
	return q
}

// ProvideKafkaConsumer creates a Kafka consumer when ingest is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.MaxRetries, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaRecordsHandler writes consumed records to ClickHouse.
func ProvideKafkaRecordsHandler(cfg *config.Config, store repository.Storage, m repository.Metrics) *usecase.KafkaRecordsHandler {
	if store == nil {
		return nil
	}
	return usecase.NewKafkaRecordsHandler(cfg.Kafka.Topic, store, m)
}

// ProvideSeriesHandler creates the HTTP API handler.
func ProvideSeriesHandler(
	l *applogger.Logger,
	agg *usecase.Aggregator,
	store repository.Storage,
	q *queue.RedisQueue,
) *api.SeriesEchoHandler {
	var jobs queue.Publisher
	if q != nil {
		jobs = q
	}
	return api.NewSeriesEchoHandler(l, agg, store, jobs)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.SeriesEchoHandler) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRecordsHandler,
) *server.App {
	app := server.New(cfg, l, httpServer)
	if q != nil {
		app.SetQueue(q)
	}
	if consumer != nil && kh != nil {
		app.SetConsumer(consumer, kh)
	}
	return app
}
