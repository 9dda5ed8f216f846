package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"PriceShaper/internal/domain/repository"
	"PriceShaper/internal/handler/api"
	mid "PriceShaper/internal/middleware"
	internalrepo "PriceShaper/internal/repository"
	"PriceShaper/internal/service/finnhub"
	"PriceShaper/internal/service/ratelimit"
	"PriceShaper/internal/services/adjustment"
	"PriceShaper/internal/usecase"
	"PriceShaper/pkg/cache"
	pkgch "PriceShaper/pkg/clickhouse"
	"PriceShaper/pkg/config"
	xhttp "PriceShaper/pkg/http"
	pkgkafka "PriceShaper/pkg/kafka"
	applogger "PriceShaper/pkg/logger"
	"PriceShaper/pkg/metrics"
	"PriceShaper/pkg/queue"
	"PriceShaper/pkg/server"
)

const markTTL = time.Hour

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideEngine builds the overlay engine. Zero config values keep the defaults.
func ProvideEngine(cfg *config.Config) *adjustment.Engine {
	e := cfg.Engine
	def := adjustment.DefaultConfig()
	var opts []adjustment.Option
	if e.ActiveSmoothing > 0 {
		opts = append(opts, adjustment.WithActiveSmoothing(e.ActiveSmoothing))
	}
	if e.DecayFactor > 0 || e.ReturnEpsilon > 0 || e.ReturnMaxSteps > 0 {
		factor, eps, steps := def.DecayFactor, def.ReturnEpsilon, def.ReturnMaxSteps
		if e.DecayFactor > 0 {
			factor = e.DecayFactor
		}
		if e.ReturnEpsilon > 0 {
			eps = e.ReturnEpsilon
		}
		if e.ReturnMaxSteps > 0 {
			steps = e.ReturnMaxSteps
		}
		opts = append(opts, adjustment.WithDecay(factor, eps, steps))
	}
	if e.WickRatio > 0 || e.MinWickFraction > 0 {
		ratio, minFrac := def.WickRatio, def.MinWickFraction
		if e.WickRatio > 0 {
			ratio = e.WickRatio
		}
		if e.MinWickFraction > 0 {
			minFrac = e.MinWickFraction
		}
		opts = append(opts, adjustment.WithWicks(ratio, minFrac))
	}
	return adjustment.New(opts...)
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis connected", applogger.String("host", cfg.Redis.Host))
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}, nil
}

// ProvideCache layers a short-lived memory cache over Redis when available,
// otherwise it is a process-local memory cache.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(10000), cache.WithMemoryCleanup(time.Minute))
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(10000),
		cache.WithLayeredMemoryTTL(cfg.Adjustments.CacheTTL/2),
	)
	return lc, func() { _ = lc.CloseMemory() }
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(client.Database())); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("database", client.Database()))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideBarStore returns the ClickHouse bar store, or a disabled stand-in.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) repository.BarStore {
	if ch == nil {
		return internalrepo.DisabledBarStore{}
	}
	s := internalrepo.NewCHBarStore(ch, ch.Database())
	s.SetLogger(l)
	return s
}

// ProvideKafkaProducer creates a Kafka producer and routes the log digest
// through it. Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		Linger:       cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if d := cfg.Logger.Digest; d.Enabled {
		l.AttachDigest(&applogger.DigestConfig{
			TimeInterval:   d.Interval,
			CountThreshold: d.Threshold,
			Topic:          d.Topic,
			Publisher:      producer,
		})
	}

	return producer, func() {
		l.DetachDigest()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideBarPublisher returns the Kafka bar publisher, or nil when bars are not published.
func ProvideBarPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.BarPublisher {
	if producer == nil || !cfg.Live.PublishBars {
		return nil
	}
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.Topic)
}

// ProvideAdjustmentSource wraps the admin HTTP API with a short-lived snapshot cache.
func ProvideAdjustmentSource(cfg *config.Config, c cache.Service, l *applogger.Logger) *internalrepo.CachedAdjustmentSource {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Adjustments.Timeout))
	src := internalrepo.NewHTTPAdjustmentSource(cfg.Adjustments.BaseURL, client)
	return internalrepo.NewCachedAdjustmentSource(src, c, cfg.Adjustments.CacheTTL, l)
}

// ProvideMarkCache stores the latest displayed close per instrument.
func ProvideMarkCache(c cache.Service) repository.MarkPriceCache {
	return internalrepo.NewCacheMarkStore(c, markTTL)
}

// ProvideLiveOverlay creates the live overlay use case.
func ProvideLiveOverlay(
	cfg *config.Config,
	engine *adjustment.Engine,
	source *internalrepo.CachedAdjustmentSource,
	store repository.BarStore,
	pub repository.BarPublisher,
	marks repository.MarkPriceCache,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.LiveOverlay {
	opts := []usecase.LiveOption{
		usecase.WithTimeframe(repository.Timeframe(cfg.Live.Timeframe)),
		usecase.WithMarkCache(marks),
		usecase.WithLiveLogger(l),
	}
	if cfg.ClickHouse.Enabled {
		opts = append(opts, usecase.WithBarStore(store, cfg.Live.WarmBars))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewLiveOverlay(engine, source, metrics, opts...)
}

// ProvideCandlesUseCase creates the history use case.
func ProvideCandlesUseCase(
	store repository.BarStore,
	source *internalrepo.CachedAdjustmentSource,
	engine *adjustment.Engine,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store, source, engine, metrics, l)
}

// ProvideFinnhubStream creates Finnhub WebSocket stream.
func ProvideFinnhubStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		l,
	)
}

// ProvideTradeCollector builds the stream -> pipeline -> overlay chain.
func ProvideTradeCollector(
	cfg *config.Config,
	stream repository.MarketStream,
	overlay *usecase.LiveOverlay,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.TradeCollector {
	pipe := mid.NewRealtimePipeline(overlay, metrics,
		mid.WithMaxRPS(cfg.Live.MaxRPS),
		mid.WithBufferSize(cfg.Live.BufferSize),
		mid.WithLogger(l),
	)
	return usecase.NewTradeCollector(stream, pipe, metrics, l)
}

// ProvideKafkaConsumer creates the adjustment-events consumer. Every instance
// holds its own snapshot cache, so each one joins a group of its own.
// Returns nil when Kafka or the events topic is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.EventsTopic == "" {
		return nil, nil
	}
	host, _ := os.Hostname()
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID+"-"+host),
		pkgkafka.WithConsumerLatest(),
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
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l)))
	return consumer, nil
}

// ProvideAdjustmentEventsHandler invalidates cached snapshots on admin changes.
func ProvideAdjustmentEventsHandler(
	cfg *config.Config,
	source *internalrepo.CachedAdjustmentSource,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.AdjustmentEventsHandler {
	return usecase.NewAdjustmentEventsHandler(cfg.Kafka.EventsTopic, source, metrics, l)
}

// ProvideEventsQueue consumes adjustment events from a Redis list when Kafka
// is disabled. Returns nil otherwise.
func ProvideEventsQueue(
	cfg *config.Config,
	rc *cache.RedisCache,
	events *usecase.AdjustmentEventsHandler,
	l *applogger.Logger,
) *queue.RedisQueue {
	if rc == nil || cfg.Kafka.Enabled || cfg.Redis.EventsQueue == "" {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    1,
		RetryLimit: cfg.Kafka.Consumer.RetryMax,
		RetryDelay: time.Second,
		KeyPrefix:  cfg.Redis.EventsQueue,
	}, rc.Client())
	q.RegisterHandler(usecase.AdjustmentEventType, events.Handle)
	return q
}

// ProvideRateLimiter creates the per-client API limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(float64(cfg.Server.MaxRPS), cfg.Server.MaxRPS*2)
}

// ProvideHandler creates the overlay HTTP handler.
func ProvideHandler(
	l *applogger.Logger,
	candles *usecase.CandlesUseCase,
	overlay *usecase.LiveOverlay,
	collector *usecase.TradeCollector,
	rl *ratelimit.Limiter,
) xhttp.Handler {
	return api.NewOverlayEchoHandler(l, candles, overlay, collector, rl)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TradeCollector,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	events *usecase.AdjustmentEventsHandler,
	q *queue.RedisQueue,
	rl *ratelimit.Limiter,
) *server.App {
	opts := []server.AppOption{
		server.WithConsumer(consumer, events),
		server.WithJanitor("ratelimit_prune", time.Minute, func() { rl.Prune() }),
	}
	if q != nil {
		opts = append(opts, server.WithWorker(q))
	}
	return server.New(cfg, l, collector, handler, opts...)
}
