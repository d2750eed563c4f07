package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/LiveCalls/config"
	"github.com/BearBump/LiveCalls/internal/broker/kafka"
	"github.com/BearBump/LiveCalls/internal/cache/rediscache"
	"github.com/BearBump/LiveCalls/internal/integrations/push"
	pushfake "github.com/BearBump/LiveCalls/internal/integrations/push/fake"
	"github.com/BearBump/LiveCalls/internal/integrations/push/fcm"
	"github.com/BearBump/LiveCalls/internal/services/notifier"
	"github.com/BearBump/LiveCalls/internal/storage/fsnegotiation"
	"github.com/BearBump/LiveCalls/internal/storage/memnegotiation"
	"github.com/BearBump/LiveCalls/internal/storage/mongonegotiation"
	"github.com/BearBump/LiveCalls/internal/storage/pgaudit"
)

// deviceStore is what the worker needs from the document store.
type deviceStore interface {
	notifier.DeviceSource
	notifier.AuditSink
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type workerFactories struct {
	newStore    func(ctx context.Context, cfg *config.Config) (st deviceStore, closeFn func(), err error)
	newAudit    func(cfg *config.Config, st deviceStore) (audit notifier.AuditSink, closeFn func(), err error)
	newPush     func(cfg *config.Config) push.Client
	newCache    func(cfg *config.Config) (cache *rediscache.RedisCache, dedup *rediscache.Deduper)
	newConsumer func(cfg *config.Config, topic, group string) (c kafkaConsumer, closeFn func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStore: func(ctx context.Context, cfg *config.Config) (deviceStore, func(), error) {
			switch cfg.Store.Backend {
			case "memory":
				return memnegotiation.New(), nil, nil
			case "mongo":
				db := cfg.Mongo.Database
				if db == "" {
					db = "livecalls"
				}
				st, err := mongonegotiation.New(ctx, cfg.Mongo.URI, db)
				if err != nil {
					return nil, nil, err
				}
				return st, func() { _ = st.Close() }, nil
			default:
				st, err := fsnegotiation.New(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
				if err != nil {
					return nil, nil, err
				}
				return st, func() { _ = st.Close() }, nil
			}
		},
		newAudit: func(cfg *config.Config, st deviceStore) (notifier.AuditSink, func(), error) {
			if cfg.Store.AuditBackend != "postgres" {
				return st, nil, nil
			}
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			pg, err := pgaudit.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return pg, pg.Close, nil
		},
		newPush: func(cfg *config.Config) push.Client {
			if cfg.Push.Backend == "fake" {
				return pushfake.New()
			}
			return fcm.New(cfg.Push.ProjectID, cfg.Push.CredentialsFile)
		},
		newCache: func(cfg *config.Config) (*rediscache.RedisCache, *rediscache.Deduper) {
			if cfg.Redis.Host == "" {
				return nil, nil
			}
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr), rediscache.NewDeduper(redisAddr)
		},
		newConsumer: func(cfg *config.Config, topic, group string) (kafkaConsumer, func()) {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			c := kafka.NewConsumer(brokers, topic, group)
			return c, func() { _ = c.Close() }
		},
	}
}

type notifyWorkerOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

// RunNotifyWorker delivers notifications from the topic until ctx is done. A failed
// delivery stops the consumer without committing, so the message is read again after restart.
func RunNotifyWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts notifyWorkerOpts) error {
	topic := cfg.Kafka.NotificationTopicName
	if topic == "" {
		topic = "notifications.requested"
	}
	group := cfg.LiveCalls.KafkaConsumerGroup
	if group == "" {
		group = "notify-worker"
	}
	cacheTTL := time.Duration(cfg.LiveCalls.DeviceCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	dedupTTL := time.Duration(cfg.LiveCalls.DedupTTLSeconds) * time.Second
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}

	st, closeStore, err := f.newStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	audit, closeAudit, err := f.newAudit(cfg, st)
	if err != nil {
		return err
	}
	if closeAudit != nil {
		defer closeAudit()
	}

	def := notifier.DefaultBackoffConfig()
	backoff := notifier.BackoffConfig{
		Backoff1: time.Duration(cfg.LiveCalls.PushBackoff1Millis) * time.Millisecond,
		Backoff2: time.Duration(cfg.LiveCalls.PushBackoff2Millis) * time.Millisecond,
		Backoff3: time.Duration(cfg.LiveCalls.PushBackoff3Millis) * time.Millisecond,
		Jitter:   def.Jitter,
	}
	d := notifier.NewDispatcher(st, f.newPush(cfg), audit).
		WithRetry(cfg.LiveCalls.PushMaxAttempts, backoff)

	var ready func(ctx context.Context) error
	cache, dedup := f.newCache(cfg)
	if cache != nil {
		defer func() { _ = cache.Close() }()
		d.WithDeviceCache(cache, cacheTTL)
		ready = cache.Ping
	}
	if dedup != nil {
		defer func() { _ = dedup.Close() }()
		d.WithDedup(dedup, dedupTTL)
	}

	worker := notifier.NewWorker(d)

	consumer, closeConsumer := f.newConsumer(cfg, topic, group)
	if closeConsumer != nil {
		defer closeConsumer()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    opts.httpAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onListen,
			worker:      worker,
			cfg:         cfg,
			ready:       ready,
		})
	}()

	consumeErr := make(chan error, 1)
	go func() {
		slog.Info("kafka consumer started", "topic", topic, "group", group)
		consumeErr <- consumer.Consume(ctx, worker.Handler(ctx))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		if err != nil {
			return err
		}
		return ctx.Err()
	case err := <-consumeErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("kafka consumer stopped", "topic", topic, "error", err)
		return err
	}
}
