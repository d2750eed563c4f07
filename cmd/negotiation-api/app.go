package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/LiveCalls/config"
	negotiationapi "github.com/BearBump/LiveCalls/internal/api/negotiation_api"
	"github.com/BearBump/LiveCalls/internal/broker/kafka"
	"github.com/BearBump/LiveCalls/internal/cache/rediscache"
	"github.com/BearBump/LiveCalls/internal/integrations/backend"
	"github.com/BearBump/LiveCalls/internal/integrations/push"
	pushfake "github.com/BearBump/LiveCalls/internal/integrations/push/fake"
	"github.com/BearBump/LiveCalls/internal/integrations/push/fcm"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler/cloudtasks"
	taskfake "github.com/BearBump/LiveCalls/internal/integrations/scheduler/fake"
	"github.com/BearBump/LiveCalls/internal/services/negotiation"
	"github.com/BearBump/LiveCalls/internal/services/notifier"
	"github.com/BearBump/LiveCalls/internal/storage/fsnegotiation"
	"github.com/BearBump/LiveCalls/internal/storage/memnegotiation"
	"github.com/BearBump/LiveCalls/internal/storage/mongonegotiation"
	"github.com/BearBump/LiveCalls/internal/storage/pgaudit"
)

// documentStore is the primary store: call/bid state plus devices and notification history.
type documentStore interface {
	negotiation.Store
	notifier.DeviceSource
	notifier.AuditSink
}

type pinger interface {
	Ping(ctx context.Context) error
}

type apiFactories struct {
	newStore     func(ctx context.Context, cfg *config.Config) (st documentStore, closeFn func(), err error)
	newScheduler func(ctx context.Context, cfg *config.Config) (tasks scheduler.Client, closeFn func(), err error)
	newAudit     func(cfg *config.Config, st documentStore) (audit notifier.AuditSink, closeFn func(), err error)
	newPush      func(cfg *config.Config) push.Client
	newCache     func(cfg *config.Config) (cache *rediscache.RedisCache, dedup *rediscache.Deduper)
	newProducer  func(cfg *config.Config) (p notifier.Producer, closeFn func())
}

func defaultAPIFactories() apiFactories {
	return apiFactories{
		newStore: func(ctx context.Context, cfg *config.Config) (documentStore, func(), error) {
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
		newScheduler: func(ctx context.Context, cfg *config.Config) (scheduler.Client, func(), error) {
			if cfg.Tasks.Backend == "fake" {
				return taskfake.New(), nil, nil
			}
			c, err := cloudtasks.New(ctx, cloudtasks.Config{
				ProjectID:           cfg.Tasks.ProjectID,
				Location:            cfg.Tasks.Location,
				Queue:               cfg.Tasks.Queue,
				ServiceAccountEmail: cfg.Tasks.ServiceAccountEmail,
				CredentialsFile:     cfg.Tasks.CredentialsFile,
			})
			if err != nil {
				return nil, nil, err
			}
			return c, func() { _ = c.Close() }, nil
		},
		newAudit: func(cfg *config.Config, st documentStore) (notifier.AuditSink, func(), error) {
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
		newProducer: func(cfg *config.Config) (notifier.Producer, func()) {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			p := kafka.NewProducer(brokers)
			return p, func() { _ = p.Close() }
		},
	}
}

type negotiationAPIOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

func RunNegotiationAPI(ctx context.Context, cfg *config.Config, f apiFactories, opts negotiationAPIOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
	}
	callbackURL := cfg.Tasks.CallbackURL
	if callbackURL == "" {
		callbackURL = "http://localhost:8080/nodeExpired"
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	keep := func(fn func()) {
		if fn != nil {
			closers = append(closers, fn)
		}
	}

	st, closeStore, err := f.newStore(ctx, cfg)
	if err != nil {
		return err
	}
	keep(closeStore)

	tasks, closeTasks, err := f.newScheduler(ctx, cfg)
	if err != nil {
		return err
	}
	keep(closeTasks)
	if fs, ok := tasks.(*taskfake.Scheduler); ok {
		// локально задачи истечения исполняет сам процесс
		go func() { _ = fs.Run(ctx, time.Second) }()
	}

	readyChecks := map[string]negotiationapi.ReadyCheck{}
	if p, ok := st.(pinger); ok {
		readyChecks["store"] = p.Ping
	}

	var (
		submitter negotiation.Notifier
		pool      *notifier.Pool
	)
	switch cfg.LiveCalls.NotificationMode {
	case "kafka":
		topic := cfg.Kafka.NotificationTopicName
		if topic == "" {
			topic = "notifications.requested"
		}
		producer, closeProducer := f.newProducer(cfg)
		keep(closeProducer)
		submitter = notifier.NewKafkaSubmitter(producer, topic)
	default:
		audit, closeAudit, err := f.newAudit(cfg, st)
		if err != nil {
			return err
		}
		keep(closeAudit)
		if p, ok := audit.(pinger); ok && cfg.Store.AuditBackend == "postgres" {
			readyChecks["audit"] = p.Ping
		}

		d := notifier.NewDispatcher(st, f.newPush(cfg), audit).
			WithRetry(cfg.LiveCalls.PushMaxAttempts, backoffConfig(cfg))
		cache, dedup := f.newCache(cfg)
		if cache != nil {
			keep(func() { _ = cache.Close() })
			readyChecks["redis"] = cache.Ping
			d.WithDeviceCache(cache, secondsOr(cfg.LiveCalls.DeviceCacheTTLSeconds, 10*time.Minute))
		}
		if dedup != nil {
			keep(func() { _ = dedup.Close() })
			d.WithDedup(dedup, secondsOr(cfg.LiveCalls.DedupTTLSeconds, 24*time.Hour))
		}
		pool = notifier.NewPool(d, cfg.LiveCalls.NotificationConcurrency)
		submitter = pool
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pool.Close(drainCtx); err != nil {
				slog.Warn("notifier pool drain", "error", err.Error())
			}
		}()
	}

	var callback negotiation.ExpirationCallback
	if cfg.Backend.Host != "" {
		callback = backend.New(cfg.Backend.Host, cfg.Backend.Token)
	} else {
		slog.Warn("backend host is not configured: expirations are not reported upstream")
	}

	svc := negotiation.New(st, tasks, submitter, callback, callbackURL).
		WithMaxSearchRadius(cfg.LiveCalls.SearchMaxRadiusKm)

	routerOpts := negotiationapi.RouterOpts{SwaggerPath: opts.swaggerPath, ReadyChecks: readyChecks}
	if pool != nil {
		routerOpts.Stats = func() any { return pool.Stats() }
	}
	handler := negotiationapi.NewRouter(negotiationapi.New(svc), routerOpts)

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("negotiation api listening", "addr", lis.Addr().String(), "notification_mode", cfg.LiveCalls.NotificationMode)
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

func backoffConfig(cfg *config.Config) notifier.BackoffConfig {
	def := notifier.DefaultBackoffConfig()
	return notifier.BackoffConfig{
		Backoff1: millisOr(cfg.LiveCalls.PushBackoff1Millis, def.Backoff1),
		Backoff2: millisOr(cfg.LiveCalls.PushBackoff2Millis, def.Backoff2),
		Backoff3: millisOr(cfg.LiveCalls.PushBackoff3Millis, def.Backoff3),
		Jitter:   def.Jitter,
	}
}

func secondsOr(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

func millisOr(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}
