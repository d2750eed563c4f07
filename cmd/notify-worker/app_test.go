package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/LiveCalls/config"
	"github.com/BearBump/LiveCalls/internal/broker/kafka"
	"github.com/BearBump/LiveCalls/internal/broker/messages"
	"github.com/BearBump/LiveCalls/internal/cache/rediscache"
	"github.com/BearBump/LiveCalls/internal/integrations/push"
	pushfake "github.com/BearBump/LiveCalls/internal/integrations/push/fake"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/services/notifier"
	"github.com/BearBump/LiveCalls/internal/storage/memnegotiation"
	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// chanConsumer hands queued values to the handler and records what it returned.
type chanConsumer struct {
	in chan []byte

	mu      sync.Mutex
	results []error
}

func (c *chanConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-c.in:
			err := handler(nil, v)
			c.mu.Lock()
			c.results = append(c.results, err)
			c.mu.Unlock()
			if err != nil && !errors.Is(err, kafka.ErrDrop) {
				return err
			}
		}
	}
}

func (c *chanConsumer) handled() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.results...)
}

func testFactories(st *memnegotiation.Storage, pusher push.Client, consumer kafkaConsumer, redisAddr string) workerFactories {
	return workerFactories{
		newStore: func(context.Context, *config.Config) (deviceStore, func(), error) {
			return st, nil, nil
		},
		newAudit: func(_ *config.Config, st deviceStore) (notifier.AuditSink, func(), error) {
			return st, nil, nil
		},
		newPush: func(*config.Config) push.Client { return pusher },
		newCache: func(*config.Config) (*rediscache.RedisCache, *rediscache.Deduper) {
			if redisAddr == "" {
				return nil, nil
			}
			return rediscache.New(redisAddr), rediscache.NewDeduper(redisAddr)
		},
		newConsumer: func(*config.Config, string, string) (kafkaConsumer, func()) {
			return consumer, nil
		},
	}
}

func notificationMessage(t *testing.T, id, target string) []byte {
	t.Helper()
	b, err := json.Marshal(messages.NotificationRequested{
		ID:             id,
		Type:           models.NotificationBidAccepted,
		Title:          "Bid accepted",
		TargetCustomer: target,
		DedupKey:       models.NotificationBidAccepted + ":bid-1",
		RequestedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return b
}

func TestRunNotifyWorker_DeliversAndDedups(t *testing.T) {
	mr := miniredis.RunT(t)
	st := memnegotiation.New()
	require.NoError(t, st.RegisterDevice(context.Background(), models.DeviceRegistration{CustomerID: "exec-1", DeviceID: "tok-1"}))
	pusher := pushfake.New()
	consumer := &chanConsumer{in: make(chan []byte, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunNotifyWorker(ctx, &config.Config{}, testFactories(st, pusher, consumer, mr.Addr()), notifyWorkerOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		})
	}()
	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(3 * time.Second):
		t.Fatal("worker http did not start")
	}

	consumer.in <- notificationMessage(t, "n-1", "exec-1")
	// то же событие с другим id: push уже был, второй не нужен
	consumer.in <- notificationMessage(t, "n-2", "exec-1")
	consumer.in <- []byte("not json")

	require.Eventually(t, func() bool { return len(consumer.handled()) == 3 }, 3*time.Second, 10*time.Millisecond)
	res := consumer.handled()
	require.NoError(t, res[0])
	require.NoError(t, res[1])
	require.ErrorIs(t, res[2], kafka.ErrDrop)

	require.Len(t, pusher.Sent(), 1)
	recs := st.Notifications()
	require.Len(t, recs, 2)
	require.Equal(t, models.OutcomeDelivered, recs[0].Outcome)
	require.Equal(t, models.OutcomeDuplicate, recs[1].Outcome)

	// токен устройства закэширован в redis
	cached, err := mr.Get("device:exec-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", cached)

	resp, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats notifier.WorkerStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, int64(3), stats.TotalConsumed)
	require.Equal(t, int64(2), stats.TotalDelivered)
	require.Equal(t, int64(1), stats.TotalDropped)

	resp2, err := http.Get("http://" + addr + "/readyz")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type failingAudit struct{}

func (failingAudit) SaveNotification(context.Context, models.NotificationRecord) error {
	return errors.New("audit store down")
}

func TestRunNotifyWorker_AuditFailureStopsConsumer(t *testing.T) {
	st := memnegotiation.New()
	consumer := &chanConsumer{in: make(chan []byte, 1)}
	f := testFactories(st, pushfake.New(), consumer, "")
	f.newAudit = func(*config.Config, deviceStore) (notifier.AuditSink, func(), error) {
		return failingAudit{}, nil, nil
	}

	consumer.in <- notificationMessage(t, "n-1", "exec-1")
	err := RunNotifyWorker(context.Background(), &config.Config{}, f, notifyWorkerOpts{httpAddr: "127.0.0.1:0"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "audit store down")
}

func TestDefaultWorkerFactories_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Store: config.StoreConfig{Backend: "memory"},
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
		Push:  config.PushConfig{Backend: "fake"},
	}

	st, _, err := f.newStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, st)

	_, ok := f.newPush(cfg).(*pushfake.Client)
	require.True(t, ok)

	cache, dedup := f.newCache(cfg)
	require.NotNil(t, cache)
	require.NotNil(t, dedup)
	_ = cache.Close()
	_ = dedup.Close()

	c, closeFn := f.newConsumer(cfg, "notifications.requested", "notify-worker")
	require.NotNil(t, c)
	closeFn()
}
