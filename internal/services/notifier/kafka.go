package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LiveCalls/internal/broker/kafka"
	"github.com/BearBump/LiveCalls/internal/broker/messages"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaSubmitter hands notifications to notify-worker through a topic.
type KafkaSubmitter struct {
	producer Producer
	topic    string
	attempts int
	backoff  *Backoff
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewKafkaSubmitter(p Producer, topic string) *KafkaSubmitter {
	return &KafkaSubmitter{
		producer: p,
		topic:    topic,
		attempts: 3,
		backoff:  NewBackoff(DefaultBackoffConfig(), nil),
		sleep:    sleepCtx,
	}
}

// Submit publishes n keyed by the target customer, so one customer's notifications keep their order.
func (s *KafkaSubmitter) Submit(ctx context.Context, n models.Notification) error {
	b, err := json.Marshal(messages.FromNotification(n))
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	key := []byte(n.TargetCustomer)

	var pubErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if pubErr = s.producer.Publish(ctx, s.topic, key, b); pubErr == nil {
			return nil
		}
		if attempt == s.attempts {
			break
		}
		if err := s.sleep(ctx, s.backoff.Delay(attempt)); err != nil {
			break
		}
	}
	return pubErr
}

// Worker consumes NotificationRequested messages and delivers them.
type Worker struct {
	d Deliverer

	startedAtUnixNano   int64
	lastMessageUnixNano atomic.Int64
	totalConsumed       atomic.Int64
	totalDelivered      atomic.Int64
	totalDropped        atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func NewWorker(d Deliverer) *Worker {
	return &Worker{d: d, startedAtUnixNano: time.Now().UTC().UnixNano()}
}

// Handler returns the consumer callback. Malformed messages are dropped, a failed
// delivery is returned so the offset is not committed.
func (w *Worker) Handler(ctx context.Context) func(key, value []byte) error {
	return func(_ []byte, value []byte) error {
		w.totalConsumed.Add(1)
		w.lastMessageUnixNano.Store(time.Now().UTC().UnixNano())

		var msg messages.NotificationRequested
		if err := json.Unmarshal(value, &msg); err != nil {
			w.totalDropped.Add(1)
			return errors.Wrapf(kafka.ErrDrop, "decode notification: %v", err)
		}
		if msg.ID == "" || msg.TargetCustomer == "" {
			w.totalDropped.Add(1)
			return errors.Wrap(kafka.ErrDrop, "notification without id or target")
		}

		if err := w.d.Deliver(ctx, msg.Notification()); err != nil {
			w.totalErrors.Add(1)
			w.lastErrorMu.Lock()
			w.lastError = err.Error()
			w.lastErrorMu.Unlock()
			slog.Error("deliver notification", "notification_id", msg.ID, "error", err.Error())
			return err
		}
		w.totalDelivered.Add(1)
		return nil
	}
}

type WorkerStats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
	TotalConsumed  int64      `json:"totalConsumed"`
	TotalDelivered int64      `json:"totalDelivered"`
	TotalDropped   int64      `json:"totalDropped"`
	TotalErrors    int64      `json:"totalErrors"`
	LastError      string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() WorkerStats {
	st := WorkerStats{
		StartedAt:      time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalConsumed:  w.totalConsumed.Load(),
		TotalDelivered: w.totalDelivered.Load(),
		TotalDropped:   w.totalDropped.Load(),
		TotalErrors:    w.totalErrors.Load(),
	}
	if n := w.lastMessageUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastMessageAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}
