// Package notifier delivers notifications: device lookup, push with retries and an
// audit record for every attempt, plus the two ways of submitting work (in-process
// pool or Kafka topic).
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/LiveCalls/internal/integrations/push"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("notifier")

// DeviceSource resolves a customer to a push token; "" means no device.
type DeviceSource interface {
	GetDevice(ctx context.Context, customerID string) (string, error)
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Deduper interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type AuditSink interface {
	SaveNotification(ctx context.Context, rec models.NotificationRecord) error
}

type Dispatcher struct {
	devices DeviceSource
	push    push.Client
	audit   AuditSink

	cache    BytesCache
	cacheTTL time.Duration
	dedup    Deduper
	dedupTTL time.Duration

	backoff     *Backoff
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(devices DeviceSource, pusher push.Client, audit AuditSink) *Dispatcher {
	return &Dispatcher{
		devices:     devices,
		push:        pusher,
		audit:       audit,
		backoff:     NewBackoff(DefaultBackoffConfig(), nil),
		maxAttempts: 3,
		sleep:       sleepCtx,
	}
}

// WithDeviceCache enables caching of device tokens; ttl <= 0 keeps it off.
func (d *Dispatcher) WithDeviceCache(c BytesCache, ttl time.Duration) *Dispatcher {
	if c != nil && ttl > 0 {
		d.cache, d.cacheTTL = c, ttl
	}
	return d
}

// WithDedup suppresses a second push with the same dedup key inside window.
func (d *Dispatcher) WithDedup(dd Deduper, window time.Duration) *Dispatcher {
	if dd != nil && window > 0 {
		d.dedup, d.dedupTTL = dd, window
	}
	return d
}

func (d *Dispatcher) WithRetry(maxAttempts int, cfg BackoffConfig) *Dispatcher {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	d.backoff = NewBackoff(cfg, nil)
	return d
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func deviceKey(customerID string) string {
	return "device:" + customerID
}

// Deliver pushes n to its target and records the outcome. Push problems end up in the
// audit record only; the returned error is an audit write failure, so a queued message
// can be redelivered.
func (d *Dispatcher) Deliver(ctx context.Context, n models.Notification) error {
	ctx, span := tracer.Start(ctx, "Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification_id", n.ID),
		attribute.String("type", n.Type),
		attribute.String("target_customer", n.TargetCustomer),
	)

	rec := models.NotificationRecord{Notification: n}
	rec.Outcome, rec.MessageID, rec.Error = d.deliver(ctx, n)
	span.SetAttributes(attribute.String("outcome", rec.Outcome))

	if rec.Outcome == models.OutcomeFailed {
		slog.Warn("push not delivered", "notification_id", n.ID, "type", n.Type, "target_customer", n.TargetCustomer, "error", rec.Error)
	}
	if d.audit == nil {
		return nil
	}
	if err := d.audit.SaveNotification(ctx, rec); err != nil {
		span.RecordError(err)
		// сообщение придёт повторно и должно оставить свою запись, а не duplicate
		if rec.Outcome != models.OutcomeDuplicate {
			d.release(ctx, n.DedupKey)
		}
		slog.Error("save notification record", "notification_id", n.ID, "error", err.Error())
		return errors.Wrap(err, "save notification")
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) (outcome, messageID, errText string) {
	if d.dedup != nil && n.DedupKey != "" {
		first, err := d.dedup.Claim(ctx, n.DedupKey, d.dedupTTL)
		switch {
		case err != nil:
			// redis недоступен: лучше отправить дважды, чем потерять
			slog.Warn("dedup claim failed", "dedup_key", n.DedupKey, "error", err.Error())
		case !first:
			return models.OutcomeDuplicate, "", ""
		}
	}

	token, err := d.device(ctx, n.TargetCustomer)
	if err != nil {
		d.release(ctx, n.DedupKey)
		return models.OutcomeFailed, "", err.Error()
	}
	if token == "" {
		return models.OutcomeNoDevice, "", ""
	}

	msg := push.Message{Token: token, Title: n.Title, Body: n.Body, Data: pushData(n)}
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		id, err := d.push.Send(ctx, msg)
		if err == nil {
			return models.OutcomeDelivered, id, ""
		}
		lastErr = err
		if errors.Is(err, push.ErrUnregistered) {
			d.forgetDevice(ctx, n.TargetCustomer)
			break
		}
		if attempt == d.maxAttempts {
			break
		}
		if err := d.sleep(ctx, d.backoff.Delay(attempt)); err != nil {
			break
		}
	}
	d.release(ctx, n.DedupKey)
	return models.OutcomeFailed, "", lastErr.Error()
}

func pushData(n models.Notification) map[string]string {
	data := make(map[string]string, len(n.Metadata)+2)
	for k, v := range n.Metadata {
		data[k] = v
	}
	data["notification_type"] = n.Type
	data["notification_id"] = n.ID
	return data
}

func (d *Dispatcher) device(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}
	if d.cache != nil {
		b, ok, err := d.cache.Get(ctx, deviceKey(customerID))
		if err != nil {
			slog.Warn("device cache get", "customer_id", customerID, "error", err.Error())
		} else if ok && len(b) > 0 {
			return string(b), nil
		}
	}

	token, err := d.devices.GetDevice(ctx, customerID)
	if err != nil {
		return "", errors.Wrap(err, "get device")
	}
	if d.cache != nil && token != "" {
		if err := d.cache.Set(ctx, deviceKey(customerID), []byte(token), d.cacheTTL); err != nil {
			slog.Warn("device cache set", "customer_id", customerID, "error", err.Error())
		}
	}
	return token, nil
}

func (d *Dispatcher) forgetDevice(ctx context.Context, customerID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, deviceKey(customerID)); err != nil {
		slog.Warn("device cache delete", "customer_id", customerID, "error", err.Error())
	}
}

// release frees the dedup key after a failed push or audit write so a redelivered
// transition can try again.
func (d *Dispatcher) release(ctx context.Context, key string) {
	if d.dedup == nil || key == "" {
		return
	}
	if err := d.dedup.Release(ctx, key); err != nil {
		slog.Warn("dedup release", "dedup_key", key, "error", err.Error())
	}
}
