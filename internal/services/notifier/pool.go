package notifier

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Submit after the pool started shutting down.
var ErrClosed = errors.New("notifier pool is closed")

type Deliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// Pool delivers notifications in the background with bounded concurrency.
// Work started by Submit is detached from the caller's cancellation.
type Pool struct {
	d   Deliverer
	sem chan struct{}
	wg  sync.WaitGroup

	closed atomic.Bool

	startedAtUnixNano int64
	totalSubmitted    atomic.Int64
	totalDelivered    atomic.Int64
	totalErrors       atomic.Int64
	inFlight          atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func NewPool(d Deliverer, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Pool{
		d:                 d,
		sem:               make(chan struct{}, concurrency),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// Submit waits for a free slot (or ctx) and starts delivery in a new goroutine.
func (p *Pool) Submit(ctx context.Context, n models.Notification) error {
	if p.closed.Load() {
		return ErrClosed
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for notifier slot")
	}

	p.totalSubmitted.Add(1)
	p.inFlight.Add(1)
	p.wg.Add(1)
	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			p.inFlight.Add(-1)
			<-p.sem
			p.wg.Done()
		}()
		if err := p.d.Deliver(bg, n); err != nil {
			p.totalErrors.Add(1)
			p.lastErrorMu.Lock()
			p.lastError = err.Error()
			p.lastErrorMu.Unlock()
			slog.Error("deliver notification", "notification_id", n.ID, "type", n.Type, "error", err.Error())
			return
		}
		p.totalDelivered.Add(1)
	}()
	return nil
}

// Close stops accepting work and waits for in-flight deliveries until ctx is done.
func (p *Pool) Close(ctx context.Context) error {
	p.closed.Store(true)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "%d notifications still in flight", p.inFlight.Load())
	}
}

type Stats struct {
	StartedAt      time.Time `json:"startedAt"`
	TotalSubmitted int64     `json:"totalSubmitted"`
	TotalDelivered int64     `json:"totalDelivered"`
	TotalErrors    int64     `json:"totalErrors"`
	InFlight       int64     `json:"inFlight"`
	LastError      string    `json:"lastError,omitempty"`
}

func (p *Pool) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalSubmitted: p.totalSubmitted.Load(),
		TotalDelivered: p.totalDelivered.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}
