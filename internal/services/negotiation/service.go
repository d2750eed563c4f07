package negotiation

import (
	"context"
	"time"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("negotiation")

// Store is the canonical call/bid state. Get and merge operations on a missing
// document return models.ErrNotFound; deletes of a missing document succeed.
type Store interface {
	CreateCall(ctx context.Context, call *models.Call) error
	GetCall(ctx context.Context, id string) (*models.Call, error)
	DeleteCall(ctx context.Context, id string) error
	// AttributeCall succeeds if the call is open or already attributed to the same
	// executor, and returns models.ErrCallAlreadyAttributed otherwise.
	AttributeCall(ctx context.Context, callID string, a models.Attribution) error

	CreateBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, id string) (*models.Bid, error)
	DeleteBid(ctx context.Context, id string) error
	SetBidStatus(ctx context.Context, id string, status models.BidStatus) error
	SetBargain(ctx context.Context, id string, executorSide bool, amount float64) error
	ListBidsByCall(ctx context.Context, callID string) ([]*models.Bid, error)

	QueryOpenCallsInRanges(ctx context.Context, ranges []geo.Range, excludeRequester string) ([]*models.Call, error)
}

// Notifier hands a notification over for background delivery.
type Notifier interface {
	Submit(ctx context.Context, n models.Notification) error
}

// ExpirationCallback tells the owning backend that a call has expired.
type ExpirationCallback interface {
	CallExpired(ctx context.Context, callID string) error
}

type Service struct {
	store    Store
	tasks    scheduler.Client
	notifier Notifier
	backend  ExpirationCallback

	callbackURL       string
	maxSearchRadiusKm float64

	now   func() time.Time
	newID func() string
}

// New wires the engine. backend may be nil, then expirations are not reported upstream.
func New(store Store, tasks scheduler.Client, notifier Notifier, backend ExpirationCallback, callbackURL string) *Service {
	return &Service{
		store:             store,
		tasks:             tasks,
		notifier:          notifier,
		backend:           backend,
		callbackURL:       callbackURL,
		maxSearchRadiusKm: 100,
		now:               func() time.Time { return time.Now().UTC() },
		newID:             uuid.NewString,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) WithMaxSearchRadius(km float64) *Service {
	if km > 0 {
		s.maxSearchRadiusKm = km
	}
	return s
}
