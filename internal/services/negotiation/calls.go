package negotiation

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// CreateCall stores a new open call and schedules its expiration task.
// A repeated create of a stored call leaves its state as is and only re-schedules.
// When scheduling fails the call stays stored and an ExternalDependencyError is returned.
func (s *Service) CreateCall(ctx context.Context, in models.Call) (*models.Call, error) {
	ctx, span := tracer.Start(ctx, "CreateCall")
	defer span.End()

	call, err := s.prepareCall(in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("call_id", call.ID))

	existing, err := s.store.GetCall(ctx, call.ID)
	switch {
	case err == nil:
		if existing.Requester.ID != call.Requester.ID {
			return nil, models.NewValidationError("id", "already used by another call")
		}
		// повтор создания: назначенного исполнителя не сбрасываем, только досоздаём задачу
		call = existing
	case errors.Is(err, models.ErrNotFound):
		if err := s.store.CreateCall(ctx, call); err != nil {
			span.RecordError(err)
			return nil, models.DependencyError("store", err)
		}
	default:
		span.RecordError(err)
		return nil, models.DependencyError("store", err)
	}

	if err := s.scheduleExpiration(ctx, call); err != nil {
		span.RecordError(err)
		// звонок уже сохранён и без задачи не истечёт сам: нужна ручная сверка
		slog.Warn("call stored without expiration task", "call_id", call.ID, "expires_at", call.ExpirationTime, "error", err.Error())
		return call, models.DependencyError("scheduler", err)
	}

	slog.Info("call created", "call_id", call.ID, "requester_id", call.Requester.ID, "expires_at", call.ExpirationTime)
	return call, nil
}

// id звонка входит в имя задачи Cloud Tasks: [A-Za-z0-9_-], не длиннее 500 с префиксом
var callIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,400}$`)

func (s *Service) prepareCall(in models.Call) (*models.Call, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return nil, models.NewValidationError("id", "is required")
	}
	if !callIDPattern.MatchString(in.ID) {
		return nil, models.NewValidationError("id", "must be 1-400 characters of letters, digits, '_' or '-'")
	}
	if in.Requester.ID == "" {
		return nil, models.NewValidationError("caller_id", "is required")
	}
	if in.ExpirationTime.IsZero() {
		return nil, models.NewValidationError("expiration_time", "is required")
	}

	delivery, err := locate(in.Delivery)
	if err != nil {
		return nil, models.NewValidationError("delivery_address", err.Error())
	}
	call := &models.Call{
		ID:             in.ID,
		Requester:      in.Requester,
		ServiceType:    in.ServiceType,
		Delivery:       delivery,
		Status:         models.CallStatusOpen,
		ExpirationTime: in.ExpirationTime.UTC(),
		CanBargain:     in.CanBargain,
		CreatedAt:      s.now(),
	}
	if in.Pickup != nil {
		pickup, err := locate(*in.Pickup)
		if err != nil {
			return nil, models.NewValidationError("pickup_address", err.Error())
		}
		call.Pickup = &pickup
	}
	return call, nil
}

// locate recomputes the geohash from coordinates; a client-supplied hash is discarded.
func locate(l models.Location) (models.Location, error) {
	p := geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
	if err := p.Validate(); err != nil {
		return models.Location{}, err
	}
	l.GeoHash = geo.Encode(p)
	return l, nil
}

func (s *Service) scheduleExpiration(ctx context.Context, call *models.Call) error {
	if s.tasks == nil {
		return errors.New("task scheduler is not configured")
	}
	payload, err := json.Marshal(scheduler.ExpirationPayload{UUID: call.ID, Type: models.EntityTypeCall})
	if err != nil {
		return errors.Wrap(err, "marshal expiration payload")
	}
	name, err := s.tasks.Schedule(ctx, scheduler.Task{
		Name:    scheduler.TaskName(models.EntityTypeCall, call.ID),
		URL:     s.callbackURL,
		Payload: payload,
		FireAt:  call.ExpirationTime,
	})
	if errors.Is(err, scheduler.ErrAlreadyExists) {
		slog.Info("expiration task already scheduled", "call_id", call.ID)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("expiration task scheduled", "call_id", call.ID, "task", name)
	return nil
}

func (s *Service) GetCall(ctx context.Context, id string) (*models.Call, error) {
	return s.store.GetCall(ctx, id)
}

// NodeExpired deletes an expired call together with all its bids and reports the
// expiration to the backend. A call that is already gone is not an error.
func (s *Service) NodeExpired(ctx context.Context, entityID, entityType string) error {
	ctx, span := tracer.Start(ctx, "NodeExpired")
	defer span.End()
	span.SetAttributes(attribute.String("entity_id", entityID), attribute.String("entity_type", entityType))

	if entityType != models.EntityTypeCall {
		return errors.Wrapf(models.ErrWrongEntityType, "type %q", entityType)
	}
	if strings.TrimSpace(entityID) == "" {
		return models.NewValidationError("uuid", "is required")
	}

	bids, err := s.store.ListBidsByCall(ctx, entityID)
	if err != nil {
		span.RecordError(err)
		return models.DependencyError("store", err)
	}
	for _, b := range bids {
		if err := s.store.DeleteBid(ctx, b.ID); err != nil {
			span.RecordError(err)
			return models.DependencyError("store", err)
		}
	}
	if err := s.store.DeleteCall(ctx, entityID); err != nil {
		span.RecordError(err)
		return models.DependencyError("store", err)
	}
	slog.Info("call expired", "call_id", entityID, "bids_deleted", len(bids))

	if s.backend != nil {
		if err := s.backend.CallExpired(ctx, entityID); err != nil {
			span.RecordError(err)
			return models.DependencyError("backend", err)
		}
	}
	return nil
}
