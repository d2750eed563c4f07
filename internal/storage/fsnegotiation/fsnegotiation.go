package fsnegotiation

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/storage/docmodel"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("fsnegotiation")

type Storage struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID, credentialsFile string) (*Storage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "firestore client")
	}
	return &Storage{client: client}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) calls() *firestore.CollectionRef {
	return s.client.Collection(docmodel.CollectionCalls)
}

func (s *Storage) bids() *firestore.CollectionRef {
	return s.client.Collection(docmodel.CollectionBids)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Storage) CreateCall(ctx context.Context, call *models.Call) error {
	ctx, span := tracer.Start(ctx, "CreateCall")
	defer span.End()
	span.SetAttributes(attribute.String("call_id", call.ID))

	if _, err := s.calls().Doc(call.ID).Set(ctx, docmodel.FromCall(call)); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "set call")
	}
	return nil
}

func (s *Storage) GetCall(ctx context.Context, id string) (*models.Call, error) {
	ctx, span := tracer.Start(ctx, "GetCall")
	defer span.End()

	snap, err := s.calls().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrNotFound
		}
		span.RecordError(err)
		return nil, errors.Wrap(err, "get call")
	}
	var d docmodel.Call
	if err := snap.DataTo(&d); err != nil {
		return nil, errors.Wrap(err, "decode call")
	}
	d.ID = snap.Ref.ID
	return d.Model(), nil
}

func (s *Storage) DeleteCall(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "DeleteCall")
	defer span.End()

	if _, err := s.calls().Doc(id).Delete(ctx); err != nil && !isNotFound(err) {
		span.RecordError(err)
		return errors.Wrap(err, "delete call")
	}
	return nil
}

// AttributeCall assigns the executor inside a transaction so two different bids
// cannot both win the same call.
func (s *Storage) AttributeCall(ctx context.Context, callID string, a models.Attribution) error {
	ctx, span := tracer.Start(ctx, "AttributeCall")
	defer span.End()
	span.SetAttributes(attribute.String("call_id", callID), attribute.String("executor_id", a.Executor.ID))

	ref := s.calls().Doc(callID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return models.ErrNotFound
			}
			return err
		}
		var d docmodel.Call
		if err := snap.DataTo(&d); err != nil {
			return errors.Wrap(err, "decode call")
		}
		switch {
		case d.Status == string(models.CallStatusOpen):
		case d.Status == string(models.CallStatusAttributed) && d.ExecutorID == a.Executor.ID:
		default:
			return models.ErrCallAlreadyAttributed
		}

		updates := []firestore.Update{
			{Path: docmodel.FieldStatus, Value: string(models.CallStatusAttributed)},
			{Path: docmodel.FieldExecutorID, Value: a.Executor.ID},
			{Path: docmodel.FieldExecutorName, Value: a.Executor.Name},
			{Path: docmodel.FieldExecutorPhoto, Value: a.Executor.Photo},
		}
		if a.Fee != nil {
			updates = append(updates, firestore.Update{Path: docmodel.FieldProposedFee, Value: *a.Fee})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrCallAlreadyAttributed) {
			return err
		}
		span.RecordError(err)
		return errors.Wrap(err, "attribute call")
	}
	return nil
}

func (s *Storage) CreateBid(ctx context.Context, bid *models.Bid) error {
	ctx, span := tracer.Start(ctx, "CreateBid")
	defer span.End()

	if _, err := s.bids().Doc(bid.ID).Set(ctx, docmodel.FromBid(bid)); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "set bid")
	}
	return nil
}

func (s *Storage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	ctx, span := tracer.Start(ctx, "GetBid")
	defer span.End()

	snap, err := s.bids().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrNotFound
		}
		span.RecordError(err)
		return nil, errors.Wrap(err, "get bid")
	}
	var d docmodel.Bid
	if err := snap.DataTo(&d); err != nil {
		return nil, errors.Wrap(err, "decode bid")
	}
	d.ID = snap.Ref.ID
	return d.Model(), nil
}

func (s *Storage) DeleteBid(ctx context.Context, id string) error {
	if _, err := s.bids().Doc(id).Delete(ctx); err != nil && !isNotFound(err) {
		return errors.Wrap(err, "delete bid")
	}
	return nil
}

func (s *Storage) updateBid(ctx context.Context, id string, updates []firestore.Update) error {
	if _, err := s.bids().Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return models.ErrNotFound
		}
		return errors.Wrap(err, "update bid")
	}
	return nil
}

func (s *Storage) SetBidStatus(ctx context.Context, id string, st models.BidStatus) error {
	return s.updateBid(ctx, id, []firestore.Update{{Path: docmodel.FieldStatus, Value: string(st)}})
}

func (s *Storage) SetBargain(ctx context.Context, id string, executorSide bool, amount float64) error {
	return s.updateBid(ctx, id, []firestore.Update{{Path: docmodel.BargainField(executorSide), Value: amount}})
}

func (s *Storage) ListBidsByCall(ctx context.Context, callID string) ([]*models.Bid, error) {
	iter := s.bids().Where(docmodel.FieldCallID, "==", callID).Documents(ctx)
	defer iter.Stop()

	out := make([]*models.Bid, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterate bids")
		}
		var d docmodel.Bid
		if err := snap.DataTo(&d); err != nil {
			return nil, errors.Wrap(err, "decode bid")
		}
		d.ID = snap.Ref.ID
		out = append(out, d.Model())
	}
	return out, nil
}

// QueryOpenCallsInRanges runs one ordered range query per geohash range. The requester
// filter is applied here, since Firestore allows inequality filters on one field per query.
func (s *Storage) QueryOpenCallsInRanges(ctx context.Context, ranges []geo.Range, excludeRequester string) ([]*models.Call, error) {
	ctx, span := tracer.Start(ctx, "QueryOpenCallsInRanges")
	defer span.End()
	span.SetAttributes(attribute.Int("ranges", len(ranges)))

	seen := make(map[string]struct{})
	out := make([]*models.Call, 0)
	for _, r := range ranges {
		iter := s.calls().
			Where(docmodel.FieldStatus, "==", string(models.CallStatusOpen)).
			OrderBy(docmodel.FieldDeliveryGeoHash, firestore.Asc).
			StartAt(r.Start).
			EndAt(r.End).
			Documents(ctx)
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				span.RecordError(err)
				return nil, errors.Wrap(err, "iterate calls")
			}
			if _, ok := seen[snap.Ref.ID]; ok {
				continue
			}
			var d docmodel.Call
			if err := snap.DataTo(&d); err != nil {
				iter.Stop()
				return nil, errors.Wrap(err, "decode call")
			}
			d.ID = snap.Ref.ID
			if excludeRequester != "" && d.CallerID == excludeRequester {
				continue
			}
			seen[d.ID] = struct{}{}
			out = append(out, d.Model())
		}
		iter.Stop()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetDevice returns "" when the customer has no registered device.
func (s *Storage) GetDevice(ctx context.Context, customerID string) (string, error) {
	snap, err := s.client.Collection(docmodel.CollectionDevices).Doc(customerID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "get device")
	}
	var d docmodel.Device
	if err := snap.DataTo(&d); err != nil {
		return "", errors.Wrap(err, "decode device")
	}
	return d.DeviceID, nil
}

func (s *Storage) RegisterDevice(ctx context.Context, d models.DeviceRegistration) error {
	_, err := s.client.Collection(docmodel.CollectionDevices).Doc(d.CustomerID).
		Set(ctx, docmodel.Device{DeviceID: d.DeviceID})
	return errors.Wrap(err, "set device")
}

func (s *Storage) SaveNotification(ctx context.Context, rec models.NotificationRecord) error {
	_, err := s.client.Collection(docmodel.CollectionNotifications).Doc(rec.ID).
		Create(ctx, docmodel.FromNotification(rec))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return errors.Wrap(err, "create notification")
	}
	return nil
}
