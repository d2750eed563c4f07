// Package mongonegotiation keeps calls, bids, devices and notifications in MongoDB,
// using the same collection names and field layout as the Firestore backend.
package mongonegotiation

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/storage/docmodel"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 5 * time.Second

type Storage struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}
	s := &Storage{client: client, db: client.Database(database)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Storage) EnsureIndexes(ctx context.Context) error {
	_, err := s.calls().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: docmodel.FieldStatus, Value: 1}, {Key: docmodel.FieldDeliveryGeoHash, Value: 1}}},
		{Keys: bson.D{{Key: docmodel.FieldCallerID, Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "create call indexes")
	}
	_, err = s.bids().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: docmodel.FieldCallID, Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "create bid indexes")
	}
	_, err = s.db.Collection(docmodel.CollectionNotifications).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "target_customer", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return errors.Wrap(err, "create notification indexes")
}

func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Storage) calls() *mongo.Collection { return s.db.Collection(docmodel.CollectionCalls) }
func (s *Storage) bids() *mongo.Collection  { return s.db.Collection(docmodel.CollectionBids) }

func (s *Storage) CreateCall(ctx context.Context, call *models.Call) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.calls().ReplaceOne(ctx, bson.M{"_id": call.ID}, docmodel.FromCall(call), options.Replace().SetUpsert(true))
	return errors.Wrap(err, "replace call")
}

func (s *Storage) GetCall(ctx context.Context, id string) (*models.Call, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var d docmodel.Call
	err := s.calls().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find call")
	}
	return d.Model(), nil
}

func (s *Storage) DeleteCall(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.calls().DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrap(err, "delete call")
}

// AttributeCall is a single filtered update: it matches only an open call or one already
// held by the same executor.
func (s *Storage) AttributeCall(ctx context.Context, callID string, a models.Attribution) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"_id": callID,
		"$or": bson.A{
			bson.M{docmodel.FieldStatus: string(models.CallStatusOpen)},
			bson.M{docmodel.FieldStatus: string(models.CallStatusAttributed), docmodel.FieldExecutorID: a.Executor.ID},
		},
	}
	set := bson.M{
		docmodel.FieldStatus:        string(models.CallStatusAttributed),
		docmodel.FieldExecutorID:    a.Executor.ID,
		docmodel.FieldExecutorName:  a.Executor.Name,
		docmodel.FieldExecutorPhoto: a.Executor.Photo,
	}
	if a.Fee != nil {
		set[docmodel.FieldProposedFee] = *a.Fee
	}
	res, err := s.calls().UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "attribute call")
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.calls().CountDocuments(ctx, bson.M{"_id": callID})
	if err != nil {
		return errors.Wrap(err, "count call")
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return models.ErrCallAlreadyAttributed
}

func (s *Storage) CreateBid(ctx context.Context, bid *models.Bid) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.bids().ReplaceOne(ctx, bson.M{"_id": bid.ID}, docmodel.FromBid(bid), options.Replace().SetUpsert(true))
	return errors.Wrap(err, "replace bid")
}

func (s *Storage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var d docmodel.Bid
	err := s.bids().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find bid")
	}
	return d.Model(), nil
}

func (s *Storage) DeleteBid(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.bids().DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrap(err, "delete bid")
}

func (s *Storage) mergeBid(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := s.bids().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "update bid")
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Storage) SetBidStatus(ctx context.Context, id string, st models.BidStatus) error {
	return s.mergeBid(ctx, id, bson.M{docmodel.FieldStatus: string(st)})
}

func (s *Storage) SetBargain(ctx context.Context, id string, executorSide bool, amount float64) error {
	return s.mergeBid(ctx, id, bson.M{docmodel.BargainField(executorSide): amount})
}

func (s *Storage) ListBidsByCall(ctx context.Context, callID string) ([]*models.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cur, err := s.bids().Find(ctx, bson.M{docmodel.FieldCallID: callID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find bids")
	}
	var docs []docmodel.Bid
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode bids")
	}
	out := make([]*models.Bid, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Model())
	}
	return out, nil
}

func (s *Storage) QueryOpenCallsInRanges(ctx context.Context, ranges []geo.Range, excludeRequester string) ([]*models.Call, error) {
	if len(ranges) == 0 {
		return []*models.Call{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	or := make(bson.A, 0, len(ranges))
	for _, r := range ranges {
		or = append(or, bson.M{docmodel.FieldDeliveryGeoHash: bson.M{"$gte": r.Start, "$lte": r.End}})
	}
	filter := bson.M{
		docmodel.FieldStatus: string(models.CallStatusOpen),
		"$or":                or,
	}
	if excludeRequester != "" {
		filter[docmodel.FieldCallerID] = bson.M{"$ne": excludeRequester}
	}

	cur, err := s.calls().Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find calls")
	}
	var docs []docmodel.Call
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode calls")
	}
	out := make([]*models.Call, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Model())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetDevice returns "" when the customer has no registered device.
func (s *Storage) GetDevice(ctx context.Context, customerID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var d docmodel.Device
	err := s.db.Collection(docmodel.CollectionDevices).FindOne(ctx, bson.M{"_id": customerID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "find device")
	}
	return d.DeviceID, nil
}

func (s *Storage) RegisterDevice(ctx context.Context, d models.DeviceRegistration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	doc := docmodel.Device{CustomerID: d.CustomerID, DeviceID: d.DeviceID}
	_, err := s.db.Collection(docmodel.CollectionDevices).
		ReplaceOne(ctx, bson.M{"_id": d.CustomerID}, doc, options.Replace().SetUpsert(true))
	return errors.Wrap(err, "replace device")
}

// SaveNotification inserts the audit record once; a redelivered record with the same id is ignored.
func (s *Storage) SaveNotification(ctx context.Context, rec models.NotificationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.db.Collection(docmodel.CollectionNotifications).InsertOne(ctx, docmodel.FromNotification(rec))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return errors.Wrap(err, "insert notification")
}
