// Package docmodel holds the stored shape of calls, bids and notifications shared by
// the document-store backends. Field names match the live_calls / live_bids collections
// written by the mobile clients.
package docmodel

import (
	"time"

	"github.com/BearBump/LiveCalls/internal/models"
)

const (
	CollectionCalls         = "live_calls"
	CollectionBids          = "live_bids"
	CollectionDevices       = "user_devices"
	CollectionNotifications = "notifications"

	FieldStatus             = "status"
	FieldCallID             = "call_id"
	FieldCallerID           = "caller_id"
	FieldDeliveryGeoHash    = "delivery_address_geo_hash"
	FieldExecutorID         = "executor_id"
	FieldExecutorName       = "executor_name"
	FieldExecutorPhoto      = "executor_photo"
	FieldProposedFee        = "proposed_fee"
	FieldBargainAmount      = "bargain_amount"
	FieldBargainReplyAmount = "bargain_reply_amount"
	FieldDeviceID           = "device_id"
)

type Call struct {
	ID          string `firestore:"id" bson:"_id"`
	CallerID    string `firestore:"caller_id" bson:"caller_id"`
	CallerName  string `firestore:"caller_name" bson:"caller_name"`
	CallerPhoto string `firestore:"caller_photo" bson:"caller_photo"`
	ServiceType string `firestore:"service_type" bson:"service_type"`

	DeliveryAddress   string  `firestore:"delivery_address" bson:"delivery_address"`
	DeliveryLatitude  float64 `firestore:"delivery_address_latitude" bson:"delivery_address_latitude"`
	DeliveryLongitude float64 `firestore:"delivery_address_longitude" bson:"delivery_address_longitude"`
	DeliveryGeoHash   string  `firestore:"delivery_address_geo_hash" bson:"delivery_address_geo_hash"`

	HasPickup       bool    `firestore:"has_pickup" bson:"has_pickup"`
	PickupAddress   string  `firestore:"pickup_address,omitempty" bson:"pickup_address,omitempty"`
	PickupLatitude  float64 `firestore:"pickup_address_latitude,omitempty" bson:"pickup_address_latitude,omitempty"`
	PickupLongitude float64 `firestore:"pickup_address_longitude,omitempty" bson:"pickup_address_longitude,omitempty"`
	PickupGeoHash   string  `firestore:"pickup_address_geo_hash,omitempty" bson:"pickup_address_geo_hash,omitempty"`

	Status         string    `firestore:"status" bson:"status"`
	ExpirationTime time.Time `firestore:"expiration_time" bson:"expiration_time"`
	ProposedFee    *float64  `firestore:"proposed_fee" bson:"proposed_fee"`
	CanBargain     bool      `firestore:"can_bargain" bson:"can_bargain"`

	ExecutorID    string `firestore:"executor_id,omitempty" bson:"executor_id,omitempty"`
	ExecutorName  string `firestore:"executor_name,omitempty" bson:"executor_name,omitempty"`
	ExecutorPhoto string `firestore:"executor_photo,omitempty" bson:"executor_photo,omitempty"`

	CreatedAt time.Time `firestore:"created_at" bson:"created_at"`
}

type Bid struct {
	ID             string `firestore:"id" bson:"_id"`
	CallID         string `firestore:"call_id" bson:"call_id"`
	CallerID       string `firestore:"caller_id" bson:"caller_id"`
	CallerName     string `firestore:"caller_name" bson:"caller_name"`
	CallerPhoto    string `firestore:"caller_photo" bson:"caller_photo"`
	BidderID       string `firestore:"bidder_id" bson:"bidder_id"`
	BidderName     string `firestore:"bidder_name" bson:"bidder_name"`
	BidderPhoto    string `firestore:"bidder_photo" bson:"bidder_photo"`
	CallCanBargain bool   `firestore:"call_can_bargain" bson:"call_can_bargain"`
	Kind           string `firestore:"kind" bson:"kind"`
	Status         string `firestore:"status" bson:"status"`

	ProposedAmount     float64 `firestore:"proposed_amount" bson:"proposed_amount"`
	BargainAmount      float64 `firestore:"bargain_amount" bson:"bargain_amount"`
	BargainReplyAmount float64 `firestore:"bargain_reply_amount" bson:"bargain_reply_amount"`

	CreatedAt time.Time `firestore:"created_at" bson:"created_at"`
}

type Device struct {
	CustomerID string `firestore:"-" bson:"_id"`
	DeviceID   string `firestore:"device_id" bson:"device_id"`
}

type Notification struct {
	ID             string            `firestore:"-" bson:"_id"`
	Type           string            `firestore:"type" bson:"type"`
	Title          string            `firestore:"title" bson:"title"`
	Body           string            `firestore:"body" bson:"body"`
	TargetCustomer string            `firestore:"target_customer" bson:"target_customer"`
	Metadata       map[string]string `firestore:"metadata" bson:"metadata"`
	DedupKey       string            `firestore:"dedup_key" bson:"dedup_key"`
	Outcome        string            `firestore:"outcome" bson:"outcome"`
	MessageID      string            `firestore:"message_id" bson:"message_id"`
	Error          string            `firestore:"error" bson:"error"`
	CreatedAt      time.Time         `firestore:"created_at" bson:"created_at"`
}

func FromCall(c *models.Call) Call {
	d := Call{
		ID:                c.ID,
		CallerID:          c.Requester.ID,
		CallerName:        c.Requester.Name,
		CallerPhoto:       c.Requester.Photo,
		ServiceType:       c.ServiceType,
		DeliveryAddress:   c.Delivery.Address,
		DeliveryLatitude:  c.Delivery.Latitude,
		DeliveryLongitude: c.Delivery.Longitude,
		DeliveryGeoHash:   c.Delivery.GeoHash,
		Status:            string(c.Status),
		ExpirationTime:    c.ExpirationTime.UTC(),
		ProposedFee:       c.ProposedFee,
		CanBargain:        c.CanBargain,
		CreatedAt:         c.CreatedAt.UTC(),
	}
	if c.Pickup != nil {
		d.HasPickup = true
		d.PickupAddress = c.Pickup.Address
		d.PickupLatitude = c.Pickup.Latitude
		d.PickupLongitude = c.Pickup.Longitude
		d.PickupGeoHash = c.Pickup.GeoHash
	}
	if c.Executor != nil {
		d.ExecutorID = c.Executor.ID
		d.ExecutorName = c.Executor.Name
		d.ExecutorPhoto = c.Executor.Photo
	}
	return d
}

func (d Call) Model() *models.Call {
	c := &models.Call{
		ID:          d.ID,
		Requester:   models.Party{ID: d.CallerID, Name: d.CallerName, Photo: d.CallerPhoto},
		ServiceType: d.ServiceType,
		Delivery: models.Location{
			Address:   d.DeliveryAddress,
			Latitude:  d.DeliveryLatitude,
			Longitude: d.DeliveryLongitude,
			GeoHash:   d.DeliveryGeoHash,
		},
		Status:         models.CallStatus(d.Status),
		ExpirationTime: d.ExpirationTime.UTC(),
		ProposedFee:    d.ProposedFee,
		CanBargain:     d.CanBargain,
		CreatedAt:      d.CreatedAt.UTC(),
	}
	if d.HasPickup {
		c.Pickup = &models.Location{
			Address:   d.PickupAddress,
			Latitude:  d.PickupLatitude,
			Longitude: d.PickupLongitude,
			GeoHash:   d.PickupGeoHash,
		}
	}
	if d.ExecutorID != "" {
		c.Executor = &models.Party{ID: d.ExecutorID, Name: d.ExecutorName, Photo: d.ExecutorPhoto}
	}
	return c
}

func FromBid(b *models.Bid) Bid {
	return Bid{
		ID:                 b.ID,
		CallID:             b.CallID,
		CallerID:           b.Caller.ID,
		CallerName:         b.Caller.Name,
		CallerPhoto:        b.Caller.Photo,
		BidderID:           b.Bidder.ID,
		BidderName:         b.Bidder.Name,
		BidderPhoto:        b.Bidder.Photo,
		CallCanBargain:     b.CallCanBargain,
		Kind:               string(b.Kind),
		Status:             string(b.Status),
		ProposedAmount:     b.ProposedAmount,
		BargainAmount:      b.BargainAmount,
		BargainReplyAmount: b.BargainReplyAmount,
		CreatedAt:          b.CreatedAt.UTC(),
	}
}

func (d Bid) Model() *models.Bid {
	return &models.Bid{
		ID:                 d.ID,
		CallID:             d.CallID,
		Bidder:             models.Party{ID: d.BidderID, Name: d.BidderName, Photo: d.BidderPhoto},
		Caller:             models.Party{ID: d.CallerID, Name: d.CallerName, Photo: d.CallerPhoto},
		CallCanBargain:     d.CallCanBargain,
		Kind:               models.BidKind(d.Kind),
		Status:             models.BidStatus(d.Status),
		ProposedAmount:     d.ProposedAmount,
		BargainAmount:      d.BargainAmount,
		BargainReplyAmount: d.BargainReplyAmount,
		CreatedAt:          d.CreatedAt.UTC(),
	}
}

func FromNotification(rec models.NotificationRecord) Notification {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return Notification{
		ID:             rec.ID,
		Type:           rec.Type,
		Title:          rec.Title,
		Body:           rec.Body,
		TargetCustomer: rec.TargetCustomer,
		Metadata:       meta,
		DedupKey:       rec.DedupKey,
		Outcome:        rec.Outcome,
		MessageID:      rec.MessageID,
		Error:          rec.Error,
		CreatedAt:      rec.CreatedAt.UTC(),
	}
}

// BargainField is the bid field a bargain round writes to.
func BargainField(executorSide bool) string {
	if executorSide {
		return FieldBargainAmount
	}
	return FieldBargainReplyAmount
}
