package models

import "time"

type CallStatus string

const (
	CallStatusOpen       CallStatus = "open"
	CallStatusAttributed CallStatus = "attributed"
	CallStatusExpired    CallStatus = "expired"
)

type BidKind string

const (
	BidKindAccept  BidKind = "accept"
	BidKindBargain BidKind = "bargain"
)

type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusConfirmed BidStatus = "confirmed"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusRenounced BidStatus = "renounced"
)

// EntityTypeCall is the only entity type expiration tasks are created for.
const EntityTypeCall = "call"

// Party is a denormalized user snapshot (requester, bidder or executor).
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

func (p Party) IsZero() bool {
	return p.ID == "" && p.Name == "" && p.Photo == ""
}

type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// GeoHash is derived from Latitude/Longitude on every write.
	GeoHash string `json:"geo_hash"`
}

type Call struct {
	ID             string     `json:"id"`
	Requester      Party      `json:"requester"`
	ServiceType    string     `json:"service_type"`
	Delivery       Location   `json:"delivery"`
	Pickup         *Location  `json:"pickup,omitempty"`
	Status         CallStatus `json:"status"`
	ExpirationTime time.Time  `json:"expiration_time"`
	ProposedFee    *float64   `json:"proposed_fee,omitempty"`
	CanBargain     bool       `json:"can_bargain"`
	Executor       *Party     `json:"executor,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Bid struct {
	ID                 string    `json:"id"`
	CallID             string    `json:"call_id"`
	Bidder             Party     `json:"bidder"`
	Caller             Party     `json:"caller"`
	CallCanBargain     bool      `json:"call_can_bargain"`
	Kind               BidKind   `json:"kind"`
	Status             BidStatus `json:"status"`
	ProposedAmount     float64   `json:"proposed_amount"`
	BargainAmount      float64   `json:"bargain_amount"`
	BargainReplyAmount float64   `json:"bargain_reply_amount"`
	CreatedAt          time.Time `json:"created_at"`
}

// Attribution is the conditional merge applied to a call when a bid wins it.
// Fee is nil when the call is attributed by an accept-bid before any confirmation.
type Attribution struct {
	Executor Party
	Fee      *float64
}

type DeviceRegistration struct {
	CustomerID string `json:"customer_id"`
	DeviceID   string `json:"device_id"`
}
