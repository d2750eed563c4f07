package negotiation_api

import (
	"time"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/services/negotiation"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type partyDTO struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

func (p partyDTO) model() models.Party {
	return models.Party{ID: p.ID, Name: p.Name, Photo: p.Photo}
}

func toPartyDTO(p models.Party) partyDTO {
	return partyDTO{ID: p.ID, Name: p.Name, Photo: p.Photo}
}

type locationDTO struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	// geo_hash from the client is ignored
	GeoHash string `json:"geo_hash,omitempty"`
}

func (l locationDTO) model() models.Location {
	return models.Location{Address: l.Address, Latitude: *l.Latitude, Longitude: *l.Longitude}
}

type createCallRequest struct {
	ID          string       `json:"id" validate:"required"`
	Caller      partyDTO     `json:"caller"`
	ServiceType string       `json:"service_type"`
	Delivery    locationDTO  `json:"delivery_address"`
	Pickup      *locationDTO `json:"pickup_address,omitempty" validate:"omitempty"`
	// epoch milliseconds
	ExpirationTime int64 `json:"expiration_time" validate:"required,gt=0"`
	CanBargain     bool  `json:"can_bargain"`
}

func (r createCallRequest) model() models.Call {
	c := models.Call{
		ID:             r.ID,
		Requester:      r.Caller.model(),
		ServiceType:    r.ServiceType,
		Delivery:       r.Delivery.model(),
		ExpirationTime: time.UnixMilli(r.ExpirationTime).UTC(),
		CanBargain:     r.CanBargain,
	}
	if r.Pickup != nil {
		p := r.Pickup.model()
		c.Pickup = &p
	}
	return c
}

type createBidRequest struct {
	ID                 string   `json:"id" validate:"required"`
	CallID             string   `json:"call_id" validate:"required"`
	Bidder             partyDTO `json:"bidder"`
	Kind               string   `json:"kind" validate:"omitempty,oneof=accept bargain"`
	ProposedAmount     float64  `json:"proposed_amount" validate:"gte=0"`
	BargainAmount      float64  `json:"bargain_amount" validate:"gte=0"`
	BargainReplyAmount float64  `json:"bargain_reply_amount" validate:"gte=0"`
}

func (r createBidRequest) model() models.Bid {
	return models.Bid{
		ID:                 r.ID,
		CallID:             r.CallID,
		Bidder:             r.Bidder.model(),
		Kind:               models.BidKind(r.Kind),
		ProposedAmount:     r.ProposedAmount,
		BargainAmount:      r.BargainAmount,
		BargainReplyAmount: r.BargainReplyAmount,
	}
}

type bargainPlacedRequest struct {
	ID                 string   `json:"id" validate:"required"`
	IsExecutorBargain  bool     `json:"isExecutorBargain"`
	BargainAmount      *float64 `json:"bargain_amount" validate:"omitempty,gte=0"`
	BargainReplyAmount *float64 `json:"bargainReplyAmount" validate:"omitempty,gte=0"`
}

// amount picks the side's field; ok is false when that field is missing.
func (r bargainPlacedRequest) amount() (v float64, field string, ok bool) {
	if r.IsExecutorBargain {
		if r.BargainAmount == nil {
			return 0, "bargain_amount", false
		}
		return *r.BargainAmount, "bargain_amount", true
	}
	if r.BargainReplyAmount == nil {
		return 0, "bargainReplyAmount", false
	}
	return *r.BargainReplyAmount, "bargainReplyAmount", true
}

type bidStatusChangedRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=accepted confirmed rejected renounced"`
}

type nodeExpiredRequest struct {
	UUID string `json:"uuid" validate:"required"`
	Type string `json:"type" validate:"required"`
}

type pointDTO struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (p pointDTO) point() geo.Point {
	return geo.Point{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

type searchCallsRequest struct {
	LoggedInCustomer string   `json:"loggedInCustomer"`
	CenterPoint      pointDTO `json:"centerPoint"`
	// km
	Radius float64 `json:"radius" validate:"gt=0"`
}

type geoRequestDTO struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	// km
	Radius float64 `json:"radius" validate:"gt=0"`
}

func (g geoRequestDTO) model() negotiation.GeoRequest {
	return negotiation.GeoRequest{
		Point:    geo.Point{Latitude: *g.Latitude, Longitude: *g.Longitude},
		RadiusKm: g.Radius,
	}
}

type computeGeoHashRequest struct {
	Delivery *geoRequestDTO `json:"deliveryAddressGeoRequest" validate:"required"`
	Pickup   *geoRequestDTO `json:"pickupAddressGeoRequest,omitempty" validate:"omitempty"`
}

type computeGeoHashResponse struct {
	Delivery negotiation.AreaKeys  `json:"deliveryAddressGeoResponse"`
	Pickup   *negotiation.AreaKeys `json:"pickupAddressGeoResponse,omitempty"`
}

type callResponse struct {
	ID             string       `json:"id"`
	Caller         partyDTO     `json:"caller"`
	ServiceType    string       `json:"service_type"`
	Delivery       locationOut  `json:"delivery_address"`
	Pickup         *locationOut `json:"pickup_address,omitempty"`
	Status         string       `json:"status"`
	ExpirationTime int64        `json:"expiration_time"`
	ProposedFee    *float64     `json:"proposed_fee,omitempty"`
	CanBargain     bool         `json:"can_bargain"`
	Executor       *partyDTO    `json:"executor,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type locationOut struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	GeoHash   string  `json:"geo_hash"`
}

func toLocationOut(l models.Location) locationOut {
	return locationOut{Address: l.Address, Latitude: l.Latitude, Longitude: l.Longitude, GeoHash: l.GeoHash}
}

func toCallResponse(c *models.Call) callResponse {
	out := callResponse{
		ID:             c.ID,
		Caller:         toPartyDTO(c.Requester),
		ServiceType:    c.ServiceType,
		Delivery:       toLocationOut(c.Delivery),
		Status:         string(c.Status),
		ExpirationTime: c.ExpirationTime.UnixMilli(),
		ProposedFee:    c.ProposedFee,
		CanBargain:     c.CanBargain,
		CreatedAt:      c.CreatedAt,
	}
	if c.Pickup != nil {
		p := toLocationOut(*c.Pickup)
		out.Pickup = &p
	}
	if c.Executor != nil {
		e := toPartyDTO(*c.Executor)
		out.Executor = &e
	}
	return out
}

type bidResponse struct {
	ID                 string    `json:"id"`
	CallID             string    `json:"call_id"`
	Bidder             partyDTO  `json:"bidder"`
	Caller             partyDTO  `json:"caller"`
	CallCanBargain     bool      `json:"call_can_bargain"`
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	ProposedAmount     float64   `json:"proposed_amount"`
	BargainAmount      float64   `json:"bargain_amount"`
	BargainReplyAmount float64   `json:"bargain_reply_amount"`
	CreatedAt          time.Time `json:"created_at"`
}

func toBidResponse(b *models.Bid) bidResponse {
	return bidResponse{
		ID:                 b.ID,
		CallID:             b.CallID,
		Bidder:             toPartyDTO(b.Bidder),
		Caller:             toPartyDTO(b.Caller),
		CallCanBargain:     b.CallCanBargain,
		Kind:               string(b.Kind),
		Status:             string(b.Status),
		ProposedAmount:     b.ProposedAmount,
		BargainAmount:      b.BargainAmount,
		BargainReplyAmount: b.BargainReplyAmount,
		CreatedAt:          b.CreatedAt,
	}
}
