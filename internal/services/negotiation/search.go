package negotiation

import (
	"context"
	"math"
	"sort"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// SearchCallsInArea returns open calls of other requesters whose delivery point lies
// within radiusKm of center, nearest first.
func (s *Service) SearchCallsInArea(ctx context.Context, customerID string, center geo.Point, radiusKm float64) ([]*models.Call, error) {
	ctx, span := tracer.Start(ctx, "SearchCallsInArea")
	defer span.End()

	if err := center.Validate(); err != nil {
		return nil, models.NewValidationError("centerPoint", err.Error())
	}
	if err := s.validateRadius(radiusKm); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Float64("radius_km", radiusKm))

	radiusM := radiusKm * 1000
	found, err := s.store.QueryOpenCallsInRanges(ctx, geo.QueryRanges(center, radiusM), customerID)
	if err != nil {
		span.RecordError(err)
		return nil, models.DependencyError("store", err)
	}

	type hit struct {
		call *models.Call
		dist float64
	}
	seen := make(map[string]struct{}, len(found))
	hits := make([]hit, 0, len(found))
	for _, c := range found {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		if c.Status != models.CallStatusOpen || (customerID != "" && c.Requester.ID == customerID) {
			continue
		}
		d := geo.Distance(center, geo.Point{Latitude: c.Delivery.Latitude, Longitude: c.Delivery.Longitude})
		if d > radiusM {
			continue
		}
		hits = append(hits, hit{call: c, dist: d})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].call.ID < hits[j].call.ID
	})

	out := make([]*models.Call, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.call)
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

type GeoRequest struct {
	Point    geo.Point
	RadiusKm float64
}

type AreaKeys struct {
	GeoHash string      `json:"geohash"`
	Ranges  []geo.Range `json:"geohashRanges"`
}

type GeoHashResult struct {
	Delivery AreaKeys
	Pickup   *AreaKeys
}

// ComputeGeoHash returns the point geohash and the search ranges around each address.
// Pickup is nil when no pickup request was given.
func (s *Service) ComputeGeoHash(delivery GeoRequest, pickup *GeoRequest) (GeoHashResult, error) {
	d, err := s.areaKeys("deliveryAddressGeoRequest", delivery)
	if err != nil {
		return GeoHashResult{}, err
	}
	res := GeoHashResult{Delivery: d}
	if pickup != nil {
		p, err := s.areaKeys("pickupAddressGeoRequest", *pickup)
		if err != nil {
			return GeoHashResult{}, err
		}
		res.Pickup = &p
	}
	return res, nil
}

func (s *Service) areaKeys(field string, r GeoRequest) (AreaKeys, error) {
	if err := r.Point.Validate(); err != nil {
		return AreaKeys{}, models.NewValidationError(field, err.Error())
	}
	if err := s.validateRadius(r.RadiusKm); err != nil {
		return AreaKeys{}, models.NewValidationError(field, err.Error())
	}
	return AreaKeys{
		GeoHash: geo.Encode(r.Point),
		Ranges:  geo.QueryRanges(r.Point, r.RadiusKm*1000),
	}, nil
}

func (s *Service) validateRadius(km float64) error {
	if math.IsNaN(km) || km <= 0 {
		return models.NewValidationError("radius", "must be positive")
	}
	if km > s.maxSearchRadiusKm {
		return models.NewValidationError("radius", "exceeds the maximum search radius")
	}
	return nil
}
