// Package memnegotiation is an in-process negotiation store for local runs and tests.
package memnegotiation

import (
	"context"
	"sort"
	"sync"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
)

type Storage struct {
	mu            sync.RWMutex
	calls         map[string]models.Call
	bids          map[string]models.Bid
	devices       map[string]string
	notifications []models.NotificationRecord
}

func New() *Storage {
	return &Storage{
		calls:   make(map[string]models.Call),
		bids:    make(map[string]models.Bid),
		devices: make(map[string]string),
	}
}

func (s *Storage) CreateCall(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[call.ID] = cloneCall(*call)
	return nil
}

func (s *Storage) GetCall(_ context.Context, id string) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := cloneCall(c)
	return &out, nil
}

func (s *Storage) DeleteCall(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, id)
	return nil
}

func (s *Storage) AttributeCall(_ context.Context, callID string, a models.Attribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return models.ErrNotFound
	}
	switch {
	case c.Status == models.CallStatusOpen:
	case c.Status == models.CallStatusAttributed && c.Executor != nil && c.Executor.ID == a.Executor.ID:
	default:
		return models.ErrCallAlreadyAttributed
	}
	executor := a.Executor
	c.Status = models.CallStatusAttributed
	c.Executor = &executor
	if a.Fee != nil {
		fee := *a.Fee
		c.ProposedFee = &fee
	}
	s.calls[callID] = c
	return nil
}

func (s *Storage) CreateBid(_ context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[bid.ID] = *bid
	return nil
}

func (s *Storage) GetBid(_ context.Context, id string) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

func (s *Storage) DeleteBid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bids, id)
	return nil
}

func (s *Storage) SetBidStatus(_ context.Context, id string, status models.BidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return models.ErrNotFound
	}
	b.Status = status
	s.bids[id] = b
	return nil
}

func (s *Storage) SetBargain(_ context.Context, id string, executorSide bool, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return models.ErrNotFound
	}
	if executorSide {
		b.BargainAmount = amount
	} else {
		b.BargainReplyAmount = amount
	}
	s.bids[id] = b
	return nil
}

func (s *Storage) ListBidsByCall(_ context.Context, callID string) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Bid, 0)
	for _, b := range s.bids {
		if b.CallID == callID {
			bc := b
			out = append(out, &bc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) QueryOpenCallsInRanges(_ context.Context, ranges []geo.Range, excludeRequester string) ([]*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Call, 0)
	for _, c := range s.calls {
		if c.Status != models.CallStatusOpen || (excludeRequester != "" && c.Requester.ID == excludeRequester) {
			continue
		}
		for _, r := range ranges {
			if r.Contains(c.Delivery.GeoHash) {
				cc := cloneCall(c)
				out = append(out, &cc)
				break
			}
		}
	}
	return out, nil
}

func (s *Storage) RegisterDevice(_ context.Context, d models.DeviceRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.CustomerID] = d.DeviceID
	return nil
}

// GetDevice returns "" when the customer has no registered device.
func (s *Storage) GetDevice(_ context.Context, customerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[customerID], nil
}

func (s *Storage) SaveNotification(_ context.Context, rec models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.notifications {
		if r.ID == rec.ID {
			return nil
		}
	}
	s.notifications = append(s.notifications, rec)
	return nil
}

func (s *Storage) Notifications() []models.NotificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NotificationRecord(nil), s.notifications...)
}

func cloneCall(c models.Call) models.Call {
	if c.Pickup != nil {
		p := *c.Pickup
		c.Pickup = &p
	}
	if c.Executor != nil {
		e := *c.Executor
		c.Executor = &e
	}
	if c.ProposedFee != nil {
		f := *c.ProposedFee
		c.ProposedFee = &f
	}
	return c
}
