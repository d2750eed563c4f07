package negotiation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BearBump/LiveCalls/internal/models"
)

// notify submits n for background delivery. Failures are logged and never fail the transition.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil || n.TargetCustomer == "" {
		return
	}
	n.ID = s.newID()
	n.CreatedAt = s.now()
	if err := s.notifier.Submit(ctx, n); err != nil {
		slog.Error("submit notification", "type", n.Type, "target_customer", n.TargetCustomer, "error", err.Error())
	}
}

func bidMetadata(b *models.Bid) map[string]string {
	return map[string]string{
		"bid_id":  b.ID,
		"call_id": b.CallID,
		"status":  string(b.Status),
	}
}

func dedupKey(notificationType, bidID string) string {
	return notificationType + ":" + bidID
}

func displayName(p models.Party, fallback string) string {
	if p.Name != "" {
		return p.Name
	}
	return fallback
}

func newBidNotification(b *models.Bid) models.Notification {
	body := fmt.Sprintf("%s accepted your call", displayName(b.Bidder, "A provider"))
	if b.Kind == models.BidKindBargain {
		body = fmt.Sprintf("%s sent an offer for your call", displayName(b.Bidder, "A provider"))
	}
	meta := bidMetadata(b)
	meta["kind"] = string(b.Kind)
	return models.Notification{
		Type:           models.NotificationNewBid,
		Title:          "New bid",
		Body:           body,
		TargetCustomer: b.Caller.ID,
		Metadata:       meta,
		DedupKey:       dedupKey(models.NotificationNewBid, b.ID),
	}
}

func bidAcceptedNotification(b *models.Bid) models.Notification {
	return models.Notification{
		Type:           models.NotificationBidAccepted,
		Title:          "Bid accepted",
		Body:           fmt.Sprintf("%s accepted your bid", displayName(b.Caller, "The requester")),
		TargetCustomer: b.Bidder.ID,
		Metadata:       bidMetadata(b),
		DedupKey:       dedupKey(models.NotificationBidAccepted, b.ID),
	}
}

func bidRejectedNotification(b *models.Bid) models.Notification {
	meta := bidMetadata(b)
	meta["status"] = string(models.BidStatusRejected)
	return models.Notification{
		Type:           models.NotificationBidRejected,
		Title:          "Bid rejected",
		Body:           fmt.Sprintf("%s declined your bid", displayName(b.Caller, "The requester")),
		TargetCustomer: b.Bidder.ID,
		Metadata:       meta,
		DedupKey:       dedupKey(models.NotificationBidRejected, b.ID),
	}
}

func bidConfirmedNotification(b *models.Bid) models.Notification {
	meta := bidMetadata(b)
	meta["fee"] = fmt.Sprintf("%.2f", ConfirmedFee(b))
	return models.Notification{
		Type:           models.NotificationBidConfirmed,
		Title:          "Bid confirmed",
		Body:           fmt.Sprintf("%s is on the way", displayName(b.Bidder, "Your provider")),
		TargetCustomer: b.Caller.ID,
		Metadata:       meta,
		DedupKey:       dedupKey(models.NotificationBidConfirmed, b.ID),
	}
}

func bidRenouncedNotification(b *models.Bid) models.Notification {
	meta := bidMetadata(b)
	meta["status"] = string(models.BidStatusRenounced)
	return models.Notification{
		Type:           models.NotificationBidRenounced,
		Title:          "Bid withdrawn",
		Body:           fmt.Sprintf("%s withdrew the bid", displayName(b.Bidder, "The provider")),
		TargetCustomer: b.Caller.ID,
		Metadata:       meta,
		DedupKey:       dedupKey(models.NotificationBidRenounced, b.ID),
	}
}
