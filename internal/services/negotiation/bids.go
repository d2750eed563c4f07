package negotiation

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// CreateBid attaches a pending bid to an open call and notifies the requester.
// An accept-bid also attributes the call to the bidder right away.
func (s *Service) CreateBid(ctx context.Context, in models.Bid) (*models.Bid, error) {
	ctx, span := tracer.Start(ctx, "CreateBid")
	defer span.End()

	if err := validateBid(&in); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("bid_id", in.ID), attribute.String("call_id", in.CallID))

	// повторная доставка того же события: ничего не меняем
	if existing, err := s.store.GetBid(ctx, in.ID); err == nil {
		if existing.CallID != in.CallID {
			return nil, models.NewValidationError("id", "already used by a bid on another call")
		}
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, models.DependencyError("store", err)
	}

	call, err := s.store.GetCall(ctx, in.CallID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errors.Wrapf(models.ErrNotFound, "call %s", in.CallID)
		}
		return nil, models.DependencyError("store", err)
	}
	// accept-бид мог закрепить звонок, а сам не записаться: повтор дописывает бид
	reapply := in.Kind == models.BidKindAccept && call.Status == models.CallStatusAttributed &&
		call.Executor != nil && call.Executor.ID == in.Bidder.ID
	if call.Status != models.CallStatusOpen && !reapply {
		return nil, errors.Wrapf(models.ErrCallNotOpen, "call %s is %s", call.ID, call.Status)
	}
	if in.Bidder.ID == call.Requester.ID {
		return nil, models.NewValidationError("bidder_id", "cannot bid on own call")
	}
	if in.Kind == models.BidKindBargain && !call.CanBargain {
		return nil, errors.Wrapf(models.ErrBargainNotAllowed, "call %s", call.ID)
	}

	bid := in
	bid.Caller = call.Requester
	bid.CallCanBargain = call.CanBargain
	bid.Status = models.BidStatusPending
	bid.CreatedAt = s.now()

	if bid.Kind == models.BidKindAccept && !reapply {
		if err := s.store.AttributeCall(ctx, call.ID, models.Attribution{Executor: bid.Bidder}); err != nil {
			return nil, storeErr(err)
		}
	}

	if err := s.store.CreateBid(ctx, &bid); err != nil {
		span.RecordError(err)
		return nil, models.DependencyError("store", err)
	}
	slog.Info("bid created", "bid_id", bid.ID, "call_id", bid.CallID, "kind", bid.Kind, "bidder_id", bid.Bidder.ID)

	s.notify(ctx, newBidNotification(&bid))
	return &bid, nil
}

func validateBid(b *models.Bid) error {
	b.ID = strings.TrimSpace(b.ID)
	b.CallID = strings.TrimSpace(b.CallID)
	if b.ID == "" {
		return models.NewValidationError("id", "is required")
	}
	if b.CallID == "" {
		return models.NewValidationError("call_id", "is required")
	}
	if b.Bidder.ID == "" {
		return models.NewValidationError("bidder_id", "is required")
	}
	switch b.Kind {
	case models.BidKindAccept, models.BidKindBargain:
	case "":
		b.Kind = models.BidKindBargain
	default:
		return models.NewValidationError("kind", "must be accept or bargain")
	}
	for field, v := range map[string]float64{
		"proposed_amount":      b.ProposedAmount,
		"bargain_amount":       b.BargainAmount,
		"bargain_reply_amount": b.BargainReplyAmount,
	} {
		if err := validateAmount(v); err != nil {
			return models.NewValidationError(field, err.Error())
		}
	}
	return nil
}

func validateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("must be a finite number")
	}
	if v < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

// BidStatusChanged applies a requester or bidder decision to a bid.
func (s *Service) BidStatusChanged(ctx context.Context, bidID string, status models.BidStatus) (*models.Bid, error) {
	ctx, span := tracer.Start(ctx, "BidStatusChanged")
	defer span.End()
	span.SetAttributes(attribute.String("bid_id", bidID), attribute.String("status", string(status)))

	switch status {
	case models.BidStatusAccepted, models.BidStatusConfirmed, models.BidStatusRejected, models.BidStatusRenounced:
	default:
		return nil, models.NewValidationError("status", "must be one of accepted, confirmed, rejected, renounced")
	}
	if strings.TrimSpace(bidID) == "" {
		return nil, models.NewValidationError("id", "is required")
	}

	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errors.Wrapf(models.ErrNotFound, "bid %s", bidID)
		}
		return nil, models.DependencyError("store", err)
	}

	switch status {
	case models.BidStatusRejected:
		s.notify(ctx, bidRejectedNotification(bid))
		if err := s.store.DeleteBid(ctx, bid.ID); err != nil {
			return nil, models.DependencyError("store", err)
		}
		bid.Status = models.BidStatusRejected

	case models.BidStatusRenounced:
		s.notify(ctx, bidRenouncedNotification(bid))
		if err := s.store.DeleteBid(ctx, bid.ID); err != nil {
			return nil, models.DependencyError("store", err)
		}
		bid.Status = models.BidStatusRenounced

	case models.BidStatusAccepted:
		if err := s.store.SetBidStatus(ctx, bid.ID, models.BidStatusAccepted); err != nil {
			return nil, storeErr(err)
		}
		bid.Status = models.BidStatusAccepted
		s.notify(ctx, bidAcceptedNotification(bid))

	case models.BidStatusConfirmed:
		if err := s.confirm(ctx, bid); err != nil {
			span.RecordError(err)
			return nil, err
		}
		bid.Status = models.BidStatusConfirmed
		s.notify(ctx, bidConfirmedNotification(bid))
	}

	slog.Info("bid status changed", "bid_id", bid.ID, "call_id", bid.CallID, "status", status)
	return bid, nil
}

// confirm attributes the call first: only the bid that wins the call gets confirmed.
func (s *Service) confirm(ctx context.Context, bid *models.Bid) error {
	fee := ConfirmedFee(bid)
	if err := s.store.AttributeCall(ctx, bid.CallID, models.Attribution{Executor: bid.Bidder, Fee: &fee}); err != nil {
		if errors.Is(err, models.ErrCallAlreadyAttributed) {
			slog.Warn("bid confirmation lost the call", "bid_id", bid.ID, "call_id", bid.CallID)
		}
		return storeErr(err)
	}
	if err := s.store.SetBidStatus(ctx, bid.ID, models.BidStatusConfirmed); err != nil {
		return storeErr(err)
	}
	return nil
}

// ConfirmedFee is the fee recorded on the call: the larger of the bargained and the proposed amount.
func ConfirmedFee(bid *models.Bid) float64 {
	fee := decimal.Max(decimal.NewFromFloat(bid.BargainAmount), decimal.NewFromFloat(bid.ProposedAmount)).Round(2)
	f, _ := fee.Float64()
	return f
}

// BargainPlaced records a counter-offer round. The executor side writes bargain_amount,
// the requester side bargain_reply_amount. Status and notifications are untouched.
func (s *Service) BargainPlaced(ctx context.Context, bidID string, executorSide bool, amount float64) error {
	ctx, span := tracer.Start(ctx, "BargainPlaced")
	defer span.End()
	span.SetAttributes(attribute.String("bid_id", bidID), attribute.Bool("executor_side", executorSide))

	if strings.TrimSpace(bidID) == "" {
		return models.NewValidationError("id", "is required")
	}
	if err := validateAmount(amount); err != nil {
		return models.NewValidationError("amount", err.Error())
	}
	rounded, _ := decimal.NewFromFloat(amount).Round(2).Float64()

	if err := s.store.SetBargain(ctx, bidID, executorSide, rounded); err != nil {
		return storeErr(err)
	}
	slog.Info("bargain placed", "bid_id", bidID, "executor_side", executorSide, "amount", rounded)
	return nil
}

// storeErr keeps domain errors as is and marks everything else as a store failure.
func storeErr(err error) error {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrCallAlreadyAttributed) || errors.Is(err, models.ErrCallNotOpen) {
		return err
	}
	return models.DependencyError("store", err)
}
