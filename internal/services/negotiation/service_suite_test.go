package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/storage/memnegotiation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	negmocks "github.com/BearBump/LiveCalls/internal/services/negotiation/mocks"
)

const callbackURL = "https://api.test/nodeExpired"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite

	store    *memnegotiation.Storage
	tasks    *negmocks.MockScheduler
	notifier *negmocks.MockNotifier
	backend  *negmocks.MockExpirationCallback
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = memnegotiation.New()
	s.tasks = &negmocks.MockScheduler{}
	s.notifier = &negmocks.MockNotifier{}
	s.backend = &negmocks.MockExpirationCallback{}
	s.svc = New(s.store, s.tasks, s.notifier, s.backend, callbackURL).
		WithClock(func() time.Time { return fixedNow })
}

func parisCall(id, requester string) models.Call {
	return models.Call{
		ID:             id,
		Requester:      models.Party{ID: requester, Name: "Alice"},
		ServiceType:    "delivery",
		Delivery:       models.Location{Address: "Rue de Rivoli", Latitude: 48.8566, Longitude: 2.3522, GeoHash: "bogus"},
		ExpirationTime: fixedNow.Add(30 * time.Minute),
		CanBargain:     true,
	}
}

// seedCall puts an open call directly into the store, bypassing scheduling.
func (s *ServiceSuite) seedCall(c models.Call) {
	c.Status = models.CallStatusOpen
	c.Delivery.GeoHash = geo.Encode(geo.Point{Latitude: c.Delivery.Latitude, Longitude: c.Delivery.Longitude})
	s.Require().NoError(s.store.CreateCall(context.Background(), &c))
}

func (s *ServiceSuite) seedBid(id, callID, bidder string, proposed, bargain float64) {
	s.Require().NoError(s.store.CreateBid(context.Background(), &models.Bid{
		ID:             id,
		CallID:         callID,
		Bidder:         models.Party{ID: bidder, Name: "Bob " + bidder},
		Caller:         models.Party{ID: "req-1", Name: "Alice"},
		CallCanBargain: true,
		Kind:           models.BidKindBargain,
		Status:         models.BidStatusPending,
		ProposedAmount: proposed,
		BargainAmount:  bargain,
	}))
}

func notificationOf(typ, target, bidID string) interface{} {
	return mock.MatchedBy(func(n models.Notification) bool {
		return n.Type == typ && n.TargetCustomer == target && n.DedupKey == typ+":"+bidID && n.ID != ""
	})
}

func (s *ServiceSuite) TestCreateCall_StoresOpenCallAndSchedulesExpiration() {
	s.tasks.On("Schedule", mock.Anything, mock.MatchedBy(func(t scheduler.Task) bool {
		var p scheduler.ExpirationPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return false
		}
		return t.Name == "call-c1" && t.URL == callbackURL &&
			t.FireAt.Equal(fixedNow.Add(30*time.Minute)) &&
			p.UUID == "c1" && p.Type == "call"
	})).Return("queue/tasks/call-c1", nil).Once()

	out, err := s.svc.CreateCall(context.Background(), parisCall("c1", "req-1"))
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusOpen, out.Status)

	stored, err := s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusOpen, stored.Status)
	// клиентский geohash игнорируется
	s.Require().Equal(geo.Encode(geo.Point{Latitude: 48.8566, Longitude: 2.3522}), stored.Delivery.GeoHash)
	s.Require().Len(stored.Delivery.GeoHash, geo.Precision)
	s.Require().Equal(fixedNow, stored.CreatedAt)
	s.tasks.AssertExpectations(s.T())
	s.notifier.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateCall_AlreadyScheduledIsSuccess() {
	s.tasks.On("Schedule", mock.Anything, mock.Anything).
		Return("", scheduler.ErrAlreadyExists).
		Twice()

	_, err := s.svc.CreateCall(context.Background(), parisCall("c1", "req-1"))
	s.Require().NoError(err)
	_, err = s.svc.CreateCall(context.Background(), parisCall("c1", "req-1"))
	s.Require().NoError(err)
	s.tasks.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateCall_RetryKeepsAttribution() {
	s.tasks.On("Schedule", mock.Anything, mock.Anything).Return("t", nil).Once()
	s.tasks.On("Schedule", mock.Anything, mock.Anything).Return("", scheduler.ErrAlreadyExists).Once()
	s.notifier.On("Submit", mock.Anything, mock.Anything).Return(nil)

	_, err := s.svc.CreateCall(context.Background(), parisCall("c1", "req-1"))
	s.Require().NoError(err)
	_, err = s.svc.CreateBid(context.Background(), models.Bid{
		ID: "b1", CallID: "c1", Bidder: models.Party{ID: "prov-1"}, Kind: models.BidKindAccept,
	})
	s.Require().NoError(err)

	out, err := s.svc.CreateCall(context.Background(), parisCall("c1", "req-1"))
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusAttributed, out.Status)

	stored, err := s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusAttributed, stored.Status)
	s.Require().Equal("prov-1", stored.Executor.ID)

	// чужой id не перезаписывается
	_, err = s.svc.CreateCall(context.Background(), parisCall("c1", "req-2"))
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Require().Equal("id", vErr.Field)
	s.tasks.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateCall_SchedulerFailureKeepsCall() {
	s.tasks.On("Schedule", mock.Anything, mock.Anything).
		Return("", errors.New("queue unavailable")).
		Once()

	_, err := s.svc.CreateCall(context.Background(), parisCall("c1", "req-1"))
	s.Require().Error(err)
	var depErr *models.ExternalDependencyError
	s.Require().ErrorAs(err, &depErr)
	s.Require().Equal("scheduler", depErr.Dependency)

	stored, err := s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusOpen, stored.Status)
}

func (s *ServiceSuite) TestCreateCall_ValidationErrors() {
	bad := parisCall("c1", "req-1")
	bad.Delivery.Latitude = 91
	_, err := s.svc.CreateCall(context.Background(), bad)
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Require().Equal("delivery_address", vErr.Field)

	noID := parisCall(" ", "req-1")
	_, err = s.svc.CreateCall(context.Background(), noID)
	s.Require().ErrorAs(err, &vErr)

	noExp := parisCall("c2", "req-1")
	noExp.ExpirationTime = time.Time{}
	_, err = s.svc.CreateCall(context.Background(), noExp)
	s.Require().ErrorAs(err, &vErr)

	_, err = s.store.GetCall(context.Background(), "c1")
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.tasks.AssertNotCalled(s.T(), "Schedule", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateCall_IDMustFitTaskName() {
	for _, id := range []string{"c.1", "c/1", "звонок-1", strings.Repeat("a", 401)} {
		_, err := s.svc.CreateCall(context.Background(), parisCall(id, "req-1"))
		var vErr *models.ValidationError
		s.Require().ErrorAs(err, &vErr, id)
		s.Require().Equal("id", vErr.Field)

		_, err = s.store.GetCall(context.Background(), id)
		s.Require().ErrorIs(err, models.ErrNotFound)
	}
	s.tasks.AssertNotCalled(s.T(), "Schedule", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateCall_PickupGetsOwnGeoHash() {
	s.tasks.On("Schedule", mock.Anything, mock.Anything).Return("t", nil).Once()
	in := parisCall("c1", "req-1")
	in.Pickup = &models.Location{Address: "Gare du Nord", Latitude: 48.8809, Longitude: 2.3553}

	out, err := s.svc.CreateCall(context.Background(), in)
	s.Require().NoError(err)
	s.Require().NotNil(out.Pickup)
	s.Require().Equal(geo.Encode(geo.Point{Latitude: 48.8809, Longitude: 2.3553}), out.Pickup.GeoHash)
}

func (s *ServiceSuite) TestCreateBid_PendingAndNotifiesRequester() {
	s.seedCall(parisCall("c1", "req-1"))
	s.notifier.On("Submit", mock.Anything, notificationOf(models.NotificationNewBid, "req-1", "b1")).
		Return(nil).
		Once()

	out, err := s.svc.CreateBid(context.Background(), models.Bid{
		ID:             "b1",
		CallID:         "c1",
		Bidder:         models.Party{ID: "prov-1", Name: "Bob"},
		Caller:         models.Party{ID: "someone-else", Name: "Mallory"},
		Kind:           models.BidKindBargain,
		ProposedAmount: 10,
		BargainAmount:  12,
	})
	s.Require().NoError(err)
	s.Require().Equal(models.BidStatusPending, out.Status)

	stored, err := s.store.GetBid(context.Background(), "b1")
	s.Require().NoError(err)
	// снимок заказчика берётся из звонка, а не из запроса
	s.Require().Equal(models.Party{ID: "req-1", Name: "Alice"}, stored.Caller)
	s.Require().True(stored.CallCanBargain)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateBid_MissingCall() {
	_, err := s.svc.CreateBid(context.Background(), models.Bid{ID: "b1", CallID: "nope", Bidder: models.Party{ID: "prov-1"}})
	s.Require().ErrorIs(err, models.ErrNotFound)

	_, err = s.store.GetBid(context.Background(), "b1")
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.notifier.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateBid_BargainNotAllowed() {
	c := parisCall("c1", "req-1")
	c.CanBargain = false
	s.seedCall(c)

	_, err := s.svc.CreateBid(context.Background(), models.Bid{
		ID: "b1", CallID: "c1", Bidder: models.Party{ID: "prov-1"}, Kind: models.BidKindBargain, BargainAmount: 5,
	})
	s.Require().ErrorIs(err, models.ErrBargainNotAllowed)
	s.notifier.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateBid_OwnCallRejected() {
	s.seedCall(parisCall("c1", "req-1"))
	_, err := s.svc.CreateBid(context.Background(), models.Bid{ID: "b1", CallID: "c1", Bidder: models.Party{ID: "req-1"}})
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)
}

func (s *ServiceSuite) TestCreateBid_NegativeAmountRejected() {
	s.seedCall(parisCall("c1", "req-1"))
	_, err := s.svc.CreateBid(context.Background(), models.Bid{
		ID: "b1", CallID: "c1", Bidder: models.Party{ID: "prov-1"}, ProposedAmount: -1,
	})
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Require().Equal("proposed_amount", vErr.Field)
}

func (s *ServiceSuite) TestCreateBid_AcceptKindAttributesCall() {
	s.seedCall(parisCall("c1", "req-1"))
	s.notifier.On("Submit", mock.Anything, notificationOf(models.NotificationNewBid, "req-1", "b1")).Return(nil).Once()

	_, err := s.svc.CreateBid(context.Background(), models.Bid{
		ID: "b1", CallID: "c1", Bidder: models.Party{ID: "prov-1", Name: "Bob"}, Kind: models.BidKindAccept, ProposedAmount: 10,
	})
	s.Require().NoError(err)

	call, err := s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusAttributed, call.Status)
	s.Require().Equal("prov-1", call.Executor.ID)
	s.Require().Nil(call.ProposedFee)

	// звонок больше не open
	_, err = s.svc.CreateBid(context.Background(), models.Bid{ID: "b2", CallID: "c1", Bidder: models.Party{ID: "prov-2"}})
	s.Require().ErrorIs(err, models.ErrCallNotOpen)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateBid_RedeliveryHasNoSideEffects() {
	s.seedCall(parisCall("c1", "req-1"))
	s.notifier.On("Submit", mock.Anything, mock.Anything).Return(nil).Once()

	in := models.Bid{ID: "b1", CallID: "c1", Bidder: models.Party{ID: "prov-1"}, Kind: models.BidKindBargain, BargainAmount: 9}
	first, err := s.svc.CreateBid(context.Background(), in)
	s.Require().NoError(err)
	second, err := s.svc.CreateBid(context.Background(), in)
	s.Require().NoError(err)
	s.Require().Equal(first.ID, second.ID)
	s.notifier.AssertNumberOfCalls(s.T(), "Submit", 1)
}

func (s *ServiceSuite) TestCreateBid_SubmitFailureDoesNotFailBid() {
	s.seedCall(parisCall("c1", "req-1"))
	s.notifier.On("Submit", mock.Anything, mock.Anything).Return(errors.New("queue full")).Once()

	_, err := s.svc.CreateBid(context.Background(), models.Bid{ID: "b1", CallID: "c1", Bidder: models.Party{ID: "prov-1"}})
	s.Require().NoError(err)
	_, err = s.store.GetBid(context.Background(), "b1")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestBidStatusChanged_Accepted() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 0)
	s.notifier.On("Submit", mock.Anything, notificationOf(models.NotificationBidAccepted, "prov-1", "b1")).Return(nil).Once()

	out, err := s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusAccepted)
	s.Require().NoError(err)
	s.Require().Equal(models.BidStatusAccepted, out.Status)

	stored, err := s.store.GetBid(context.Background(), "b1")
	s.Require().NoError(err)
	s.Require().Equal(models.BidStatusAccepted, stored.Status)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestBidStatusChanged_ConfirmedAttributesCallWithMaxFee() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 12.5)
	s.notifier.On("Submit", mock.Anything, notificationOf(models.NotificationBidConfirmed, "req-1", "b1")).Return(nil).Once()

	_, err := s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusConfirmed)
	s.Require().NoError(err)

	call, err := s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Equal(models.CallStatusAttributed, call.Status)
	s.Require().Equal("prov-1", call.Executor.ID)
	s.Require().NotNil(call.ProposedFee)
	s.Require().InDelta(12.5, *call.ProposedFee, 1e-9)

	bid, err := s.store.GetBid(context.Background(), "b1")
	s.Require().NoError(err)
	s.Require().Equal(models.BidStatusConfirmed, bid.Status)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestBidStatusChanged_SecondConfirmationConflicts() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 0)
	s.seedBid("b2", "c1", "prov-2", 10, 11)
	s.notifier.On("Submit", mock.Anything, mock.Anything).Return(nil)

	_, err := s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusConfirmed)
	s.Require().NoError(err)
	_, err = s.svc.BidStatusChanged(context.Background(), "b2", models.BidStatusConfirmed)
	s.Require().ErrorIs(err, models.ErrCallAlreadyAttributed)

	call, err := s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Equal("prov-1", call.Executor.ID)
	s.Require().InDelta(10, *call.ProposedFee, 1e-9)

	b2, err := s.store.GetBid(context.Background(), "b2")
	s.Require().NoError(err)
	s.Require().Equal(models.BidStatusPending, b2.Status)
	s.notifier.AssertNumberOfCalls(s.T(), "Submit", 1)
}

func (s *ServiceSuite) TestBidStatusChanged_ConfirmRedeliveryIsIdempotent() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 0)
	s.notifier.On("Submit", mock.Anything, mock.Anything).Return(nil)

	_, err := s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusConfirmed)
	s.Require().NoError(err)
	_, err = s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusConfirmed)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestBidStatusChanged_RejectedDeletesEvenIfSubmitFails() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 0)
	s.notifier.On("Submit", mock.Anything, notificationOf(models.NotificationBidRejected, "prov-1", "b1")).
		Return(errors.New("push down")).
		Once()

	out, err := s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusRejected)
	s.Require().NoError(err)
	s.Require().Equal(models.BidStatusRejected, out.Status)

	_, err = s.store.GetBid(context.Background(), "b1")
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestBidStatusChanged_RenouncedNotifiesRequesterAndDeletes() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 0)
	s.notifier.On("Submit", mock.Anything, notificationOf(models.NotificationBidRenounced, "req-1", "b1")).Return(nil).Once()

	_, err := s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusRenounced)
	s.Require().NoError(err)

	_, err = s.store.GetBid(context.Background(), "b1")
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestBidStatusChanged_GuardFailures() {
	_, err := s.svc.BidStatusChanged(context.Background(), "missing", models.BidStatusAccepted)
	s.Require().ErrorIs(err, models.ErrNotFound)

	s.seedBid("b1", "c1", "prov-1", 10, 0)
	_, err = s.svc.BidStatusChanged(context.Background(), "b1", models.BidStatusPending)
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Require().Equal("status", vErr.Field)

	s.notifier.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestBargainPlaced_WritesSideField() {
	s.seedBid("b1", "c1", "prov-1", 10, 0)

	s.Require().NoError(s.svc.BargainPlaced(context.Background(), "b1", true, 13.456))
	s.Require().NoError(s.svc.BargainPlaced(context.Background(), "b1", false, 11))

	bid, err := s.store.GetBid(context.Background(), "b1")
	s.Require().NoError(err)
	s.Require().InDelta(13.46, bid.BargainAmount, 1e-9)
	s.Require().InDelta(11, bid.BargainReplyAmount, 1e-9)
	s.Require().Equal(models.BidStatusPending, bid.Status)
	s.notifier.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestBargainPlaced_GuardFailures() {
	err := s.svc.BargainPlaced(context.Background(), "missing", true, 5)
	s.Require().ErrorIs(err, models.ErrNotFound)

	s.seedBid("b1", "c1", "prov-1", 10, 0)
	err = s.svc.BargainPlaced(context.Background(), "b1", true, -5)
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)

	bid, err := s.store.GetBid(context.Background(), "b1")
	s.Require().NoError(err)
	s.Require().Zero(bid.BargainAmount)
}

func (s *ServiceSuite) TestNodeExpired_DeletesCallAndBidsAndReports() {
	s.seedCall(parisCall("c1", "req-1"))
	s.seedBid("b1", "c1", "prov-1", 10, 0)
	s.seedBid("b2", "c1", "prov-2", 10, 0)
	s.seedBid("other", "c2", "prov-3", 10, 0)
	s.backend.On("CallExpired", mock.Anything, "c1").Return(nil).Twice()

	s.Require().NoError(s.svc.NodeExpired(context.Background(), "c1", "call"))

	_, err := s.store.GetCall(context.Background(), "c1")
	s.Require().ErrorIs(err, models.ErrNotFound)
	bids, err := s.store.ListBidsByCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.Require().Empty(bids)
	_, err = s.store.GetBid(context.Background(), "other")
	s.Require().NoError(err)

	// повторная доставка задачи
	s.Require().NoError(s.svc.NodeExpired(context.Background(), "c1", "call"))
	s.backend.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestNodeExpired_WrongTypeChangesNothing() {
	s.seedCall(parisCall("c1", "req-1"))

	err := s.svc.NodeExpired(context.Background(), "c1", "bid")
	s.Require().ErrorIs(err, models.ErrWrongEntityType)

	_, err = s.store.GetCall(context.Background(), "c1")
	s.Require().NoError(err)
	s.backend.AssertNotCalled(s.T(), "CallExpired", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestNodeExpired_BackendFailureIsDependencyError() {
	s.seedCall(parisCall("c1", "req-1"))
	s.backend.On("CallExpired", mock.Anything, "c1").Return(errors.New("502")).Once()

	err := s.svc.NodeExpired(context.Background(), "c1", "call")
	var depErr *models.ExternalDependencyError
	s.Require().ErrorAs(err, &depErr)
	s.Require().Equal("backend", depErr.Dependency)

	_, err = s.store.GetCall(context.Background(), "c1")
	s.Require().ErrorIs(err, models.ErrNotFound)
}

func (s *ServiceSuite) TestSearchCallsInArea_NearestFirstWithoutOwnCalls() {
	near := parisCall("near", "req-1")
	near.Delivery.Latitude, near.Delivery.Longitude = 48.8600, 2.3500
	nearest := parisCall("nearest", "req-2")
	nearest.Delivery.Latitude, nearest.Delivery.Longitude = 48.8567, 2.3523
	own := parisCall("own", "prov-1")
	far := parisCall("far", "req-3")
	far.Delivery.Latitude, far.Delivery.Longitude = 45.7640, 4.8357
	for _, c := range []models.Call{near, nearest, own, far} {
		s.seedCall(c)
	}
	attributed := parisCall("taken", "req-4")
	s.seedCall(attributed)
	s.Require().NoError(s.store.AttributeCall(context.Background(), "taken", models.Attribution{Executor: models.Party{ID: "x"}}))

	out, err := s.svc.SearchCallsInArea(context.Background(), "prov-1", geo.Point{Latitude: 48.8566, Longitude: 2.3522}, 5)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Require().Equal("nearest", out[0].ID)
	s.Require().Equal("near", out[1].ID)
}

func (s *ServiceSuite) TestSearchCallsInArea_InvalidInput() {
	_, err := s.svc.SearchCallsInArea(context.Background(), "p", geo.Point{Latitude: 48.8, Longitude: 2.3}, 0)
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)

	_, err = s.svc.SearchCallsInArea(context.Background(), "p", geo.Point{Latitude: 48.8, Longitude: 2.3}, 10_000)
	s.Require().ErrorAs(err, &vErr)

	_, err = s.svc.SearchCallsInArea(context.Background(), "p", geo.Point{Latitude: 100, Longitude: 2.3}, 1)
	s.Require().ErrorAs(err, &vErr)
}

func (s *ServiceSuite) TestComputeGeoHash() {
	delivery := GeoRequest{Point: geo.Point{Latitude: 48.8566, Longitude: 2.3522}, RadiusKm: 2}

	res, err := s.svc.ComputeGeoHash(delivery, nil)
	s.Require().NoError(err)
	s.Require().Equal(geo.Encode(delivery.Point), res.Delivery.GeoHash)
	s.Require().NotEmpty(res.Delivery.Ranges)
	s.Require().Nil(res.Pickup)

	pickup := GeoRequest{Point: geo.Point{Latitude: 48.8809, Longitude: 2.3553}, RadiusKm: 1}
	res, err = s.svc.ComputeGeoHash(delivery, &pickup)
	s.Require().NoError(err)
	s.Require().NotNil(res.Pickup)
	s.Require().Equal(geo.Encode(pickup.Point), res.Pickup.GeoHash)

	_, err = s.svc.ComputeGeoHash(GeoRequest{Point: geo.Point{Latitude: 0, Longitude: 200}, RadiusKm: 1}, nil)
	var vErr *models.ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Require().Equal("deliveryAddressGeoRequest", vErr.Field)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
