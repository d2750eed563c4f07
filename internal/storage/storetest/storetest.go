// Package storetest is a behaviour suite shared by the negotiation store backends.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/services/negotiation"
	"github.com/stretchr/testify/require"
)

type Store interface {
	negotiation.Store
	GetDevice(ctx context.Context, customerID string) (string, error)
	RegisterDevice(ctx context.Context, d models.DeviceRegistration) error
	SaveNotification(ctx context.Context, rec models.NotificationRecord) error
}

// Run checks st against the store contract. Ids are prefixed so several backends
// (or repeated runs) can share one database.
func Run(t *testing.T, st Store, prefix string) {
	ctx := context.Background()
	id := func(s string) string { return prefix + s }
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	paris := geo.Point{Latitude: 48.8566, Longitude: 2.3522}
	call := &models.Call{
		ID:             id("c1"),
		Requester:      models.Party{ID: id("req"), Name: "Alice", Photo: "https://img/a.png"},
		ServiceType:    "delivery",
		Delivery:       models.Location{Address: "Rue de Rivoli", Latitude: paris.Latitude, Longitude: paris.Longitude, GeoHash: geo.Encode(paris)},
		Pickup:         &models.Location{Address: "Gare du Nord", Latitude: 48.8809, Longitude: 2.3553, GeoHash: "u09wj"},
		Status:         models.CallStatusOpen,
		ExpirationTime: at.Add(time.Hour),
		CanBargain:     true,
		CreatedAt:      at,
	}

	t.Run("call round trip", func(t *testing.T) {
		require.NoError(t, st.CreateCall(ctx, call))
		got, err := st.GetCall(ctx, call.ID)
		require.NoError(t, err)
		require.Equal(t, call.Requester, got.Requester)
		require.Equal(t, call.Delivery, got.Delivery)
		require.NotNil(t, got.Pickup)
		require.Equal(t, *call.Pickup, *got.Pickup)
		require.Equal(t, models.CallStatusOpen, got.Status)
		require.True(t, got.ExpirationTime.Equal(call.ExpirationTime))
		require.Nil(t, got.Executor)

		_, err = st.GetCall(ctx, id("missing"))
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("geo range query", func(t *testing.T) {
		far := geo.Point{Latitude: 45.764, Longitude: 4.8357}
		require.NoError(t, st.CreateCall(ctx, &models.Call{
			ID: id("far"), Requester: models.Party{ID: id("req2")}, Status: models.CallStatusOpen,
			Delivery: models.Location{Latitude: far.Latitude, Longitude: far.Longitude, GeoHash: geo.Encode(far)},
		}))
		near := geo.Point{Latitude: 48.857, Longitude: 2.353}
		require.NoError(t, st.CreateCall(ctx, &models.Call{
			ID: id("near"), Requester: models.Party{ID: id("req2")}, Status: models.CallStatusOpen,
			Delivery: models.Location{Latitude: near.Latitude, Longitude: near.Longitude, GeoHash: geo.Encode(near)},
		}))

		ranges := geo.QueryRanges(paris, 2000)
		got, err := st.QueryOpenCallsInRanges(ctx, ranges, id("req"))
		require.NoError(t, err)
		ids := make([]string, 0, len(got))
		for _, c := range got {
			ids = append(ids, c.ID)
		}
		require.Contains(t, ids, id("near"))
		require.NotContains(t, ids, id("far"))
		require.NotContains(t, ids, call.ID)

		got, err = st.QueryOpenCallsInRanges(ctx, ranges, "")
		require.NoError(t, err)
		ids = ids[:0]
		for _, c := range got {
			ids = append(ids, c.ID)
		}
		require.Contains(t, ids, call.ID)
	})

	t.Run("conditional attribution", func(t *testing.T) {
		require.ErrorIs(t, st.AttributeCall(ctx, id("missing"), models.Attribution{Executor: models.Party{ID: "x"}}), models.ErrNotFound)

		fee := 12.5
		winner := models.Party{ID: id("prov-1"), Name: "Bob"}
		require.NoError(t, st.AttributeCall(ctx, call.ID, models.Attribution{Executor: winner, Fee: &fee}))
		require.NoError(t, st.AttributeCall(ctx, call.ID, models.Attribution{Executor: winner, Fee: &fee}))
		require.ErrorIs(t, st.AttributeCall(ctx, call.ID, models.Attribution{Executor: models.Party{ID: id("prov-2")}}), models.ErrCallAlreadyAttributed)

		got, err := st.GetCall(ctx, call.ID)
		require.NoError(t, err)
		require.Equal(t, models.CallStatusAttributed, got.Status)
		require.Equal(t, winner.ID, got.Executor.ID)
		require.NotNil(t, got.ProposedFee)
		require.InDelta(t, 12.5, *got.ProposedFee, 1e-9)

		// attributed calls are no longer discoverable
		found, err := st.QueryOpenCallsInRanges(ctx, geo.QueryRanges(paris, 2000), "")
		require.NoError(t, err)
		for _, c := range found {
			require.NotEqual(t, call.ID, c.ID)
		}
	})

	t.Run("bids merge and delete", func(t *testing.T) {
		for _, b := range []string{"b1", "b2"} {
			require.NoError(t, st.CreateBid(ctx, &models.Bid{
				ID: id(b), CallID: call.ID, Bidder: models.Party{ID: id("prov-1")}, Caller: call.Requester,
				Kind: models.BidKindBargain, Status: models.BidStatusPending, ProposedAmount: 10, CreatedAt: at,
			}))
		}
		require.NoError(t, st.SetBidStatus(ctx, id("b1"), models.BidStatusAccepted))
		require.NoError(t, st.SetBargain(ctx, id("b1"), true, 11))
		require.NoError(t, st.SetBargain(ctx, id("b1"), false, 10.5))
		require.ErrorIs(t, st.SetBidStatus(ctx, id("missing"), models.BidStatusAccepted), models.ErrNotFound)
		require.ErrorIs(t, st.SetBargain(ctx, id("missing"), true, 1), models.ErrNotFound)

		b, err := st.GetBid(ctx, id("b1"))
		require.NoError(t, err)
		require.Equal(t, models.BidStatusAccepted, b.Status)
		require.InDelta(t, 11, b.BargainAmount, 1e-9)
		require.InDelta(t, 10.5, b.BargainReplyAmount, 1e-9)
		require.InDelta(t, 10, b.ProposedAmount, 1e-9)
		require.Equal(t, call.Requester, b.Caller)

		bids, err := st.ListBidsByCall(ctx, call.ID)
		require.NoError(t, err)
		require.Len(t, bids, 2)

		require.NoError(t, st.DeleteBid(ctx, id("b1")))
		require.NoError(t, st.DeleteBid(ctx, id("b1")))
		_, err = st.GetBid(ctx, id("b1"))
		require.ErrorIs(t, err, models.ErrNotFound)

		require.NoError(t, st.DeleteCall(ctx, call.ID))
		require.NoError(t, st.DeleteCall(ctx, call.ID))
	})

	t.Run("devices and notifications", func(t *testing.T) {
		dev, err := st.GetDevice(ctx, id("nobody"))
		require.NoError(t, err)
		require.Empty(t, dev)

		require.NoError(t, st.RegisterDevice(ctx, models.DeviceRegistration{CustomerID: id("req"), DeviceID: "token-1"}))
		dev, err = st.GetDevice(ctx, id("req"))
		require.NoError(t, err)
		require.Equal(t, "token-1", dev)

		rec := models.NotificationRecord{
			Notification: models.Notification{ID: id("n1"), Type: models.NotificationNewBid, TargetCustomer: id("req"), CreatedAt: at},
			Outcome:      models.OutcomeDelivered,
		}
		require.NoError(t, st.SaveNotification(ctx, rec))
		require.NoError(t, st.SaveNotification(ctx, rec))
	})
}
