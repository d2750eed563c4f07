package docmodel

import (
	"testing"
	"time"

	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCall_KeepsPickupAndExecutor(t *testing.T) {
	fee := 42.0
	in := &models.Call{
		ID:             "c1",
		Requester:      models.Party{ID: "u1", Name: "Ann"},
		Delivery:       models.Location{Address: "a", Latitude: 1, Longitude: 2, GeoHash: "s00twy01mt"},
		Pickup:         &models.Location{Address: "b", Latitude: 3, Longitude: 4, GeoHash: "s0d1"},
		Status:         models.CallStatusAttributed,
		ExpirationTime: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		ProposedFee:    &fee,
		Executor:       &models.Party{ID: "x1", Name: "Bob"},
	}
	d := FromCall(in)
	require.Equal(t, "u1", d.CallerID)
	require.Equal(t, "s00twy01mt", d.DeliveryGeoHash)
	require.True(t, d.HasPickup)

	out := d.Model()
	require.Equal(t, in.Pickup, out.Pickup)
	require.Equal(t, in.Executor, out.Executor)
	require.Equal(t, 42.0, *out.ProposedFee)
}

func TestCall_NoPickupNoExecutor(t *testing.T) {
	out := FromCall(&models.Call{ID: "c1", Status: models.CallStatusOpen}).Model()
	require.Nil(t, out.Pickup)
	require.Nil(t, out.Executor)
	require.Nil(t, out.ProposedFee)
}

func TestBargainField(t *testing.T) {
	require.Equal(t, "bargain_amount", BargainField(true))
	require.Equal(t, "bargain_reply_amount", BargainField(false))
}
