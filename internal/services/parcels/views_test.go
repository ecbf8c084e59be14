package parcels

import (
	"context"
	"testing"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/stretchr/testify/require"
)

func TestRouteURL(t *testing.T) {
	p := models.Parcel{
		PickupAddress:   models.Address{Coordinates: &models.Coordinates{Lat: 40.7128, Lng: -74.006}},
		DeliveryAddress: models.Address{Coordinates: &models.Coordinates{Lat: 40.7589, Lng: -73.9851}},
	}
	u, ok := RouteURL(p)
	require.True(t, ok)
	require.Equal(t, "https://www.google.com/maps/dir/40.7128,-74.006/40.7589,-73.9851", u)

	p.DeliveryAddress.Coordinates = nil
	_, ok = RouteURL(p)
	require.False(t, ok)
}

func TestStaticLocator(t *testing.T) {
	loc, err := StaticLocator{}.Locate(context.Background())
	require.NoError(t, err)
	require.Nil(t, loc)

	pos := &models.Coordinates{Lat: 1, Lng: 2}
	loc, err = StaticLocator{Position: pos}.Locate(context.Background())
	require.NoError(t, err)
	require.Equal(t, *pos, *loc)
	require.NotSame(t, pos, loc)
}
