package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParcelStatus_Label(t *testing.T) {
	require.Equal(t, "Out For Delivery", ParcelStatusOutForDelivery.Label())
	require.Equal(t, "Pending", ParcelStatusPending.Label())
	require.Equal(t, "Picked Up", ParcelStatusPickedUp.Label())
}

func TestParcelStatus_Progress(t *testing.T) {
	require.InDelta(t, 100.0/6, ParcelStatusPending.Progress(), 0.001)
	require.InDelta(t, 200.0/3, ParcelStatusInTransit.Progress(), 0.001)
	require.InDelta(t, 100.0, ParcelStatusDelivered.Progress(), 0.001)
	require.Zero(t, ParcelStatusFailed.Progress())
	require.Zero(t, ParcelStatusCancelled.Progress())
	require.Zero(t, ParcelStatus("bogus").Progress())
}

func TestParcelStatus_Next(t *testing.T) {
	cases := map[ParcelStatus]ParcelStatus{
		ParcelStatusAssigned:       ParcelStatusPickedUp,
		ParcelStatusPickedUp:       ParcelStatusInTransit,
		ParcelStatusInTransit:      ParcelStatusOutForDelivery,
		ParcelStatusOutForDelivery: ParcelStatusDelivered,
	}
	for from, want := range cases {
		got, ok := from.Next()
		require.True(t, ok, from)
		require.Equal(t, want, got)
	}
	for _, s := range []ParcelStatus{ParcelStatusPending, ParcelStatusDelivered, ParcelStatusFailed, ParcelStatusCancelled} {
		_, ok := s.Next()
		require.False(t, ok, s)
	}
}

func TestBucket_Contains(t *testing.T) {
	require.True(t, BucketPending.Contains(ParcelStatusAssigned))
	require.True(t, BucketPending.Contains(ParcelStatusPending))
	require.False(t, BucketPending.Contains(ParcelStatusPickedUp))
	require.True(t, BucketInTransit.Contains(ParcelStatusOutForDelivery))
	require.True(t, BucketFailed.Contains(ParcelStatusCancelled))
	require.True(t, BucketDelivered.Contains(ParcelStatusDelivered))
	require.True(t, BucketAll.Contains(ParcelStatusFailed))

	// every valid status falls into exactly one bucket
	for _, s := range append(progressOrder, ParcelStatusFailed, ParcelStatusCancelled) {
		n := 0
		for _, b := range Buckets {
			if b.Contains(s) {
				n++
			}
		}
		require.Equal(t, 1, n, s)
	}
}

func TestParseBucket(t *testing.T) {
	b, ok := ParseBucket("")
	require.True(t, ok)
	require.Equal(t, BucketAll, b)

	b, ok = ParseBucket("in_transit")
	require.True(t, ok)
	require.Equal(t, BucketInTransit, b)

	_, ok = ParseBucket("nope")
	require.False(t, ok)
}

func TestParcel_UnmarshalJSON_IDFallback(t *testing.T) {
	var p Parcel
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"a1","trackingId":"CMS1","status":"assigned","customer":{"_id":"c1","name":"C"},"agent":{"id":"g1"}}`), &p))
	require.Equal(t, "a1", p.ID)
	require.Equal(t, "c1", p.CustomerID())
	require.Equal(t, "g1", p.AgentID())

	var q Parcel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"b2","status":"pending"}`), &q))
	require.Equal(t, "b2", q.ID)
	require.Empty(t, q.AgentID())
}

func TestParcel_OlderThan(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	older := &Parcel{UpdatedAt: &t0}
	newer := &Parcel{UpdatedAt: &t1}
	require.True(t, older.OlderThan(newer))
	require.False(t, newer.OlderThan(older))
	require.False(t, (&Parcel{}).OlderThan(newer))
	require.False(t, older.OlderThan(&Parcel{}))
}

func TestStatusUpdate_NullLocation(t *testing.T) {
	b, err := json.Marshal(StatusUpdate{Status: ParcelStatusPickedUp})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"picked_up","location":null}`, string(b))
}

func TestValidationError(t *testing.T) {
	var v ValidationError
	require.NoError(t, v.Err())

	v.Required("name", "  ", "Name is required")
	v.Required("email", "a@b", "Email is required")
	v.Add("password", "Password must be at least 6 characters")

	err := v.Err()
	require.Error(t, err)
	require.Equal(t, "Name is required; Password must be at least 6 characters", err.Error())
	require.Equal(t, "Name is required", v.First())
	require.Len(t, v.Fields, 2)
}
