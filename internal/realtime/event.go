package realtime

import (
	"context"
	"time"

	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/models"
)

type Kind string

const (
	KindParcelUpdated Kind = messages.ParcelUpdated
	KindNewParcel     Kind = messages.NewParcel
	// KindReconnected follows a transport reconnect. Listeners refetch to cover the gap.
	KindReconnected Kind = "reconnected"
	// KindSessionEnded is the last event a subscription sees before its channel closes.
	KindSessionEnded Kind = "session-ended"
)

type Event struct {
	Kind   Kind
	Parcel *models.Parcel
	At     time.Time
}

// Source pushes events into publish until ctx is done.
type Source interface {
	Run(ctx context.Context, publish func(Event)) error
}
