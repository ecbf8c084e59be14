package parcels

import (
	"context"
	"log/slog"

	"github.com/BearBump/ParcelDesk/internal/realtime"
)

// Run applies realtime events to the list until the subscription ends or
// ctx is done. A reconnect triggers a full refetch.
func (s *Service) Run(ctx context.Context, sub *realtime.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			switch ev.Kind {
			case realtime.KindParcelUpdated:
				if ev.Parcel != nil {
					s.ApplyUpdated(*ev.Parcel)
				}
			case realtime.KindNewParcel:
				if ev.Parcel != nil {
					s.ApplyNew(*ev.Parcel)
				}
			case realtime.KindReconnected:
				if err := s.Fetch(ctx); err != nil {
					slog.Error("refetch after reconnect", "error", err.Error())
				}
			case realtime.KindSessionEnded:
				return
			}
		}
	}
}
