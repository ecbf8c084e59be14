package realtime

import (
	"fmt"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
)

const announceDuration = 3 * time.Second

type Notifier interface {
	Notify(message string, kind models.NotificationKind, duration time.Duration) string
}

// Relevant reports whether ev concerns the session user.
func Relevant(ev Event, u models.User) bool {
	if ev.Parcel == nil {
		return false
	}
	switch ev.Kind {
	case KindParcelUpdated:
		return ev.Parcel.CustomerID() == u.ID || (ev.Parcel.AgentID() != "" && ev.Parcel.AgentID() == u.ID)
	case KindNewParcel:
		return u.Role.Privileged() || ev.Parcel.CustomerID() == u.ID
	}
	return false
}

func Announcement(ev Event) string {
	switch ev.Kind {
	case KindParcelUpdated:
		return fmt.Sprintf("Parcel %s status updated to %s", ev.Parcel.TrackingID, ev.Parcel.Status)
	case KindNewParcel:
		return fmt.Sprintf("New parcel booking: %s", ev.Parcel.TrackingID)
	}
	return ""
}

// Announce turns relevant events into notifications until sub closes.
func Announce(sub *Subscription, u models.User, n Notifier) {
	for ev := range sub.C() {
		if !Relevant(ev, u) {
			continue
		}
		n.Notify(Announcement(ev), models.NotificationInfo, announceDuration)
	}
}
