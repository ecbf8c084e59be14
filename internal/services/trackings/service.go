package trackings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/cache"
	"github.com/BearBump/ParcelDesk/internal/integrations/courierapi"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage/pgjournal"
	"github.com/pkg/errors"
)

var ErrEmptyTrackingID = errors.New("Please enter a tracking ID")

// NotFoundError carries the message shown for an unknown tracking id.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

type Tracker interface {
	Track(ctx context.Context, trackingID string) (models.Parcel, error)
}

// Journal is the optional event history.
type Journal interface {
	Append(ctx context.Context, ev messages.ParcelEvent, receivedAt time.Time) (bool, error)
	ListByTracking(ctx context.Context, trackingID string, limit, offset int) ([]*pgjournal.Entry, error)
	Recent(ctx context.Context, limit int) ([]*pgjournal.Entry, error)
}

// Service answers public tracking lookups through a read-through cache.
// Terminal parcels are cached for terminalTTL, the rest for currentTTL.
type Service struct {
	api         Tracker
	cache       cache.BytesCache
	journal     Journal
	currentTTL  time.Duration
	terminalTTL time.Duration
}

func New(api Tracker, c cache.BytesCache, journal Journal, currentTTL time.Duration) *Service {
	return &Service{
		api:         api,
		cache:       c,
		journal:     journal,
		currentTTL:  currentTTL,
		terminalTTL: 10 * currentTTL,
	}
}

func (s *Service) Track(ctx context.Context, trackingID string) (models.Parcel, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return models.Parcel{}, ErrEmptyTrackingID
	}

	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, currentKey(trackingID))
		if err != nil {
			// best effort: fall through to the API
			slog.Warn("track cache get", "tracking_id", trackingID, "error", err.Error())
		} else if ok {
			var p models.Parcel
			if json.Unmarshal(b, &p) == nil {
				return p, nil
			}
		}
	}

	p, err := s.api.Track(ctx, trackingID)
	if err != nil {
		if courierapi.IsNotFound(err) {
			return models.Parcel{}, &NotFoundError{Message: courierapi.MessageOr(err, "Parcel not found")}
		}
		return models.Parcel{}, errors.Wrap(err, "track parcel")
	}
	s.store(ctx, p)
	return p, nil
}

// History lists journaled events of a tracking id, newest first.
func (s *Service) History(ctx context.Context, trackingID string, limit, offset int) ([]*pgjournal.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	if strings.TrimSpace(trackingID) == "" {
		return nil, ErrEmptyTrackingID
	}
	return s.journal.ListByTracking(ctx, trackingID, limit, offset)
}

// Recent lists the newest journaled events across all parcels.
func (s *Service) Recent(ctx context.Context, limit int) ([]*pgjournal.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(ctx, limit)
}

// ApplyEvent journals a realtime event and refreshes the cached copy.
func (s *Service) ApplyEvent(ctx context.Context, ev messages.ParcelEvent) error {
	if ev.Parcel.ID == "" {
		return errors.New("parcel id is required")
	}
	if s.journal != nil {
		if _, err := s.journal.Append(ctx, ev, time.Now().UTC()); err != nil {
			return err
		}
	}
	if ev.Parcel.TrackingID != "" {
		s.store(ctx, ev.Parcel)
	}
	return nil
}

func (s *Service) store(ctx context.Context, p models.Parcel) {
	if !s.cacheEnabled() || p.TrackingID == "" {
		return
	}
	ttl := s.currentTTL
	if p.Status.Terminal() {
		ttl = s.terminalTTL
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, currentKey(p.TrackingID), b, ttl); err != nil {
		slog.Warn("track cache set", "tracking_id", p.TrackingID, "error", err.Error())
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

func currentKey(trackingID string) string {
	return fmt.Sprintf("track:%s:current", trackingID)
}
