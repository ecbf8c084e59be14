package parcels

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/realtime"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const toastDuration = 3 * time.Second

var (
	ErrNoSession      = errors.New("no active session")
	ErrUnknownParcel  = errors.New("parcel is not in the list")
	ErrNoNextStatus   = errors.New("parcel has no next status")
	ErrNotAgentAction = errors.New("only agents update parcel status")
	ErrAdminOnly      = errors.New("only admins see unassigned parcels")
)

type API interface {
	ListParcels(ctx context.Context, token string) ([]models.Parcel, error)
	AssignAgent(ctx context.Context, token, parcelID, agentID string) error
	UpdateStatus(ctx context.Context, token, parcelID string, upd models.StatusUpdate) error
	DashboardStats(ctx context.Context, token string) (models.DashboardStats, error)
	ListAgents(ctx context.Context, token string) ([]models.User, error)
}

type Session interface {
	Current() (models.User, bool)
	Token() string
}

type Notifier interface {
	Notify(message string, kind models.NotificationKind, duration time.Duration) string
}

// Locator reports the agent's position. A nil result is sent as null.
type Locator interface {
	Locate(ctx context.Context) (*models.Coordinates, error)
}

// Service is the live parcel list of the session's role dashboard.
type Service struct {
	api     API
	session Session
	notify  Notifier
	locator Locator
	now     func() time.Time

	mu        sync.RWMutex
	order     []string
	byID      map[string]models.Parcel
	stats     *models.DashboardStats
	agents    []models.User
	fetchedAt time.Time
}

func New(api API, session Session, notify Notifier, locator Locator) *Service {
	return &Service{
		api:     api,
		session: session,
		notify:  notify,
		locator: locator,
		now:     time.Now,
		byID:    make(map[string]models.Parcel),
	}
}

func (s *Service) identity() (models.User, string, error) {
	u, ok := s.session.Current()
	if !ok {
		return models.User{}, "", ErrNoSession
	}
	return u, s.session.Token(), nil
}

// Fetch replaces the list with GET /api/parcels. Admins also load the
// report and the agent roster in the same round.
func (s *Service) Fetch(ctx context.Context) error {
	u, token, err := s.identity()
	if err != nil {
		return err
	}

	var (
		list   []models.Parcel
		stats  models.DashboardStats
		agents []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.api.ListParcels(gctx, token)
		return errors.Wrap(err, "list parcels")
	})
	if u.Role == models.RoleAdmin {
		g.Go(func() error {
			var err error
			stats, err = s.api.DashboardStats(gctx, token)
			return errors.Wrap(err, "dashboard stats")
		})
		g.Go(func() error {
			var err error
			agents, err = s.api.ListAgents(gctx, token)
			return errors.Wrap(err, "list agents")
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.byID = make(map[string]models.Parcel, len(list))
	for _, p := range list {
		if _, dup := s.byID[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.byID[p.ID] = p
	}
	if u.Role == models.RoleAdmin {
		s.stats = &stats
		s.agents = agents
	}
	s.fetchedAt = s.now()
	return nil
}

// acceptsUpdate: the session must be the parcel's customer or its agent,
// whatever the role.
func acceptsUpdate(u models.User, p models.Parcel) bool {
	return realtime.Relevant(realtime.Event{Kind: realtime.KindParcelUpdated, Parcel: &p}, u)
}

// acceptsNew: agents and admins see every booking, customers their own.
func acceptsNew(u models.User, p models.Parcel) bool {
	return realtime.Relevant(realtime.Event{Kind: realtime.KindNewParcel, Parcel: &p}, u)
}

// ApplyUpdated merges an updated record into the list. Records not in the
// list, unauthorized records and records older than the held copy are ignored.
func (s *Service) ApplyUpdated(p models.Parcel) bool {
	u, ok := s.session.Current()
	if !ok || p.ID == "" || !acceptsUpdate(u, p) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.byID[p.ID]
	if !ok {
		return false
	}
	if p.OlderThan(&held) {
		slog.Debug("stale parcel event ignored", "parcel", p.ID)
		return false
	}
	s.byID[p.ID] = p
	return true
}

// ApplyNew prepends a new record. A record already in the list is
// overwritten in place.
func (s *Service) ApplyNew(p models.Parcel) bool {
	u, ok := s.session.Current()
	if !ok || p.ID == "" || !acceptsNew(u, p) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.byID[p.ID]; ok {
		if p.OlderThan(&held) {
			return false
		}
		s.byID[p.ID] = p
		return true
	}
	s.order = append([]string{p.ID}, s.order...)
	s.byID[p.ID] = p
	return true
}

func (s *Service) Parcels() []models.Parcel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Parcel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Service) Get(id string) (models.Parcel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

func (s *Service) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Stats is only loaded for admin sessions.
func (s *Service) Stats() (models.DashboardStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return models.DashboardStats{}, false
	}
	return *s.stats, true
}

func (s *Service) Agents() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User(nil), s.agents...)
}

// AssignAgent assigns and refetches. The list is not touched before the
// server confirms.
func (s *Service) AssignAgent(ctx context.Context, parcelID, agentID string) error {
	_, token, err := s.identity()
	if err != nil {
		return err
	}
	if err := s.api.AssignAgent(ctx, token, parcelID, agentID); err != nil {
		return errors.Wrap(err, "assign agent")
	}
	return s.Fetch(ctx)
}

// AdvanceStatus moves a parcel one step along the agent flow.
func (s *Service) AdvanceStatus(ctx context.Context, parcelID string) (models.ParcelStatus, error) {
	p, ok := s.Get(parcelID)
	if !ok {
		return "", ErrUnknownParcel
	}
	next, ok := p.Status.Next()
	if !ok {
		return "", errors.Wrapf(ErrNoNextStatus, "status %s", p.Status)
	}
	if err := s.updateStatus(ctx, parcelID, next, ""); err != nil {
		return "", err
	}
	return next, nil
}

func (s *Service) MarkFailed(ctx context.Context, parcelID string) error {
	return s.updateStatus(ctx, parcelID, models.ParcelStatusFailed, "Delivery attempt failed")
}

func (s *Service) updateStatus(ctx context.Context, parcelID string, status models.ParcelStatus, notes string) error {
	u, token, err := s.identity()
	if err != nil {
		return err
	}
	if u.Role != models.RoleAgent {
		return ErrNotAgentAction
	}

	upd := models.StatusUpdate{Status: status, Notes: notes}
	if s.locator != nil {
		loc, err := s.locator.Locate(ctx)
		if err != nil {
			slog.Warn("locate agent", "error", err.Error())
		} else {
			upd.Location = loc
		}
	}

	if err := s.api.UpdateStatus(ctx, token, parcelID, upd); err != nil {
		s.notify.Notify("Failed to update parcel status", models.NotificationError, toastDuration)
		return errors.Wrap(err, "update status")
	}
	s.notify.Notify("Status updated successfully", models.NotificationSuccess, toastDuration)
	return nil
}
