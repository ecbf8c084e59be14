package notify

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultVisibleLimit = 5
	DefaultDuration     = 3 * time.Second
)

type Options struct {
	VisibleLimit    int
	DefaultDuration time.Duration
}

// Service is the process-wide notification queue. Items are kept newest
// first and remove themselves when their duration elapses.
type Service struct {
	mu       sync.Mutex
	items    []models.Notification
	timers   map[string]*time.Timer
	watchers map[chan []models.Notification]struct{}
	closed   bool

	limit  int
	defDur time.Duration
	now    func() time.Time
}

func New(opts Options) *Service {
	if opts.VisibleLimit <= 0 {
		opts.VisibleLimit = DefaultVisibleLimit
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDuration
	}
	return &Service{
		timers:   make(map[string]*time.Timer),
		watchers: make(map[chan []models.Notification]struct{}),
		limit:    opts.VisibleLimit,
		defDur:   opts.DefaultDuration,
		now:      time.Now,
	}
}

// Notify enqueues a message and returns its id. duration 0 keeps it until Dismiss.
func (s *Service) Notify(message string, kind models.NotificationKind, duration time.Duration) string {
	return s.Push(models.Notification{Message: message, Kind: kind, Duration: duration})
}

func (s *Service) Push(n models.Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Kind == "" {
		n.Kind = models.NotificationInfo
	}
	if n.Duration < 0 {
		n.Duration = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return n.ID
	}
	n.CreatedAt = s.now()
	s.items = append([]models.Notification{n}, s.items...)
	if n.Duration > 0 {
		id := n.ID
		s.timers[id] = time.AfterFunc(n.Duration, func() { s.Dismiss(id) })
	}
	s.broadcastLocked()
	return n.ID
}

// Dismiss removes an item. Unknown ids are ignored.
func (s *Service) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissLocked(id)
}

func (s *Service) dismissLocked(id string) bool {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.broadcastLocked()
			return true
		}
	}
	return false
}

// Visible returns up to the visible limit of the newest items.
func (s *Service) Visible() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

// All returns every queued item, newest first.
func (s *Service) All() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}

func (s *Service) visibleLocked() []models.Notification {
	n := len(s.items)
	if n > s.limit {
		n = s.limit
	}
	return append([]models.Notification(nil), s.items[:n]...)
}

// Watch delivers the visible window after every change until ctx is done.
// A slow reader only sees the latest window.
func (s *Service) Watch(ctx context.Context) <-chan []models.Notification {
	ch := make(chan []models.Notification, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	s.watchers[ch] = struct{}{}
	ch <- s.visibleLocked()
	s.mu.Unlock()

	context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	})
	return ch
}

func (s *Service) broadcastLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.visibleLocked()
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

type TrackOptions struct {
	Loading            string
	LoadingDescription string
	Success            string
	SuccessDescription string
	Error              string
	ErrorDescription   string
}

// Track shows a loading item while fn runs, then replaces it with a
// success or error item. fn's error is returned unchanged.
func (s *Service) Track(ctx context.Context, opts TrackOptions, fn func(ctx context.Context) error) error {
	loadingID := s.Push(models.Notification{
		Message:     opts.Loading,
		Description: opts.LoadingDescription,
		Kind:        models.NotificationInfo,
	})

	err := fn(ctx)
	s.Dismiss(loadingID)

	if err != nil {
		s.Push(models.Notification{
			Message:     opts.Error,
			Description: opts.ErrorDescription,
			Kind:        models.NotificationError,
			Duration:    s.defDur,
		})
		return err
	}
	s.Push(models.Notification{
		Message:     opts.Success,
		Description: opts.SuccessDescription,
		Kind:        models.NotificationSuccess,
		Duration:    s.defDur,
	})
	return nil
}

// Close stops pending expiry timers and ends all watchers.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
}
