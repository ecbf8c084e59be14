package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/ParcelDesk/internal/integrations/courierapi"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/pkg/errors"
)

const toastDuration = 3 * time.Second

var ErrNotAuthenticated = errors.New("not authenticated")

type API interface {
	Login(ctx context.Context, email, password string) (models.AuthResult, error)
	Register(ctx context.Context, in models.RegisterInput) (models.AuthResult, error)
	Me(ctx context.Context, token string) (models.User, error)
}

type TokenStore interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type Notifier interface {
	Notify(message string, kind models.NotificationKind, duration time.Duration) string
}

type RestoreResult struct {
	Authenticated bool
	// Redirect is "" when the current path may stay.
	Redirect string
}

// Service owns the authenticated identity and its bearer token. Views read
// it, only Service mutates it.
type Service struct {
	api    API
	tokens TokenStore
	notify Notifier
	now    func() time.Time

	mu    sync.RWMutex
	user  *models.User
	token string
	onEnd []func()
}

func New(api API, tokens TokenStore, notify Notifier) *Service {
	return &Service{
		api:    api,
		tokens: tokens,
		notify: notify,
		now:    time.Now,
	}
}

func (s *Service) Current() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// OnEnd registers fn to run on Logout, e.g. to close the realtime hub.
func (s *Service) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// Restore loads a persisted token and resolves the identity. It never notifies.
func (s *Service) Restore(ctx context.Context, path string) (RestoreResult, error) {
	token, ok, err := s.tokens.Load(ctx)
	if err != nil {
		return RestoreResult{Redirect: Guard(path, false)}, errors.Wrap(err, "load token")
	}
	if !ok {
		return RestoreResult{Redirect: Guard(path, false)}, nil
	}

	if tokenExpired(token, s.now()) {
		slog.Info("stored token expired")
		return s.dropToken(ctx, path)
	}

	u, err := s.api.Me(ctx, token)
	if err != nil {
		slog.Warn("restore session failed", "error", err.Error())
		return s.dropToken(ctx, path)
	}

	s.set(u, token)
	return RestoreResult{Authenticated: true, Redirect: Guard(path, true)}, nil
}

func (s *Service) dropToken(ctx context.Context, path string) (RestoreResult, error) {
	s.clear()
	if err := s.tokens.Clear(ctx); err != nil {
		return RestoreResult{Redirect: Guard(path, false)}, errors.Wrap(err, "clear token")
	}
	return RestoreResult{Redirect: Guard(path, false)}, nil
}

// Login returns the redirect target on success.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if err := validateCredentials(email, password); err != nil {
		s.fail(err, "Login failed!")
		return "", err
	}
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.fail(err, "Login failed!")
		return "", errors.Wrap(err, "login")
	}
	if err := s.accept(ctx, res); err != nil {
		s.fail(err, "Login failed!")
		return "", err
	}
	s.notify.Notify("Login successful!", models.NotificationSuccess, toastDuration)
	return PathDashboard, nil
}

func (s *Service) Register(ctx context.Context, in models.RegisterInput) (string, error) {
	if in.Role == "" {
		in.Role = models.RoleCustomer
	}
	if err := validateRegistration(in); err != nil {
		s.fail(err, "Registration failed!")
		return "", err
	}
	res, err := s.api.Register(ctx, in)
	if err != nil {
		s.fail(err, "Registration failed!")
		return "", errors.Wrap(err, "register")
	}
	if err := s.accept(ctx, res); err != nil {
		s.fail(err, "Registration failed!")
		return "", err
	}
	s.notify.Notify("Registration successful!", models.NotificationSuccess, toastDuration)
	return PathDashboard, nil
}

// Logout clears the session and runs OnEnd callbacks.
func (s *Service) Logout(ctx context.Context) error {
	err := s.tokens.Clear(ctx)
	if err != nil {
		err = errors.Wrap(err, "clear token")
		slog.Error("logout", "error", err.Error())
	}

	s.mu.Lock()
	s.user = nil
	s.token = ""
	hooks := s.onEnd
	s.onEnd = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	s.notify.Notify("Logged out successfully", models.NotificationSuccess, toastDuration)
	return err
}

func (s *Service) accept(ctx context.Context, res models.AuthResult) error {
	if res.Token == "" {
		return errors.New("auth response without token")
	}
	if err := s.tokens.Save(ctx, res.Token); err != nil {
		return errors.Wrap(err, "save token")
	}
	s.set(res.User, res.Token)
	return nil
}

func (s *Service) fail(err error, fallback string) {
	var msg string
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		msg = verr.First()
	} else {
		msg = courierapi.MessageOr(err, fallback)
	}
	s.notify.Notify(msg, models.NotificationError, toastDuration)
}

func (s *Service) set(u models.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	s.token = token
}

func (s *Service) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
}
