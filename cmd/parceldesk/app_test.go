package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/realtime"
	"github.com/BearBump/ParcelDesk/internal/storage/filetoken"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

var (
	customer = models.User{ID: "c1", Name: "Cara", Email: "cara@example.com", Role: models.RoleCustomer}
	agent    = models.User{ID: "a1", Name: "Abe", Email: "abe@example.com", Role: models.RoleAgent}
	admin    = models.User{ID: "ad1", Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin}
)

// courierServer fakes the REST backend. Tokens are "tok-<user id>".
type courierServer struct {
	mu       sync.Mutex
	parcels  []models.Parcel
	booked   []models.BookingDraft
	updates  []models.StatusUpdate
	assigned []string
}

func (s *courierServer) userFor(r *http.Request) (models.User, bool) {
	switch strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") {
	case "tok-c1":
		return customer, true
	case "tok-a1":
		return agent, true
	case "tok-ad1":
		return admin, true
	}
	return models.User{}, false
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *courierServer) handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, u := range []models.User{customer, agent, admin} {
			if u.Email == body.Email && body.Password == "secret" {
				writeBody(w, http.StatusOK, models.AuthResult{Token: "tok-" + u.ID, User: u})
				return
			}
		}
		writeBody(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})
	r.Get("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.userFor(r)
		if !ok {
			writeBody(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
			return
		}
		writeBody(w, http.StatusOK, u)
	})
	r.Get("/api/parcels", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeBody(w, http.StatusOK, s.parcels)
	})
	r.Post("/api/parcels/book", func(w http.ResponseWriter, r *http.Request) {
		var d models.BookingDraft
		_ = json.NewDecoder(r.Body).Decode(&d)
		s.mu.Lock()
		s.booked = append(s.booked, d)
		s.mu.Unlock()
		writeBody(w, http.StatusCreated, models.Parcel{ID: "new", TrackingID: d.TrackingID, Status: models.ParcelStatusPending, Payment: d.Payment})
	})
	r.Get("/api/track/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, p := range s.parcels {
			if p.TrackingID == chi.URLParam(r, "id") {
				writeBody(w, http.StatusOK, p)
				return
			}
		}
		writeBody(w, http.StatusNotFound, map[string]string{"message": "Parcel not found"})
	})
	r.Put("/api/parcels/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var upd models.StatusUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		s.mu.Lock()
		s.updates = append(s.updates, upd)
		s.mu.Unlock()
		writeBody(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	r.Put("/api/parcels/{id}/assign", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AgentID string `json:"agentId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.assigned = append(s.assigned, body.AgentID)
		for i := range s.parcels {
			if s.parcels[i].ID == chi.URLParam(r, "id") {
				a := agent
				s.parcels[i].Agent = &a
				s.parcels[i].Status = models.ParcelStatusAssigned
			}
		}
		writeBody(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	r.Get("/api/reports/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, models.DashboardStats{TodayBookings: 3, ActiveAgents: 1})
	})
	r.Get("/api/users/agents", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, []models.User{agent})
	})
	return r
}

type harness struct {
	cfg    *config.Config
	server *courierServer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cs := &courierServer{
		parcels: []models.Parcel{
			{ID: "p1", TrackingID: "CMS1", Status: models.ParcelStatusPending, Customer: &customer},
			{ID: "p2", TrackingID: "CMS2", Status: models.ParcelStatusInTransit, Customer: &customer, Agent: &agent},
		},
	}
	srv := httptest.NewServer(cs.handler())
	t.Cleanup(srv.Close)

	return &harness{
		cfg: &config.Config{
			API:     config.APIConfig{BaseURL: srv.URL + "/"},
			Session: config.SessionConfig{TokenPath: filepath.Join(t.TempDir(), "token")},
		},
		server: cs,
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr, h.cfg, defaultCLIFactories())
	return stdout.String(), stderr.String(), err
}

func (h *harness) loginAs(t *testing.T, u models.User) {
	t.Helper()
	require.NoError(t, filetoken.New(h.cfg.Session.TokenPath).Save(context.Background(), "tok-"+u.ID))
}

func TestRun_UnknownAndMissingCommand(t *testing.T) {
	h := newHarness(t)

	_, stderr, err := h.run(t)
	require.Error(t, err)
	require.Contains(t, stderr, "usage: parceldesk")

	_, _, err = h.run(t, "teleport")
	require.ErrorContains(t, err, `unknown command "teleport"`)
}

func TestLogin_StoresTokenAndWhoami(t *testing.T) {
	h := newHarness(t)

	out, stderr, err := h.run(t, "login", "-email", "cara@example.com", "-password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "logged in as Cara (customer)")
	require.Contains(t, stderr, "[success] Login successful!")

	token, ok, err := filetoken.New(h.cfg.Session.TokenPath).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-c1", token)

	out, _, err = h.run(t, "whoami")
	require.NoError(t, err)
	var u models.User
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	require.Equal(t, "c1", u.ID)
}

func TestLogin_InvalidLeavesNoSession(t *testing.T) {
	h := newHarness(t)

	_, stderr, err := h.run(t, "login", "-email", "cara@example.com", "-password", "wrong!")
	require.Error(t, err)
	require.Equal(t, 1, strings.Count(stderr, "[error]"))
	require.Contains(t, stderr, "Invalid credentials")

	_, _, err = h.run(t, "whoami")
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogout_ClearsToken(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	_, stderr, err := h.run(t, "logout")
	require.NoError(t, err)
	require.Contains(t, stderr, "Logged out successfully")

	_, ok, err := filetoken.New(h.cfg.Session.TokenPath).Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParcels_CustomerDashboard(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	out, _, err := h.run(t, "parcels")
	require.NoError(t, err)
	require.Contains(t, out, "customer dashboard: 2 total, 1 pending, 1 in transit")
	require.Contains(t, out, "CMS1")
	require.Contains(t, out, "In Transit")

	out, _, err = h.run(t, "parcels", "-bucket", "in_transit", "-json")
	require.NoError(t, err)
	var list []models.Parcel
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	require.Equal(t, "p2", list[0].ID)

	_, _, err = h.run(t, "parcels", "-bucket", "lost")
	require.ErrorContains(t, err, "unknown bucket")
}

func TestParcels_UnassignedIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	_, _, err := h.run(t, "parcels", "-unassigned")
	require.ErrorContains(t, err, "only admins see unassigned parcels")

	h.loginAs(t, admin)
	out, _, err := h.run(t, "parcels", "-unassigned", "-json")
	require.NoError(t, err)
	var list []models.Parcel
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	require.Equal(t, "p1", list[0].ID)
}

func TestTrack_Public(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "track", "CMS2")
	require.NoError(t, err)
	require.Contains(t, out, "CMS2: In Transit")

	_, _, err = h.run(t, "track", "CMS404")
	require.EqualError(t, err, "Parcel not found")

	_, _, err = h.run(t, "track")
	require.EqualError(t, err, "Please enter a tracking ID")
}

func TestBook_PostsOneDraft(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	out, stderr, err := h.run(t, "book",
		"-pickup-street", "1 Main St", "-pickup-city", "Dhaka", "-pickup-state", "Dhaka", "-pickup-zip", "1200",
		"-delivery-street", "2 Side St", "-delivery-city", "Chattogram", "-delivery-state", "Ctg", "-delivery-zip", "4000",
		"-weight", "1.5", "-type", "fragile", "-payment", "cod",
	)
	require.NoError(t, err)
	require.Contains(t, out, "booked CMS")
	require.Contains(t, stderr, "Parcel booked successfully!")

	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	require.Len(t, h.server.booked, 1)
	d := h.server.booked[0]
	require.Regexp(t, regexp.MustCompile(`^CMS\d+[A-Z0-9]{5}$`), d.TrackingID)
	require.Equal(t, models.PaymentCOD, d.Payment.Type)
	require.Equal(t, 110.0, d.Payment.Amount)
	require.NotNil(t, d.PickupAddress.Coordinates)
}

func TestBook_DryRunQuotesWithoutBooking(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	args := []string{"book", "-dry-run",
		"-pickup-street", "1 Main St", "-pickup-city", "Dhaka", "-pickup-state", "Dhaka", "-pickup-zip", "1200",
		"-delivery-street", "2 Side St", "-delivery-city", "Chattogram", "-delivery-state", "Ctg", "-delivery-zip", "4000",
		"-weight", "1.5", "-type", "fragile",
	}
	out, _, err := h.run(t, append(args, "-payment", "cod")...)
	require.NoError(t, err)
	require.Contains(t, out, "quote cod 110.00")

	_, _, err = h.run(t, append(args, "-payment", "card")...)
	require.ErrorContains(t, err, "Invalid payment type")

	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	require.Empty(t, h.server.booked)
}

func TestBook_InvalidStepSendsNothing(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	_, _, err := h.run(t, "book", "-weight", "1")
	require.ErrorContains(t, err, "Street address is required")

	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	require.Empty(t, h.server.booked)
}

func TestAdvance_AgentSendsNextStatusWithLocation(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, agent)

	out, _, err := h.run(t, "advance", "-parcel", "CMS2", "-lat", "23.8", "-lng", "90.4")
	require.NoError(t, err)
	require.Contains(t, out, "p2 -> Out For Delivery")

	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	require.Len(t, h.server.updates, 1)
	upd := h.server.updates[0]
	require.Equal(t, models.ParcelStatusOutForDelivery, upd.Status)
	require.NotNil(t, upd.Location)
	require.Equal(t, 23.8, upd.Location.Lat)
}

func TestFail_CustomerIsRejected(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	_, _, err := h.run(t, "fail", "-parcel", "p2")
	require.Error(t, err)

	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	require.Empty(t, h.server.updates)
}

func TestAssign_AdminRefetchShowsAgent(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, admin)

	out, _, err := h.run(t, "assign", "-parcel", "CMS1", "-agent", "a1")
	require.NoError(t, err)
	require.Contains(t, out, "CMS1 assigned to Abe")

	out, _, err = h.run(t, "agents")
	require.NoError(t, err)
	require.Contains(t, out, "Abe")

	out, _, err = h.run(t, "stats")
	require.NoError(t, err)
	require.Contains(t, out, `"todayBookings": 3`)
}

func TestStats_NotForCustomers(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	_, _, err := h.run(t, "stats")
	require.ErrorContains(t, err, "not available to customer accounts")
}

// oneShotSource publishes its events and then waits for ctx.
type oneShotSource struct {
	events []realtime.Event
}

func (s oneShotSource) Run(ctx context.Context, publish func(realtime.Event)) error {
	for _, ev := range s.events {
		publish(ev)
	}
	<-ctx.Done()
	return nil
}

func TestWatch_AnnouncesRelevantEvents(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, customer)

	updated := models.Parcel{ID: "p1", TrackingID: "CMS1", Status: models.ParcelStatusAssigned, Customer: &customer}
	foreign := models.Parcel{ID: "x", TrackingID: "CMS9", Status: models.ParcelStatusPending, Customer: &models.User{ID: "other"}}

	f := defaultCLIFactories()
	f.newSource = func(*config.Config, models.User) (realtime.Source, func()) {
		return oneShotSource{events: []realtime.Event{
			{Kind: realtime.KindParcelUpdated, Parcel: &updated},
			{Kind: realtime.KindNewParcel, Parcel: &foreign},
		}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	var stdout bytes.Buffer
	stderr := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"watch"}, &stdout, stderr, h.cfg, f) }()

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "Parcel CMS1 status updated to assigned")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.NotContains(t, stderr.String(), "CMS9")
	require.Contains(t, stdout.String(), "watching 2 parcels as Cara")
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
