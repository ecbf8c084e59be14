package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/trackings"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type relayHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	refreshLimitPerMinute int64
}

func runRelayHTTPServer(ctx context.Context, r *relay, opts relayHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8090"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: r.routes(opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("relay HTTP listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *relay) routes(opts relayHTTPOpts) http.Handler {
	mux := chi.NewRouter()

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Get("/readyz", r.handleReady)
	mux.Get("/session", r.handleSession)
	mux.Get("/parcels", r.handleParcels)
	mux.Get("/parcels/counts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, r.parcels.Counts())
	})
	mux.Get("/notifications", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("all") == "true" {
			writeJSON(w, http.StatusOK, r.notifier.All())
			return
		}
		writeJSON(w, http.StatusOK, r.notifier.Visible())
	})
	mux.Get("/notifications/stream", r.handleNotificationStream)
	mux.Get("/events", r.handleRecentEvents)
	mux.Get("/stats", r.handleStats)
	mux.Post("/refresh", r.handleRefresh(opts.refreshLimitPerMinute))
	mux.Get("/track/{trackingID}", r.handleTrack)
	mux.Get("/track/{trackingID}/history", r.handleHistory)

	if opts.swaggerPath != "" {
		mux.Get("/swagger.json", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, req, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		mux.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	return mux
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (r *relay) handleReady(w http.ResponseWriter, req *http.Request) {
	for name, dep := range map[string]any{"cache": r.deps.cache, "journal": r.deps.journal} {
		p, ok := dep.(pinger)
		if !ok || p == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			slog.Warn("readiness ping failed", "dependency", name, "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": name + " unavailable"})
			return
		}
	}
	if r.parcels.FetchedAt().IsZero() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	if r.status != nil && !r.status.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *relay) handleSession(w http.ResponseWriter, _ *http.Request) {
	u, ok := r.session.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (r *relay) handleParcels(w http.ResponseWriter, req *http.Request) {
	b, ok := models.ParseBucket(req.URL.Query().Get("bucket"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown bucket")
		return
	}
	out := r.parcels.Filter(b)
	if req.URL.Query().Get("view") == "unassigned" {
		var err error
		if out, err = r.parcels.Unassigned(); err != nil {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type relayStats struct {
	Hub        any                    `json:"hub"`
	Connected  *bool                  `json:"connected,omitempty"`
	Reconnects int64                  `json:"reconnects"`
	FetchedAt  time.Time              `json:"fetchedAt"`
	Dashboard  *models.DashboardStats `json:"dashboard,omitempty"`
	Workload   any                    `json:"workload,omitempty"`
}

func (r *relay) handleStats(w http.ResponseWriter, _ *http.Request) {
	out := relayStats{
		Hub:       r.hub.Stats(),
		FetchedAt: r.parcels.FetchedAt(),
	}
	if r.status != nil {
		c := r.status.Connected()
		out.Connected = &c
		out.Reconnects = r.status.Reconnects()
	}
	if ds, ok := r.parcels.Stats(); ok {
		out.Dashboard = &ds
		out.Workload = r.parcels.AgentWorkload()
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *relay) handleRefresh(limitPerMinute int64) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.deps.limiter != nil && limitPerMinute > 0 {
			u, _ := r.session.Current()
			ok, _, err := r.deps.limiter.Allow(req.Context(), "parceldesk:refresh:"+u.ID, limitPerMinute, time.Minute)
			if err != nil {
				slog.Warn("refresh rate limit", "error", err.Error())
			} else if !ok {
				writeError(w, http.StatusTooManyRequests, "refresh rate limit exceeded")
				return
			}
		}
		if err := r.parcels.Fetch(req.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"refreshed": true, "count": len(r.parcels.Parcels())})
	}
}

func (r *relay) handleTrack(w http.ResponseWriter, req *http.Request) {
	p, err := r.track.Track(req.Context(), chi.URLParam(req, "trackingID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, trackings.ErrEmptyTrackingID):
		writeError(w, http.StatusBadRequest, err.Error())
	case trackings.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (r *relay) handleHistory(w http.ResponseWriter, req *http.Request) {
	if r.deps.journal == nil {
		writeError(w, http.StatusNotFound, "event journal is not configured")
		return
	}
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	entries, err := r.track.History(req.Context(), chi.URLParam(req, "trackingID"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleNotificationStream pushes the visible window as server-sent events
// every time it changes, until the client goes away.
func (r *relay) handleNotificationStream(w http.ResponseWriter, req *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for window := range r.notifier.Watch(req.Context()) {
		b, err := json.Marshal(window)
		if err != nil {
			slog.Error("encode notifications", "error", err.Error())
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return
		}
		fl.Flush()
	}
}

func (r *relay) handleRecentEvents(w http.ResponseWriter, req *http.Request) {
	if r.deps.journal == nil {
		writeError(w, http.StatusNotFound, "event journal is not configured")
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	entries, err := r.track.Recent(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
