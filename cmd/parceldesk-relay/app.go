package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/cache"
	"github.com/BearBump/ParcelDesk/internal/cache/rediscache"
	"github.com/BearBump/ParcelDesk/internal/integrations/courierapi"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/realtime"
	"github.com/BearBump/ParcelDesk/internal/services/notify"
	"github.com/BearBump/ParcelDesk/internal/services/parcels"
	"github.com/BearBump/ParcelDesk/internal/services/session"
	"github.com/BearBump/ParcelDesk/internal/services/trackings"
	"github.com/BearBump/ParcelDesk/internal/storage/filetoken"
	"github.com/BearBump/ParcelDesk/internal/storage/pgjournal"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var ErrNotLoggedIn = errors.New("no stored session, run `parceldesk login` first")

type courierAPI interface {
	session.API
	parcels.API
	trackings.Tracker
}

type publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type rateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// sourceStatus is implemented by transports that report connection state.
type sourceStatus interface {
	Connected() bool
	Reconnects() int64
}

// relayDeps holds the optional backends. Nil members are disabled.
type relayDeps struct {
	tokens  session.TokenStore
	cache   cache.BytesCache
	limiter rateLimiter
	journal trackings.Journal
	mirror  publisher
}

type relayFactories struct {
	newAPI     func(cfg *config.Config) courierAPI
	newRedis   func(cfg *config.Config) (*redis.Client, error)
	newJournal func(ctx context.Context, cfg *config.Config) (journal trackings.Journal, closeFn func(), err error)
	newMirror  func(cfg *config.Config) (p publisher, closeFn func())
	newSource  func(cfg *config.Config, u models.User) (src realtime.Source, closeFn func())
}

func defaultRelayFactories() relayFactories {
	return relayFactories{
		newAPI: func(cfg *config.Config) courierAPI {
			return courierapi.New(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
		},
		newRedis: func(cfg *config.Config) (*redis.Client, error) {
			if !cfg.Redis.Enabled() {
				return nil, nil
			}
			return redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()}), nil
		},
		newJournal: func(ctx context.Context, cfg *config.Config) (trackings.Journal, func(), error) {
			if !cfg.Database.Enabled() {
				return nil, nil, nil
			}
			st, err := pgjournal.New(ctx, cfg.Database.ConnString(), pgjournal.Options{
				MaxConns:        cfg.Database.MaxConns,
				ApplicationName: "parceldesk-relay",
			})
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newMirror: func(cfg *config.Config) (publisher, func()) {
			// the kafka transport already reads the topic, mirroring would loop
			if !cfg.Kafka.Enabled() || cfg.Realtime.Transport == transportKafka {
				return nil, nil
			}
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newSource: func(cfg *config.Config, u models.User) (realtime.Source, func()) {
			if cfg.Realtime.Transport == transportKafka {
				group := cfg.Kafka.ConsumerGroup
				if group == "" {
					group = "parceldesk-relay-" + u.ID
				}
				c := kafka.NewConsumer(cfg.Kafka.Brokers(), eventsTopic(cfg), group)
				return realtime.NewKafkaSource(c), func() { _ = c.Close() }
			}
			url := cfg.Realtime.URL
			if url == "" {
				url = cfg.API.BaseURL
			}
			if url == "" {
				url = courierapi.DefaultBaseURL
			}
			bo := realtime.NewBackoff(realtime.BackoffConfig{
				Min: time.Duration(cfg.Realtime.ReconnectMinSeconds) * time.Second,
				Max: time.Duration(cfg.Realtime.ReconnectMaxSeconds) * time.Second,
			}, nil)
			return realtime.NewSocketIO(url, u.ID, bo), nil
		},
	}
}

const (
	transportSocketIO = "socketio"
	transportKafka    = "kafka"
)

func eventsTopic(cfg *config.Config) string {
	if cfg.Kafka.ParcelEventsTopic == "" {
		return "parcel.events"
	}
	return cfg.Kafka.ParcelEventsTopic
}

func mirrorTopic(cfg *config.Config) string {
	if cfg.Kafka.MirrorTopic == "" {
		return eventsTopic(cfg)
	}
	return cfg.Kafka.MirrorTopic
}

func buildDeps(ctx context.Context, cfg *config.Config, f relayFactories) (relayDeps, func(), error) {
	var (
		deps    relayDeps
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rc, err := f.newRedis(cfg)
	if err != nil {
		return relayDeps{}, nil, errors.Wrap(err, "redis")
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		deps.cache = rediscache.NewWithClient(rc)
		deps.limiter = rediscache.NewRateLimiter(rc)
	}

	switch cfg.Session.TokenStore {
	case "redis":
		if rc == nil {
			closeAll()
			return relayDeps{}, nil, errors.New("redis token store needs a redis section")
		}
		deps.tokens = rediscache.NewTokenStore(rc, cfg.Session.Profile)
	default:
		path := cfg.Session.TokenPath
		if path == "" {
			path = filetoken.DefaultPath()
		}
		deps.tokens = filetoken.New(path)
	}

	journal, closeJournal, err := f.newJournal(ctx, cfg)
	if err != nil {
		closeAll()
		return relayDeps{}, nil, errors.Wrap(err, "journal")
	}
	if journal != nil {
		deps.journal = journal
		if closeJournal != nil {
			closers = append(closers, closeJournal)
		}
	}

	mirror, closeMirror := f.newMirror(cfg)
	if mirror != nil {
		deps.mirror = mirror
		if closeMirror != nil {
			closers = append(closers, closeMirror)
		}
	}

	return deps, closeAll, nil
}

type relay struct {
	cfg      *config.Config
	hub      *realtime.Hub
	notifier *notify.Service
	session  *session.Service
	parcels  *parcels.Service
	track    *trackings.Service
	deps     relayDeps
	status   sourceStatus
}

// RunRelay restores the stored session, loads the role dashboard and keeps
// it live until ctx is done.
func RunRelay(ctx context.Context, cfg *config.Config, opts relayHTTPOpts, f relayFactories) error {
	deps, closeDeps, err := buildDeps(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer closeDeps()

	api := f.newAPI(cfg)
	notifier := notify.New(notify.Options{
		VisibleLimit:    cfg.Notify.VisibleLimit,
		DefaultDuration: time.Duration(cfg.Notify.DefaultDurationMillis) * time.Millisecond,
	})
	defer notifier.Close()

	sess := session.New(api, deps.tokens, notifier)
	res, err := sess.Restore(ctx, session.PathDashboard)
	if err != nil {
		return err
	}
	if !res.Authenticated {
		return ErrNotLoggedIn
	}
	user, _ := sess.Current()
	slog.Info("session restored", "user_id", user.ID, "role", string(user.Role))

	ttl := time.Duration(cfg.ParcelDesk.TrackCacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	r := &relay{
		cfg:      cfg,
		hub:      realtime.NewHub(cfg.Realtime.SubscriberBuffer),
		notifier: notifier,
		session:  sess,
		parcels:  parcels.New(api, sess, notifier, parcels.StaticLocator{}),
		track:    trackings.New(api, deps.cache, deps.journal, ttl),
		deps:     deps,
	}
	sess.OnEnd(r.hub.Close)
	defer r.hub.Close()

	if err := r.parcels.Fetch(ctx); err != nil {
		// the list stays empty until a refresh or reconnect
		slog.Error("initial fetch", "error", err.Error())
	}

	src, closeSrc := f.newSource(cfg, user)
	if closeSrc != nil {
		defer closeSrc()
	}
	if st, ok := src.(sourceStatus); ok {
		r.status = st
	}

	listSub := r.hub.Subscribe()
	announceSub := r.hub.Subscribe()
	relaySub := r.hub.Subscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := src.Run(gctx, r.hub.Publish)
		r.hub.Close()
		return err
	})
	g.Go(func() error {
		r.parcels.Run(gctx, listSub)
		return nil
	})
	g.Go(func() error {
		realtime.Announce(announceSub, user, notifier)
		return nil
	})
	g.Go(func() error {
		r.forward(gctx, relaySub)
		return nil
	})
	g.Go(func() error {
		return runRelayHTTPServer(gctx, r, opts)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// forward journals, caches and mirrors every parcel event.
func (r *relay) forward(ctx context.Context, sub *realtime.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if ev.Parcel == nil {
				continue
			}
			pe := messages.ParcelEvent{Name: string(ev.Kind), Parcel: *ev.Parcel}
			if err := r.track.ApplyEvent(ctx, pe); err != nil {
				slog.Error("journal parcel event", "parcel_id", ev.Parcel.ID, "error", err.Error())
			}
			if r.deps.mirror == nil {
				continue
			}
			key, value, err := pe.Encode()
			if err != nil {
				slog.Error("encode parcel event", "parcel_id", ev.Parcel.ID, "error", err.Error())
				continue
			}
			if err := r.deps.mirror.Publish(ctx, mirrorTopic(r.cfg), key, value); err != nil {
				slog.Error("mirror parcel event", "parcel_id", ev.Parcel.ID, "error", err.Error())
			}
		}
	}
}
