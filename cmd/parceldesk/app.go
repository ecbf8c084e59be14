package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/cache/rediscache"
	"github.com/BearBump/ParcelDesk/internal/integrations/courierapi"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/realtime"
	"github.com/BearBump/ParcelDesk/internal/services/booking"
	"github.com/BearBump/ParcelDesk/internal/services/notify"
	"github.com/BearBump/ParcelDesk/internal/services/parcels"
	"github.com/BearBump/ParcelDesk/internal/services/session"
	"github.com/BearBump/ParcelDesk/internal/services/trackings"
	"github.com/BearBump/ParcelDesk/internal/storage/filetoken"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrNotLoggedIn = errors.New("not logged in, run `parceldesk login` first")

type courierAPI interface {
	session.API
	parcels.API
	booking.API
	trackings.Tracker
}

type cliFactories struct {
	newAPI    func(cfg *config.Config) courierAPI
	newTokens func(cfg *config.Config) (tokens session.TokenStore, closeFn func(), err error)
	newSource func(cfg *config.Config, u models.User) (src realtime.Source, closeFn func())
}

func defaultCLIFactories() cliFactories {
	return cliFactories{
		newAPI: func(cfg *config.Config) courierAPI {
			return courierapi.New(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
		},
		newTokens: func(cfg *config.Config) (session.TokenStore, func(), error) {
			if cfg.Session.TokenStore == "redis" {
				if !cfg.Redis.Enabled() {
					return nil, nil, errors.New("redis token store needs a redis section")
				}
				rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
				return rediscache.NewTokenStore(rc, cfg.Session.Profile), func() { _ = rc.Close() }, nil
			}
			path := cfg.Session.TokenPath
			if path == "" {
				path = filetoken.DefaultPath()
			}
			return filetoken.New(path), nil, nil
		},
		newSource: func(cfg *config.Config, u models.User) (realtime.Source, func()) {
			if cfg.Realtime.Transport == "kafka" {
				topic := cfg.Kafka.ParcelEventsTopic
				if topic == "" {
					topic = "parcel.events"
				}
				// no group: a watcher starts at the tail and commits nothing
				c := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, "")
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

// printNotifier queues notifications and echoes them to w.
type printNotifier struct {
	*notify.Service
	w io.Writer
}

func (p printNotifier) Notify(message string, kind models.NotificationKind, d time.Duration) string {
	fmt.Fprintf(p.w, "[%s] %s\n", kind, message)
	return p.Service.Notify(message, kind, d)
}

type cli struct {
	cfg    *config.Config
	f      cliFactories
	stdout io.Writer
	stderr io.Writer

	api      courierAPI
	notifier printNotifier
	session  *session.Service
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = []command{
	{"login", "log in and store the token", cmdLogin},
	{"register", "create an account and store the token", cmdRegister},
	{"logout", "forget the stored token", cmdLogout},
	{"whoami", "show the logged in user", cmdWhoami},
	{"parcels", "list parcels of the role dashboard", cmdParcels},
	{"track", "public lookup by tracking id", cmdTrack},
	{"book", "book a parcel", cmdBook},
	{"assign", "assign an agent to a parcel (admin)", cmdAssign},
	{"advance", "move a parcel to its next status (agent)", cmdAdvance},
	{"fail", "mark a delivery attempt as failed (agent)", cmdFail},
	{"agents", "list agents with their workload (admin)", cmdAgents},
	{"stats", "show dashboard statistics (admin)", cmdStats},
	{"watch", "print live parcel events", cmdWatch},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, cfg *config.Config, f cliFactories) error {
	if len(args) == 0 {
		usage(stderr)
		return errors.New("missing command")
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		usage(stderr)
		return errors.Errorf("unknown command %q", args[0])
	}

	tokens, closeTokens, err := f.newTokens(cfg)
	if err != nil {
		return err
	}
	if closeTokens != nil {
		defer closeTokens()
	}

	svc := notify.New(notify.Options{
		VisibleLimit:    cfg.Notify.VisibleLimit,
		DefaultDuration: time.Duration(cfg.Notify.DefaultDurationMillis) * time.Millisecond,
	})
	defer svc.Close()

	c := &cli{
		cfg:      cfg,
		f:        f,
		stdout:   stdout,
		stderr:   stderr,
		api:      f.newAPI(cfg),
		notifier: printNotifier{Service: svc, w: stderr},
	}
	c.session = session.New(c.api, tokens, c.notifier)

	return cmd.run(ctx, c, args[1:])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: parceldesk <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	byName := make(map[string]string, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
		byName[c.name] = c.summary
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, byName[n])
	}
}

// restore loads the stored session or fails with ErrNotLoggedIn.
func (c *cli) restore(ctx context.Context) (models.User, error) {
	res, err := c.session.Restore(ctx, session.PathDashboard)
	if err != nil {
		return models.User{}, err
	}
	if !res.Authenticated {
		return models.User{}, ErrNotLoggedIn
	}
	u, _ := c.session.Current()
	return u, nil
}

// dashboard restores the session and loads its parcel list.
func (c *cli) dashboard(ctx context.Context, loc parcels.Locator) (*parcels.Service, models.User, error) {
	u, err := c.restore(ctx)
	if err != nil {
		return nil, models.User{}, err
	}
	if loc == nil {
		loc = parcels.StaticLocator{}
	}
	svc := parcels.New(c.api, c.session, c.notifier, loc)
	if err := svc.Fetch(ctx); err != nil {
		return nil, models.User{}, err
	}
	return svc, u, nil
}
