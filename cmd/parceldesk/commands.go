package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/realtime"
	"github.com/BearBump/ParcelDesk/internal/services/booking"
	"github.com/BearBump/ParcelDesk/internal/services/parcels"
	"github.com/BearBump/ParcelDesk/internal/services/trackings"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

func newFlagSet(c *cli, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.session.Login(ctx, *email, *password); err != nil {
		return err
	}
	u, _ := c.session.Current()
	fmt.Fprintf(c.stdout, "logged in as %s (%s)\n", u.Name, u.Role)
	return nil
}

func cmdRegister(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "register")
	var in models.RegisterInput
	role := fs.String("role", string(models.RoleCustomer), "customer or agent")
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "account password")
	fs.StringVar(&in.Phone, "phone", "", "phone number")
	fs.StringVar(&in.Address.Street, "street", "", "street address")
	fs.StringVar(&in.Address.City, "city", "", "city")
	fs.StringVar(&in.Address.State, "state", "", "state")
	fs.StringVar(&in.Address.ZipCode, "zip", "", "ZIP code")
	vehicle := fs.String("vehicle", "", "vehicle type (agents)")
	license := fs.String("license", "", "license number (agents)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in.Role = models.Role(*role)
	if in.Role == models.RoleAgent {
		in.AgentDetails = &models.AgentDetails{VehicleType: *vehicle, LicenseNumber: *license}
	}
	if _, err := c.session.Register(ctx, in); err != nil {
		return err
	}
	u, _ := c.session.Current()
	fmt.Fprintf(c.stdout, "registered %s (%s)\n", u.Email, u.Role)
	return nil
}

func cmdLogout(ctx context.Context, c *cli, _ []string) error {
	return c.session.Logout(ctx)
}

func cmdWhoami(ctx context.Context, c *cli, _ []string) error {
	u, err := c.restore(ctx)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, u)
}

func cmdParcels(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "parcels")
	bucket := fs.String("bucket", "all", "all, pending, in_transit, delivered or failed")
	unassigned := fs.Bool("unassigned", false, "pending parcels awaiting an agent, admin only")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, ok := models.ParseBucket(*bucket)
	if !ok {
		return errors.Errorf("unknown bucket %q", *bucket)
	}

	svc, u, err := c.dashboard(ctx, nil)
	if err != nil {
		return err
	}

	list := svc.Filter(b)
	if *unassigned {
		if list, err = svc.Unassigned(); err != nil {
			return err
		}
	}
	if *asJSON {
		return printJSON(c.stdout, list)
	}

	counts := svc.Counts()
	fmt.Fprintf(c.stdout, "%s dashboard: %d total, %d pending, %d in transit, %d delivered, %d failed\n",
		u.Role, counts.Total, counts.Pending, counts.InTransit, counts.Delivered, counts.Failed)
	if u.Role == models.RoleAgent {
		fmt.Fprintf(c.stdout, "pending deliveries: %d, completed today: %d\n", len(svc.PendingDeliveries()), svc.CompletedToday())
	}
	writeParcels(c.stdout, list)
	return nil
}

func writeParcels(w io.Writer, list []models.Parcel) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRACKING\tSTATUS\tPROGRESS\tAGENT\tROUTE")
	for _, p := range list {
		agent := "-"
		if p.Agent != nil {
			agent = p.Agent.Name
		}
		route, _ := parcels.RouteURL(p)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n", p.ID, p.TrackingID, p.Status.Label(), p.Status.Progress(), agent, route)
	}
	_ = tw.Flush()
}

func cmdTrack(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "track")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc := trackings.New(c.api, nil, nil, 0)
	p, err := svc.Track(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s: %s (%.0f%%)\n", p.TrackingID, p.Status.Label(), p.Status.Progress())
	for _, h := range p.StatusHistory {
		fmt.Fprintf(c.stdout, "  %s  %s  %s\n", h.Timestamp.Format(time.RFC3339), h.Status.Label(), h.Notes)
	}
	return nil
}

func cmdBook(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "book")
	var pickup, delivery models.Address
	addressFlags(fs, "pickup", &pickup)
	addressFlags(fs, "delivery", &delivery)
	var details models.ParcelDetails
	fs.Float64Var(&details.Weight, "weight", 0, "weight in kg")
	ptype := fs.String("type", string(models.ParcelTypeOther), "document, electronics, clothing, food, fragile or other")
	fs.StringVar(&details.Description, "description", "", "contents")
	fs.Float64Var(&details.Value, "value", 0, "declared value")
	fs.Float64Var(&details.Dimensions.Length, "length", 0, "length in cm")
	fs.Float64Var(&details.Dimensions.Width, "width", 0, "width in cm")
	fs.Float64Var(&details.Dimensions.Height, "height", 0, "height in cm")
	priority := fs.String("priority", string(models.PriorityStandard), "medium, high or urgent")
	payment := fs.String("payment", string(models.PaymentPrepaid), "prepaid or cod")
	instructions := fs.String("instructions", "", "special instructions")
	dryRun := fs.Bool("dry-run", false, "validate and print the quote without booking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	details.Type = models.ParcelType(*ptype)

	if _, err := c.restore(ctx); err != nil {
		return err
	}

	w := booking.NewWizard(c.api, c.session, c.notifier)
	w.SetPickup(pickup)
	w.SetDelivery(delivery)
	w.SetParcelDetails(details)
	w.SetPriority(models.Priority(*priority))
	w.SetSpecialInstructions(*instructions)
	w.SetPaymentType(models.PaymentType(*payment))
	for w.Step() != booking.StepPayment {
		if err := w.Next(); err != nil {
			return errors.Wrapf(err, "%s", w.Step())
		}
	}

	if *dryRun {
		if err := w.Validate(); err != nil {
			return errors.Wrapf(err, "%s", w.Step())
		}
		d := w.Draft()
		fmt.Fprintf(c.stdout, "quote %s %.2f\n", d.Payment.Type, d.Payment.Amount)
		return nil
	}

	_, p, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "booked %s, %s %.2f\n", p.TrackingID, p.Payment.Type, p.Payment.Amount)
	return nil
}

func addressFlags(fs *flag.FlagSet, prefix string, a *models.Address) {
	fs.StringVar(&a.Street, prefix+"-street", "", prefix+" street address")
	fs.StringVar(&a.City, prefix+"-city", "", prefix+" city")
	fs.StringVar(&a.State, prefix+"-state", "", prefix+" state")
	fs.StringVar(&a.ZipCode, prefix+"-zip", "", prefix+" ZIP code")
	fs.StringVar(&a.ContactName, prefix+"-contact", "", prefix+" contact name")
	fs.StringVar(&a.ContactPhone, prefix+"-phone", "", prefix+" contact phone")
}

// resolveParcel accepts a parcel id or a tracking id from the list.
func resolveParcel(svc *parcels.Service, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("-parcel is required")
	}
	if _, ok := svc.Get(ref); ok {
		return ref, nil
	}
	for _, p := range svc.Parcels() {
		if strings.EqualFold(p.TrackingID, ref) {
			return p.ID, nil
		}
	}
	return "", errors.Wrap(parcels.ErrUnknownParcel, ref)
}

func cmdAssign(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "assign")
	ref := fs.String("parcel", "", "parcel id or tracking id")
	agentID := fs.String("agent", "", "agent id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, u, err := c.dashboard(ctx, nil)
	if err != nil {
		return err
	}
	if u.Role != models.RoleAdmin {
		return errors.New("only admins assign agents")
	}
	if *agentID == "" {
		return errors.New("-agent is required")
	}
	id, err := resolveParcel(svc, *ref)
	if err != nil {
		return err
	}
	if err := svc.AssignAgent(ctx, id, *agentID); err != nil {
		return err
	}
	p, _ := svc.Get(id)
	fmt.Fprintf(c.stdout, "%s assigned to %s\n", p.TrackingID, agentName(p))
	return nil
}

func agentName(p models.Parcel) string {
	if p.Agent == nil {
		return "-"
	}
	return p.Agent.Name
}

func locatorFlags(fs *flag.FlagSet) func() parcels.Locator {
	lat := fs.Float64("lat", 0, "current latitude")
	lng := fs.Float64("lng", 0, "current longitude")
	return func() parcels.Locator {
		var set bool
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "lat" || f.Name == "lng" {
				set = true
			}
		})
		if !set {
			return parcels.StaticLocator{}
		}
		return parcels.StaticLocator{Position: &models.Coordinates{Lat: *lat, Lng: *lng}}
	}
}

func cmdAdvance(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "advance")
	ref := fs.String("parcel", "", "parcel id or tracking id")
	locator := locatorFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, _, err := c.dashboard(ctx, locator())
	if err != nil {
		return err
	}
	id, err := resolveParcel(svc, *ref)
	if err != nil {
		return err
	}
	next, err := svc.AdvanceStatus(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s -> %s\n", id, next.Label())
	return nil
}

func cmdFail(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "fail")
	ref := fs.String("parcel", "", "parcel id or tracking id")
	locator := locatorFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, _, err := c.dashboard(ctx, locator())
	if err != nil {
		return err
	}
	id, err := resolveParcel(svc, *ref)
	if err != nil {
		return err
	}
	return svc.MarkFailed(ctx, id)
}

func cmdAgents(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet(c, "agents")
	active := fs.Bool("active", false, "only agents marked active")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, u, err := c.dashboard(ctx, nil)
	if err != nil {
		return err
	}
	if u.Role != models.RoleAdmin {
		return errors.New("only admins list agents")
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVEHICLE\tACTIVE PARCELS")
	if *active {
		for _, a := range svc.ActiveAgents() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\n", a.ID, a.Name, vehicle(a))
		}
		return tw.Flush()
	}
	for _, l := range svc.AgentWorkload() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", l.Agent.ID, l.Agent.Name, vehicle(l.Agent), l.Active)
	}
	return tw.Flush()
}

func vehicle(u models.User) string {
	if u.AgentDetails == nil || u.AgentDetails.VehicleType == "" {
		return "-"
	}
	return u.AgentDetails.VehicleType
}

func cmdStats(ctx context.Context, c *cli, _ []string) error {
	svc, u, err := c.dashboard(ctx, nil)
	if err != nil {
		return err
	}
	ds, ok := svc.Stats()
	if !ok {
		return errors.Errorf("dashboard statistics are not available to %s accounts", u.Role)
	}
	return printJSON(c.stdout, ds)
}

// cmdWatch keeps the dashboard live and prints relevant events until ctx is done.
func cmdWatch(ctx context.Context, c *cli, _ []string) error {
	svc, u, err := c.dashboard(ctx, nil)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(c.cfg.Realtime.SubscriberBuffer)
	c.session.OnEnd(hub.Close)
	defer hub.Close()

	src, closeSrc := c.f.newSource(c.cfg, u)
	if closeSrc != nil {
		defer closeSrc()
	}

	listSub := hub.Subscribe()
	announceSub := hub.Subscribe()

	fmt.Fprintf(c.stdout, "watching %d parcels as %s\n", len(svc.Parcels()), u.Name)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := src.Run(gctx, hub.Publish)
		hub.Close()
		return err
	})
	g.Go(func() error {
		svc.Run(gctx, listSub)
		return nil
	})
	g.Go(func() error {
		realtime.Announce(announceSub, u, c.notifier)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
