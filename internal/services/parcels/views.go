package parcels

import (
	"fmt"
	"sort"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
)

type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InTransit int `json:"inTransit"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

func (s *Service) Counts() Counts {
	var c Counts
	for _, p := range s.Parcels() {
		c.Total++
		switch {
		case models.BucketPending.Contains(p.Status):
			c.Pending++
		case models.BucketInTransit.Contains(p.Status):
			c.InTransit++
		case models.BucketDelivered.Contains(p.Status):
			c.Delivered++
		case models.BucketFailed.Contains(p.Status):
			c.Failed++
		}
	}
	return c
}

func (s *Service) Filter(b models.Bucket) []models.Parcel {
	return s.where(func(p models.Parcel) bool { return b.Contains(p.Status) })
}

// Unassigned is the admin queue of parcels waiting for an agent.
func (s *Service) Unassigned() ([]models.Parcel, error) {
	u, ok := s.session.Current()
	if !ok {
		return nil, ErrNoSession
	}
	if u.Role != models.RoleAdmin {
		return nil, ErrAdminOnly
	}
	return s.where(func(p models.Parcel) bool { return p.Status == models.ParcelStatusPending }), nil
}

// PendingDeliveries is the agent's open work.
func (s *Service) PendingDeliveries() []models.Parcel {
	return s.where(func(p models.Parcel) bool { return p.Status.Active() })
}

// CompletedToday counts delivered parcels created on the local calendar day.
func (s *Service) CompletedToday() int {
	y, m, d := s.now().Date()
	n := 0
	for _, p := range s.Parcels() {
		if p.Status != models.ParcelStatusDelivered {
			continue
		}
		py, pm, pd := p.CreatedAt.In(time.Local).Date()
		if py == y && pm == m && pd == d {
			n++
		}
	}
	return n
}

func (s *Service) ActiveAgents() []models.User {
	var out []models.User
	for _, a := range s.Agents() {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

type AgentLoad struct {
	Agent  models.User `json:"agent"`
	Active int         `json:"active"`
}

// AgentWorkload counts parcels in active statuses per known agent, busiest first.
func (s *Service) AgentWorkload() []AgentLoad {
	counts := make(map[string]int)
	for _, p := range s.Parcels() {
		if p.Status.Active() && p.AgentID() != "" {
			counts[p.AgentID()]++
		}
	}
	agents := s.Agents()
	out := make([]AgentLoad, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentLoad{Agent: a, Active: counts[a.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Active > out[j].Active })
	return out
}

// RouteURL links Google Maps directions from pickup to delivery.
func RouteURL(p models.Parcel) (string, bool) {
	from, to := p.PickupAddress.Coordinates, p.DeliveryAddress.Coordinates
	if from == nil || to == nil {
		return "", false
	}
	return fmt.Sprintf("https://www.google.com/maps/dir/%s,%s/%s,%s",
		formatCoord(from.Lat), formatCoord(from.Lng), formatCoord(to.Lat), formatCoord(to.Lng)), true
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%g", v)
}

func (s *Service) where(keep func(models.Parcel) bool) []models.Parcel {
	var out []models.Parcel
	for _, p := range s.Parcels() {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
