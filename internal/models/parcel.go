package models

import (
	"encoding/json"
	"strings"
	"time"
)

type ParcelStatus string

const (
	ParcelStatusPending        ParcelStatus = "pending"
	ParcelStatusAssigned       ParcelStatus = "assigned"
	ParcelStatusPickedUp       ParcelStatus = "picked_up"
	ParcelStatusInTransit      ParcelStatus = "in_transit"
	ParcelStatusOutForDelivery ParcelStatus = "out_for_delivery"
	ParcelStatusDelivered      ParcelStatus = "delivered"
	ParcelStatusFailed         ParcelStatus = "failed"
	ParcelStatusCancelled      ParcelStatus = "cancelled"
)

// progressOrder is the linear display order. failed/cancelled sit outside it.
var progressOrder = []ParcelStatus{
	ParcelStatusPending,
	ParcelStatusAssigned,
	ParcelStatusPickedUp,
	ParcelStatusInTransit,
	ParcelStatusOutForDelivery,
	ParcelStatusDelivered,
}

var agentFlow = map[ParcelStatus]ParcelStatus{
	ParcelStatusAssigned:       ParcelStatusPickedUp,
	ParcelStatusPickedUp:       ParcelStatusInTransit,
	ParcelStatusInTransit:      ParcelStatusOutForDelivery,
	ParcelStatusOutForDelivery: ParcelStatusDelivered,
}

func (s ParcelStatus) Valid() bool {
	switch s {
	case ParcelStatusPending, ParcelStatusAssigned, ParcelStatusPickedUp, ParcelStatusInTransit,
		ParcelStatusOutForDelivery, ParcelStatusDelivered, ParcelStatusFailed, ParcelStatusCancelled:
		return true
	}
	return false
}

// Label formats "out_for_delivery" as "Out For Delivery".
func (s ParcelStatus) Label() string {
	parts := strings.Split(string(s), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Progress returns the display completion percentage, 0 for statuses off the linear order.
func (s ParcelStatus) Progress() float64 {
	for i, st := range progressOrder {
		if st == s {
			return float64(i+1) / float64(len(progressOrder)) * 100
		}
	}
	return 0
}

// Next returns the status an agent may advance to.
func (s ParcelStatus) Next() (ParcelStatus, bool) {
	n, ok := agentFlow[s]
	return n, ok
}

func (s ParcelStatus) Terminal() bool {
	return s == ParcelStatusDelivered || s == ParcelStatusFailed || s == ParcelStatusCancelled
}

// Active statuses count against an agent's workload.
func (s ParcelStatus) Active() bool {
	switch s {
	case ParcelStatusAssigned, ParcelStatusPickedUp, ParcelStatusInTransit, ParcelStatusOutForDelivery:
		return true
	}
	return false
}

type Bucket string

const (
	BucketAll       Bucket = "all"
	BucketPending   Bucket = "pending"
	BucketInTransit Bucket = "in_transit"
	BucketDelivered Bucket = "delivered"
	BucketFailed    Bucket = "failed"
)

var Buckets = []Bucket{BucketPending, BucketInTransit, BucketDelivered, BucketFailed}

func ParseBucket(s string) (Bucket, bool) {
	switch b := Bucket(s); b {
	case BucketAll, BucketPending, BucketInTransit, BucketDelivered, BucketFailed:
		return b, true
	case "":
		return BucketAll, true
	}
	return "", false
}

func (b Bucket) Contains(s ParcelStatus) bool {
	switch b {
	case BucketAll:
		return true
	case BucketPending:
		return s == ParcelStatusPending || s == ParcelStatusAssigned
	case BucketInTransit:
		return s == ParcelStatusPickedUp || s == ParcelStatusInTransit || s == ParcelStatusOutForDelivery
	case BucketDelivered:
		return s == ParcelStatusDelivered
	case BucketFailed:
		return s == ParcelStatusFailed || s == ParcelStatusCancelled
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Address struct {
	Street       string       `json:"street"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	ZipCode      string       `json:"zipCode"`
	ContactName  string       `json:"contactName,omitempty"`
	ContactPhone string       `json:"contactPhone,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

type Dimensions struct {
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

type ParcelType string

const (
	ParcelTypeDocument    ParcelType = "document"
	ParcelTypeElectronics ParcelType = "electronics"
	ParcelTypeClothing    ParcelType = "clothing"
	ParcelTypeFood        ParcelType = "food"
	ParcelTypeFragile     ParcelType = "fragile"
	ParcelTypeOther       ParcelType = "other"
)

func (t ParcelType) Valid() bool {
	switch t {
	case ParcelTypeDocument, ParcelTypeElectronics, ParcelTypeClothing, ParcelTypeFood, ParcelTypeFragile, ParcelTypeOther:
		return true
	}
	return false
}

type ParcelDetails struct {
	Weight      float64    `json:"weight"`
	Type        ParcelType `json:"type"`
	Description string     `json:"description,omitempty"`
	Value       float64    `json:"value,omitempty"`
	Price       float64    `json:"price,omitempty"`
	Dimensions  Dimensions `json:"dimensions"`
}

type PaymentType string

const (
	PaymentPrepaid PaymentType = "prepaid"
	PaymentCOD     PaymentType = "cod"
)

func (t PaymentType) Valid() bool {
	return t == PaymentPrepaid || t == PaymentCOD
}

type Payment struct {
	Type   PaymentType `json:"type"`
	Amount float64     `json:"amount"`
	Status string      `json:"status,omitempty"`
}

type Priority string

const (
	PriorityStandard Priority = "medium"
	PriorityExpress  Priority = "high"
	PriorityUrgent   Priority = "urgent"
)

type StatusHistoryEntry struct {
	Status    ParcelStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Notes     string       `json:"notes,omitempty"`
	Location  *Coordinates `json:"location,omitempty"`
	UpdatedBy *User        `json:"updatedBy,omitempty"`
}

type Parcel struct {
	ID                  string               `json:"_id"`
	TrackingID          string               `json:"trackingId"`
	Status              ParcelStatus         `json:"status"`
	PickupAddress       Address              `json:"pickupAddress"`
	DeliveryAddress     Address              `json:"deliveryAddress"`
	ParcelDetails       ParcelDetails        `json:"parcelDetails"`
	Payment             Payment              `json:"payment"`
	Priority            Priority             `json:"priority,omitempty"`
	SpecialInstructions string               `json:"specialInstructions,omitempty"`
	Customer            *User                `json:"customer,omitempty"`
	Agent               *User                `json:"agent,omitempty"`
	StatusHistory       []StatusHistoryEntry `json:"statusHistory,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           *time.Time           `json:"updatedAt,omitempty"`
	EstimatedDelivery   *time.Time           `json:"estimatedDelivery,omitempty"`
	ActualDelivery      *time.Time           `json:"actualDelivery,omitempty"`
}

func (p *Parcel) UnmarshalJSON(b []byte) error {
	type plain Parcel
	var raw struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Parcel(raw.plain)
	if p.ID == "" {
		p.ID = raw.AltID
	}
	return nil
}

func (p *Parcel) CustomerID() string {
	if p == nil || p.Customer == nil {
		return ""
	}
	return p.Customer.ID
}

func (p *Parcel) AgentID() string {
	if p == nil || p.Agent == nil {
		return ""
	}
	return p.Agent.ID
}

// OlderThan reports whether p is strictly older than other by updatedAt.
// Records without updatedAt never compare as stale.
func (p *Parcel) OlderThan(other *Parcel) bool {
	if p == nil || other == nil || p.UpdatedAt == nil || other.UpdatedAt == nil {
		return false
	}
	return p.UpdatedAt.Before(*other.UpdatedAt)
}

// StatusUpdate is the body of PUT /api/parcels/:id/status.
// Location is always serialized so the server sees an explicit null without a fix.
type StatusUpdate struct {
	Status   ParcelStatus `json:"status"`
	Notes    string       `json:"notes,omitempty"`
	Location *Coordinates `json:"location"`
}
